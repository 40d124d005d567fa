package bgm

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/infra/lastfm"
)

type fakeCharts struct {
	tags  map[string][]lastfm.TopTrack
	chart []lastfm.TopTrack
	limit int
	err   error
}

func (f *fakeCharts) TagTopTracks(ctx context.Context, tag string, limit int) ([]lastfm.TopTrack, error) {
	f.limit = limit
	return f.tags[tag], f.err
}

func (f *fakeCharts) ChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error) {
	f.limit = limit
	return f.chart, f.err
}

func TestNewLastFMProvider_Config(t *testing.T) {
	tests := []struct {
		name        string
		settings    map[string]any
		wantErr     bool
		wantLimit   int
		wantShuffle bool
	}{
		{
			name:        "defaults",
			settings:    map[string]any{"api_key": "k", "playlists": map[string]any{"rock": "rock"}},
			wantLimit:   50,
			wantShuffle: true,
		},
		{
			name:      "custom",
			settings:  map[string]any{"api_key": "k", "playlists": map[string]any{"rock": "rock"}, "limit": 10, "shuffle": false},
			wantLimit: 10,
		},
		{name: "missing key", settings: map[string]any{"playlists": map[string]any{"rock": "rock"}}, wantErr: true},
		{name: "no playlists", settings: map[string]any{"api_key": "k"}, wantErr: true},
		{name: "limit too high", settings: map[string]any{"api_key": "k", "playlists": map[string]any{"rock": "rock"}, "limit": 500}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLastFMProvider(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, p.config.Limit)
			assert.Equal(t, tt.wantShuffle, p.config.Shuffle)
		})
	}
}

func TestLastFMProvider_Playlist(t *testing.T) {
	charts := &fakeCharts{
		tags:  map[string][]lastfm.TopTrack{"rock": {{Name: "Song A", Artist: "Artist A"}}},
		chart: []lastfm.TopTrack{{Name: "Hit", Artist: "Star"}, {Name: "Hit 2", Artist: "Star"}},
	}
	p := newLastFMProvider(&LastFMProviderConfig{
		Playlists: map[string]string{"rock": "rock", "top": chartTag},
		Limit:     25,
	}, charts)

	ctx := context.Background()

	pl, ok, err := p.Playlist(ctx, "rock")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rock", pl.Name)
	assert.Equal(t, []string{"Artist A - Song A"}, pl.Items)
	assert.Equal(t, 25, charts.limit)

	pl, ok, err = p.Playlist(ctx, "top")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"Star - Hit", "Star - Hit 2"}, pl.Items)

	_, ok, err = p.Playlist(ctx, "jazz")
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := p.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"rock", "top"}, names)
	assert.Equal(t, "lastfm", p.Name())
}

func TestLastFMProvider_FetchError(t *testing.T) {
	p := newLastFMProvider(&LastFMProviderConfig{
		Playlists: map[string]string{"rock": "rock"},
		Limit:     10,
	}, &fakeCharts{err: errors.New("boom")})

	_, _, err := p.Playlist(context.Background(), "rock")
	assert.ErrorContains(t, err, "failed to fetch chart for rock")
}
