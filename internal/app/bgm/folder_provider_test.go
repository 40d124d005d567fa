package bgm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlaylist(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestNewFolderProvider_Config(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
		wantDir  string
		wantExt  string
	}{
		{"defaults", map[string]any{}, false, "Playlists", ".txt"},
		{"custom", map[string]any{"dir": "/srv/pl", "extension": ".list"}, false, "/srv/pl", ".list"},
		{"extension without dot", map[string]any{"extension": "txt"}, true, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewFolderProvider(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDir, p.config.Dir)
			assert.Equal(t, tt.wantExt, p.config.Extension)
		})
	}
}

func TestFolderProvider_Playlist(t *testing.T) {
	dir := t.TempDir()
	writePlaylist(t, dir, "chill.txt", "#shuffle\n// comment\nhttps://example.com/a.mp3\n\nspsearch:lofi\n")
	writePlaylist(t, dir, "notes.md", "ignored")

	p, err := NewFolderProvider(map[string]any{"dir": dir})
	require.NoError(t, err)

	pl, ok, err := p.Playlist(context.Background(), "chill")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "chill", pl.Name)
	assert.True(t, pl.Shuffle)
	assert.Equal(t, []string{"https://example.com/a.mp3", "spsearch:lofi"}, pl.Items)

	for _, name := range []string{"missing", "../chill", "", ".."} {
		_, ok, err := p.Playlist(context.Background(), name)
		assert.NoError(t, err, name)
		assert.False(t, ok, name)
	}

	names, err := p.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"chill"}, names)
}

func TestFolderProvider_MissingDir(t *testing.T) {
	p, err := NewFolderProvider(map[string]any{"dir": filepath.Join(t.TempDir(), "nope")})
	require.NoError(t, err)

	names, err := p.Names(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, names)
}

func TestSpotifyProvider(t *testing.T) {
	_, err := NewSpotifyProvider(map[string]any{})
	assert.Error(t, err)

	p, err := NewSpotifyProvider(map[string]any{
		"playlists": map[string]any{
			"focus": "https://open.spotify.com/playlist/37i9dQZF1DX4sWSpwq3LiO",
			"chill": "https://open.spotify.com/playlist/37i9dQZF1DX889U0CL85jj",
		},
		"shuffle": true,
	})
	require.NoError(t, err)

	pl, ok, err := p.Playlist(context.Background(), "focus")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, pl.Shuffle)
	assert.Equal(t, []string{"https://open.spotify.com/playlist/37i9dQZF1DX4sWSpwq3LiO"}, pl.Items)

	_, ok, err = p.Playlist(context.Background(), "jazz")
	assert.NoError(t, err)
	assert.False(t, ok)

	names, err := p.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"chill", "focus"}, names)
}
