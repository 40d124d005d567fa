package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topTracksBody = `{
	"tracks": {
		"track": [
			{"name": "Song A", "artist": {"name": "Artist A"}},
			{"name": "", "artist": {"name": "Nobody"}},
			{"name": "Song B", "artist": {"name": "Artist B"}}
		]
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"
	return client
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestTagTopTracks(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "tag.getTopTracks", q.Get("method"))
		assert.Equal(t, "rock", q.Get("tag"))
		assert.Equal(t, "test_key", q.Get("api_key"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "5", q.Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, topTracksBody)
	})

	ctx := context.Background()
	tracks, err := client.TagTopTracks(ctx, "rock", 5)
	require.NoError(t, err)
	assert.Equal(t, []TopTrack{
		{Name: "Song A", Artist: "Artist A"},
		{Name: "Song B", Artist: "Artist B"},
	}, tracks)
	assert.Equal(t, "Artist A - Song A", tracks[0].Query())

	cached, err := client.TagTopTracks(ctx, "rock", 5)
	require.NoError(t, err)
	assert.Equal(t, tracks, cached)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTagTopTracks_CacheExpires(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, topTracksBody)
	})
	now := time.Now()
	client.now = func() time.Time { return now }

	_, err := client.TagTopTracks(context.Background(), "jazz", 10)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = client.TagTopTracks(context.Background(), "jazz", 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChartTopTracks_ClampsLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "chart.getTopTracks", r.URL.Query().Get("method"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		fmt.Fprint(w, topTracksBody)
	})

	tracks, err := client.ChartTopTracks(context.Background(), 500)
	require.NoError(t, err)
	assert.Len(t, tracks, 2)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "api error", status: http.StatusOK, body: `{"error": 6, "message": "Tag not found"}`, wantErr: "last.fm API error 6: Tag not found"},
		{name: "http status", status: http.StatusBadGateway, body: `<html></html>`, wantErr: "status 502"},
		{name: "bad json", status: http.StatusOK, body: `{"tracks": [`, wantErr: "failed to parse response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := client.TagTopTracks(context.Background(), "rock", 10)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := client.TagTopTracks(context.Background(), "", 10)
	assert.ErrorContains(t, err, "tag name is required")
}
