package direct

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/domain/track"
)

func TestResolver_CanResolve(t *testing.T) {
	r := New()

	tests := []struct {
		query    string
		expected bool
	}{
		{query: "https://example.com/song.mp3", expected: true},
		{query: "http://example.com/stream", expected: true},
		{query: "  https://youtu.be/dQw4w9WgXcQ  ", expected: true},
		{query: "ftp://example.com/song.mp3", expected: false},
		{query: "example.com/song.mp3", expected: false},
		{query: "never gonna give you up", expected: false},
		{query: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.CanResolve(tt.query))
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantID     string
		wantTitle  string
		wantSource string
	}{
		{
			name:       "file link",
			query:      "https://cdn.example.com/music/My%20Song.mp3",
			wantID:     "https://cdn.example.com/music/My%20Song.mp3",
			wantTitle:  "My Song",
			wantSource: "http",
		},
		{
			name:       "host only",
			query:      "https://radio.example.com/",
			wantID:     "https://radio.example.com/",
			wantTitle:  "radio.example.com",
			wantSource: "http",
		},
		{
			name:       "youtube watch",
			query:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42",
			wantID:     "dQw4w9WgXcQ",
			wantTitle:  "YouTube video dQw4w9WgXcQ",
			wantSource: "youtube",
		},
		{
			name:       "youtube short link",
			query:      "https://youtu.be/dQw4w9WgXcQ",
			wantID:     "dQw4w9WgXcQ",
			wantTitle:  "YouTube video dQw4w9WgXcQ",
			wantSource: "youtube",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New().Resolve(context.Background(), tt.query)
			require.Equal(t, track.LoadTrack, res.Type)
			require.Len(t, res.Tracks, 1)
			got := res.Tracks[0]
			assert.Equal(t, tt.wantID, got.Identifier)
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantSource, got.SourceName)
			assert.Equal(t, tt.query, got.URI)
		})
	}
}

func TestResolver_ResolveNotURL(t *testing.T) {
	res := New().Resolve(context.Background(), "just words")
	assert.Equal(t, track.LoadNoMatch, res.Type)
}
