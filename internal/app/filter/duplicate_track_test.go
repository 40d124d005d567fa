package filter

import (
	"context"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"

	"github.com/osa030/guildbox/internal/domain/track"
)

type mockTrackSource struct {
	tracks map[snowflake.ID][]track.Track
}

func (m *mockTrackSource) GuildTracks(guildID snowflake.ID) []track.Track {
	return m.tracks[guildID]
}

func TestDuplicateTrackFilter_SameSource(t *testing.T) {
	src := &mockTrackSource{tracks: map[snowflake.ID][]track.Track{
		1: {{Identifier: "a", URI: "https://example.com/a.mp3", Title: "Bohemian Rhapsody", Author: "Queen"}},
	}}
	f := NewDuplicateTrackFilter(src)

	result := f.Check(context.Background(), TrackRequest{GuildID: 1}, track.Track{Identifier: "other", URI: "https://example.com/a.mp3"})
	assert.False(t, result.Accepted)
	assert.Equal(t, "duplicate_track", result.Code)

	result = f.Check(context.Background(), TrackRequest{GuildID: 2}, track.Track{Identifier: "other", URI: "https://example.com/a.mp3"})
	assert.True(t, result.Accepted, "other guilds are independent")
}

func TestDuplicateTrackFilter_RemasterDetection(t *testing.T) {
	tests := []struct {
		name         string
		queued       track.Track
		requested    track.Track
		shouldReject bool
	}{
		{
			name:         "standard remaster pattern",
			queued:       track.Track{URI: "u1", Title: "Bohemian Rhapsody", Author: "Queen"},
			requested:    track.Track{URI: "u2", Title: "Bohemian Rhapsody - 2011 Remaster", Author: "Queen"},
			shouldReject: true,
		},
		{
			name:         "remastered in parentheses",
			queued:       track.Track{URI: "u1", Title: "Yesterday", Author: "The Beatles"},
			requested:    track.Track{URI: "u2", Title: "Yesterday (Remastered 2023)", Author: "the beatles"},
			shouldReject: true,
		},
		{
			name:         "cover by a different artist",
			queued:       track.Track{URI: "u1", Title: "Yesterday", Author: "The Beatles"},
			requested:    track.Track{URI: "u2", Title: "Yesterday", Author: "Paul McCartney"},
			shouldReject: false,
		},
		{
			name:         "different songs with similar names",
			queued:       track.Track{URI: "u1", Title: "Love", Author: "John Lennon"},
			requested:    track.Track{URI: "u2", Title: "Love Song", Author: "John Lennon"},
			shouldReject: false,
		},
		{
			name:         "radio edit",
			queued:       track.Track{URI: "u1", Title: "Stairway to Heaven", Author: "Led Zeppelin"},
			requested:    track.Track{URI: "u2", Title: "Stairway to Heaven (Radio Edit)", Author: "Led Zeppelin"},
			shouldReject: true,
		},
		{
			name:         "live version",
			queued:       track.Track{URI: "u1", Title: "Hotel California", Author: "Eagles"},
			requested:    track.Track{URI: "u2", Title: "Hotel California - Live", Author: "Eagles"},
			shouldReject: true,
		},
		{
			name:         "remix is allowed",
			queued:       track.Track{URI: "u1", Title: "Le Freak", Author: "CHIC"},
			requested:    track.Track{URI: "u2", Title: "Le Freak (Oliver Heldens Remix)", Author: "CHIC"},
			shouldReject: false,
		},
		{
			name:         "video upload of a queued song",
			queued:       track.Track{URI: "u1", Title: "Don't Stop Me Now", Author: "Queen"},
			requested:    track.Track{URI: "u2", Title: "Queen - Don't Stop Me Now (Official Video)", Author: "Queen Official"},
			shouldReject: true,
		},
		{
			name:         "topic channel upload",
			queued:       track.Track{URI: "u1", Title: "Alive (Lyrics)", Author: "Sia"},
			requested:    track.Track{URI: "u2", Title: "Alive", Author: "Sia - Topic"},
			shouldReject: true,
		},
		{
			name:         "title containing live is kept",
			queued:       track.Track{URI: "u1", Title: "Alive", Author: "Sia"},
			requested:    track.Track{URI: "u2", Title: "Aliveness", Author: "Sia"},
			shouldReject: false,
		},
		{
			name:         "unknown author",
			queued:       track.Track{URI: "u1", Title: "Intro"},
			requested:    track.Track{URI: "u2", Title: "Intro"},
			shouldReject: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &mockTrackSource{tracks: map[snowflake.ID][]track.Track{1: {tt.queued}}}
			result := NewDuplicateTrackFilter(src).Check(context.Background(), TrackRequest{GuildID: 1}, tt.requested)
			assert.Equal(t, !tt.shouldReject, result.Accepted)
		})
	}
}

func TestNormalizeArtist(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Queen", "queen"},
		{"Sia - Topic", "sia"},
		{"QueenVEVO", "queen"},
		{"Queen Official", "queen"},
		{"  Daft   Punk ", "daft punk"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeArtist(tt.input))
		})
	}
}

func TestDuplicateTrackFilter_AppliesTo(t *testing.T) {
	f := NewDuplicateTrackFilter(&mockTrackSource{})
	assert.True(t, f.AppliesTo(SourceUser))
	assert.False(t, f.AppliesTo(SourceAutoplay))
}

func TestNormalizeTrackName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Bohemian Rhapsody - 2011 Remaster", "bohemian rhapsody"},
		{"Yesterday (Remastered 2023)", "yesterday"},
		{"Song [Remastered]", "song"},
		{"Track (Single Version)", "track"},
		{"  Spaced   Out  ", "spaced out"},
		{"Song (Official Music Video)", "song"},
		{"Song [HD]", "song"},
		{"Song (Live at Wembley)", "song"},
		{"Alive", "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeTrackName(tt.input))
		})
	}
}
