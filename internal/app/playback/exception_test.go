package playback

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/osa030/guildbox/internal/domain/track"
)

func TestIsAuthRequired(t *testing.T) {
	tests := []struct {
		message  string
		expected bool
	}{
		{"Sign in to confirm you're not a bot", true},
		{"Please sign in", true},
		{"This video requires login.", true},
		{"Video unavailable", false},
		{"please sign in", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsAuthRequired(&TrackError{Message: tt.message}))
		})
	}
	assert.False(t, IsAuthRequired(nil))
}

func TestDescribeTrackException(t *testing.T) {
	tr := track.Track{
		Identifier: "abc",
		Title:      "Song",
		URI:        "https://example.com/song.mp3",
		SourceName: "http",
		Metadata: track.NewRequestMetadata(
			&track.UserInfo{ID: 42, Username: "alice"},
			track.NewRequestInfo("song query", "https://example.com/song.mp3", 0),
		),
	}
	e := &TrackError{Message: "decode failed", Severity: track.SeverityFault, Cause: errors.New("unexpected EOF")}

	out := DescribeTrackException(tr, e)

	assert.Contains(t, out, "  Track ID: abc\n")
	assert.Contains(t, out, "  Title: Song\n")
	assert.Contains(t, out, "  Author: N/A\n")
	assert.Contains(t, out, "  Duration: Unknown\n")
	assert.Contains(t, out, "  Source: http\n")
	assert.Contains(t, out, "  Exception Severity: FAULT\n")
	assert.Contains(t, out, "  Exception Message: decode failed\n")
	assert.Contains(t, out, "  Requested by: alice (ID: 42)\n")
	assert.Contains(t, out, "  Original query: song query\n")
	assert.Contains(t, out, "unexpected EOF")
}
