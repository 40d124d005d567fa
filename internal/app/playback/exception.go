package playback

import (
	"fmt"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/track"
)

// authRequiredMessages are backend messages caused by a source that wants a signed-in account.
var authRequiredMessages = []string{
	"Sign in to confirm you're not a bot",
	"Please sign in",
	"This video requires login.",
}

const authRequiredHint = "You will need to sign in to Google to play YouTube tracks. Enable YouTube OAuth on the audio node."

// IsAuthRequired reports whether the exception means the source needs a signed-in account.
func IsAuthRequired(e *TrackError) bool {
	if e == nil {
		return false
	}
	for _, m := range authRequiredMessages {
		if e.Message == m {
			return true
		}
	}
	return false
}

// DescribeTrackException renders the diagnostic block logged for a failed track.
func DescribeTrackException(t track.Track, e *TrackError) string {
	var b strings.Builder
	b.WriteString("Track exception occurred:\n")
	fmt.Fprintf(&b, "  Track ID: %s\n", t.Identifier)
	fmt.Fprintf(&b, "  Title: %s\n", orNA(t.Title))
	fmt.Fprintf(&b, "  URI: %s\n", orNA(t.URI))
	fmt.Fprintf(&b, "  Author: %s\n", orNA(t.Author))
	if t.Duration > 0 {
		fmt.Fprintf(&b, "  Duration: %dms\n", t.Duration.Milliseconds())
	} else {
		b.WriteString("  Duration: Unknown\n")
	}
	if t.SourceName != "" {
		fmt.Fprintf(&b, "  Source: %s\n", t.SourceName)
	} else {
		b.WriteString("  Source: Unknown\n")
	}

	if e != nil {
		fmt.Fprintf(&b, "  Exception Severity: %s\n", e.Severity)
		fmt.Fprintf(&b, "  Exception Message: %s\n", orNA(e.Message))
	}

	if u := t.Metadata.User; u != nil {
		fmt.Fprintf(&b, "  Requested by: %s (ID: %s)\n", u.Username, u.ID)
	}
	if ri := t.Metadata.RequestInfo; ri != nil {
		fmt.Fprintf(&b, "  Original query: %s\n", orNA(ri.Query))
	}

	if e != nil && e.Cause != nil {
		fmt.Fprintf(&b, "  Root Cause: %T - %v\n", e.Cause, e.Cause)
	}
	return b.String()
}

// logTrackException logs a backend exception. Playback state is left to the
// end event the backend delivers separately.
func logTrackException(guildID snowflake.ID, t track.Track, e *TrackError) {
	details := DescribeTrackException(t, e)
	if IsAuthRequired(e) {
		zlog.Error().Msgf("playback: track %s has failed to play: guild=%s %s. %s\n%s",
			t.Identifier, guildID, e.Message, authRequiredHint, details)
		return
	}
	var err error
	if e != nil {
		err = e
	}
	zlog.Error().Err(err).Msgf("playback: track %s has failed to play: guild=%s\n%s", t.Identifier, guildID, details)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
