package playback

import (
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/domain/track"
)

// EventType represents an audio backend event type.
type EventType int

const (
	EventTrackStarted   EventType = iota // Backend started playing a track
	EventTrackEnded                      // Backend finished or abandoned a track
	EventTrackException                  // Backend hit an error while playing
	EventPlayerUpdate                    // Periodic position report
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackException:
		return "track_exception"
	case EventPlayerUpdate:
		return "player_update"
	default:
		return "unknown"
	}
}

// EndReason tells why a track stopped playing.
type EndReason int

const (
	EndFinished   EndReason = iota // Played to the end
	EndLoadFailed                  // Could not be loaded or decoded
	EndStopped                     // Stopped by a command
	EndReplaced                    // Another track was started over it
	EndCleanup                     // Player was torn down
)

// String returns the string representation of the end reason.
func (r EndReason) String() string {
	switch r {
	case EndFinished:
		return "FINISHED"
	case EndLoadFailed:
		return "LOAD_FAILED"
	case EndStopped:
		return "STOPPED"
	case EndReplaced:
		return "REPLACED"
	case EndCleanup:
		return "CLEANUP"
	default:
		return "UNKNOWN"
	}
}

// Event is a notification from the audio backend for one guild.
type Event struct {
	Type     EventType
	GuildID  snowflake.ID
	Track    track.Track
	Reason   EndReason     // EventTrackEnded only
	Err      *TrackError   // EventTrackException only
	Position time.Duration // EventPlayerUpdate only
	Paused   bool          // EventPlayerUpdate only
}
