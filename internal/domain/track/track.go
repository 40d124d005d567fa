// Package track provides the Track domain entity and its request provenance.
package track

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Track is a playable unit as reported by a resolver.
type Track struct {
	Identifier string        // Source-specific identifier
	Title      string        // Track title
	URI        string        // Playable URI handed to the audio backend
	Author     string        // Uploader or artist
	Duration   time.Duration // Track length (0 if unknown)
	Seekable   bool          // Whether the backend can seek inside the track
	Stream     bool          // Live stream without a fixed length
	SourceName string        // Resolver that produced the track (e.g. "spotify", "http")
	ArtworkURL string        // Thumbnail URL, optional

	Metadata RequestMetadata // Who requested it and how
}

// Owner returns the id of the user that requested the track, or 0 for autoplay.
func (t Track) Owner() snowflake.ID {
	return t.Metadata.Owner()
}

// Clone returns a new instance with the same source identity and metadata.
// Used when a finished track is re-enqueued by the repeat policy.
func (t Track) Clone() Track {
	return t
}

// SameSource reports whether both tracks point at the same playable resource.
func (t Track) SameSource(other Track) bool {
	if t.URI != "" || other.URI != "" {
		return t.URI == other.URI
	}
	return t.Identifier == other.Identifier
}

// QueuedTrack is a track waiting in a guild queue.
type QueuedTrack struct {
	Track   Track     // Track and its metadata
	AddedAt time.Time // Time when added to queue
}

// NewQueuedTrack wraps a track for queueing.
func NewQueuedTrack(t Track) QueuedTrack {
	return QueuedTrack{
		Track:   t,
		AddedAt: time.Now(),
	}
}

// Owner returns the id of the user the entry belongs to (0 for autoplay).
func (q QueuedTrack) Owner() snowflake.ID {
	return q.Track.Owner()
}
