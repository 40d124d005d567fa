package playback

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/osa030/guildbox/internal/domain/track"
)

// Errors
var (
	ErrNoTrack          = errors.New("there is no music playing")
	ErrInvalidVolume    = errors.New("volume must be a valid integer between 0 and 150")
	ErrInvalidSkipRatio = errors.New("the provided value must be between 0 and 100")
	ErrSameIndex        = errors.New("can't move a track to the same position")
	ErrNotOwner         = errors.New("you can only remove tracks you added")
)

// TrackError is an exception reported by the audio backend during playback.
type TrackError struct {
	Message  string
	Severity track.Severity
	Cause    error
}

func (e *TrackError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TrackError) Unwrap() error {
	return e.Cause
}
