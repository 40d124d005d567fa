// Package guild provides per-guild playback settings.
package guild

import (
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidRepeatMode is returned when a repeat mode string is not recognised.
	ErrInvalidRepeatMode = errors.New("valid options are `off`, `all` or `single` (or leave empty to toggle between `off` and `all`)")
	// ErrInvalidQueueType is returned when a queue type string is not recognised.
	ErrInvalidQueueType = errors.New("invalid queue type, valid types are: [linear, fair]")
)

// QueueType selects the insertion policy of a guild queue.
type QueueType int

const (
	QueueLinear QueueType = iota // Strict arrival order
	QueueFair                    // Round robin by owner
)

// String returns the string representation of the queue type.
func (q QueueType) String() string {
	switch q {
	case QueueLinear:
		return "linear"
	case QueueFair:
		return "fair"
	default:
		return "unknown"
	}
}

// FriendlyName returns the display name.
func (q QueueType) FriendlyName() string {
	switch q {
	case QueueFair:
		return "Fair"
	default:
		return "Linear"
	}
}

// Emoji returns the icon shown next to the queue type.
func (q QueueType) Emoji() string {
	switch q {
	case QueueFair:
		return "🔢"
	default:
		return "⏩"
	}
}

// ParseQueueType parses a queue type name.
func ParseQueueType(s string) (QueueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear", "fifo":
		return QueueLinear, nil
	case "fair":
		return QueueFair, nil
	default:
		return 0, errors.Wrapf(ErrInvalidQueueType, "%q", s)
	}
}

// RepeatMode controls what happens to a track after it finishes.
type RepeatMode int

const (
	RepeatOff    RepeatMode = iota // Finished track is discarded
	RepeatAll                      // Finished track is appended to the tail
	RepeatSingle                   // Finished track is replayed immediately
)

// String returns the string representation of the repeat mode.
func (r RepeatMode) String() string {
	switch r {
	case RepeatOff:
		return "off"
	case RepeatAll:
		return "all"
	case RepeatSingle:
		return "single"
	default:
		return "unknown"
	}
}

// FriendlyName returns the display name.
func (r RepeatMode) FriendlyName() string {
	switch r {
	case RepeatAll:
		return "All"
	case RepeatSingle:
		return "Single"
	default:
		return "Off"
	}
}

// Emoji returns the icon shown in the status line, empty for RepeatOff.
func (r RepeatMode) Emoji() string {
	switch r {
	case RepeatAll:
		return "🔁"
	case RepeatSingle:
		return "🔂"
	default:
		return ""
	}
}

// ParseRepeatMode parses a repeat mode argument. An empty argument toggles
// between RepeatOff and RepeatAll based on current.
func ParseRepeatMode(s string, current RepeatMode) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		if current == RepeatOff {
			return RepeatAll, nil
		}
		return RepeatOff, nil
	case "off", "false":
		return RepeatOff, nil
	case "all", "on", "true":
		return RepeatAll, nil
	case "one", "single":
		return RepeatSingle, nil
	default:
		return current, errors.Wrapf(ErrInvalidRepeatMode, "%q", s)
	}
}

// UseDefaultSkipRatio marks a guild that has no skip ratio of its own.
const UseDefaultSkipRatio = -1

// Settings is the persisted per-guild playback configuration.
type Settings struct {
	QueueType       QueueType
	RepeatMode      RepeatMode
	SkipRatio       float64 // Fraction 0..1, or UseDefaultSkipRatio
	DefaultPlaylist string  // Name of the fallback playlist, empty for none
	Volume          int
	StayConnected   bool
}

// Defaults returns the settings of a guild that has never been configured.
func Defaults(volume int, stayConnected bool) Settings {
	return Settings{
		QueueType:     QueueFair,
		RepeatMode:    RepeatOff,
		SkipRatio:     UseDefaultSkipRatio,
		Volume:        volume,
		StayConnected: stayConnected,
	}
}

// EffectiveSkipRatio resolves UseDefaultSkipRatio against the deployment default.
func (s Settings) EffectiveSkipRatio(fallback float64) float64 {
	if s.SkipRatio < 0 {
		return fallback
	}
	return s.SkipRatio
}
