// Package playback provides the per-guild playback session: queue, current
// track, repeat policy, skip votes and the track lifecycle state machine.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No current track
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
