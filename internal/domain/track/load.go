package track

import "fmt"

// LoadResultType is the outcome kind of a resolver lookup.
type LoadResultType int

const (
	LoadTrack    LoadResultType = iota // Single track
	LoadPlaylist                       // Ordered list of tracks
	LoadSearch                         // Search results, Selected marks the pick
	LoadNoMatch                        // Nothing found
	LoadFailed                         // Lookup failed, see Err
)

// String returns the string representation of the result type.
func (t LoadResultType) String() string {
	switch t {
	case LoadTrack:
		return "track"
	case LoadPlaylist:
		return "playlist"
	case LoadSearch:
		return "search"
	case LoadNoMatch:
		return "no_match"
	case LoadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Severity classifies load and playback failures.
type Severity int

const (
	SeverityCommon     Severity = iota // Expected failure, safe to show to users
	SeveritySuspicious                 // Unexpected but probably not a bug
	SeverityFault                      // Internal failure
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityCommon:
		return "COMMON"
	case SeveritySuspicious:
		return "SUSPICIOUS"
	case SeverityFault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// LoadError is returned by resolvers when a lookup fails.
type LoadError struct {
	Severity Severity
	Message  string
	Cause    error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// UserMessage is the text shown to the requester. Only COMMON failures expose detail.
func (e *LoadError) UserMessage() string {
	if e.Severity == SeverityCommon {
		return "Error loading: " + e.Message
	}
	return "Error loading track."
}

// LoadResult is what a resolver yields for a query.
type LoadResult struct {
	Type         LoadResultType
	Tracks       []Track
	PlaylistName string
	Selected     int // Index into Tracks for LoadSearch, -1 otherwise
	Err          *LoadError
}

// Pick returns the track a single-item request should use.
func (r LoadResult) Pick() (Track, bool) {
	if len(r.Tracks) == 0 {
		return Track{}, false
	}
	if r.Type == LoadSearch && r.Selected >= 0 && r.Selected < len(r.Tracks) {
		return r.Tracks[r.Selected], true
	}
	return r.Tracks[0], true
}
