// Package filter provides the filter chain for enqueue request validation.
package filter

import (
	"context"

	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/domain/track"
)

// Source tells who asked for a track.
type Source int

const (
	SourceUser     Source = iota // Requested by a guild member
	SourceAutoplay               // Default playlist or other system tracks
)

// TrackRequest describes who asked for a track in which guild.
type TrackRequest struct {
	GuildID   snowflake.ID
	Requester snowflake.ID
	Query     string
	Source    Source
}

// Result is the outcome of a filter check.
type Result struct {
	Accepted bool
	Code     string // Rejection code, maps to a configured message
	Filter   string // Rejecting filter, set by Chain
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter decides whether a resolved track may be queued.
// ValidateConfig receives the filter's settings block and must be called
// before Check on config driven filters.
type Filter interface {
	Name() string // Key under filters in config
	Description() string
	ReturnCodes() []string
	ValidateConfig(settings map[string]any) error
	AppliesTo(source Source) bool
	Check(ctx context.Context, req TrackRequest, t track.Track) Result
}

// Config driven filters, registered from init.
var registry = make(map[string]func() Filter)

// Register adds a config driven filter factory under name.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns the config driven filter factories by name. Filters
// that need collaborators, like the duplicate filter, are not registered.
func GetRegistered() map[string]func() Filter {
	return registry
}
