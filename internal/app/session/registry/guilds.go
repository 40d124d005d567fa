// Package registry provides the per-guild session registry.
package registry

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/app/playback"
)

// GuildRegistry maps guilds to their playback sessions with thread-safe access.
type GuildRegistry struct {
	mu       sync.RWMutex
	sessions map[snowflake.ID]*playback.Controller
}

// NewGuildRegistry creates a new guild registry.
func NewGuildRegistry() *GuildRegistry {
	return &GuildRegistry{
		sessions: make(map[snowflake.ID]*playback.Controller),
	}
}

// Get returns the session of a guild.
func (r *GuildRegistry) Get(guildID snowflake.ID) (*playback.Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.sessions[guildID]
	return c, ok
}

// GetOrCreate returns the session of a guild, creating it with create when
// missing. create runs under the registry lock and must not block.
func (r *GuildRegistry) GetOrCreate(guildID snowflake.ID, create func() *playback.Controller) (*playback.Controller, bool) {
	if c, ok := r.Get(guildID); ok {
		return c, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.sessions[guildID]; ok {
		return c, false
	}
	c := create()
	r.sessions[guildID] = c
	return c, true
}

// Remove drops the session of a guild and returns it.
func (r *GuildRegistry) Remove(guildID snowflake.ID) (*playback.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.sessions[guildID]
	if ok {
		delete(r.sessions, guildID)
	}
	return c, ok
}

// All returns all sessions.
func (r *GuildRegistry) All() []*playback.Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*playback.Controller, 0, len(r.sessions))
	for _, c := range r.sessions {
		result = append(result, c)
	}
	return result
}

// Count returns the number of sessions.
func (r *GuildRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
