// Package settings persists per-guild playback settings.
package settings

import (
	"context"
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/domain/guild"
)

// MemoryStore keeps settings in process memory. Settings are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	guilds map[snowflake.ID]guild.Settings
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{guilds: make(map[snowflake.ID]guild.Settings)}
}

// Load returns the settings of a guild.
func (s *MemoryStore) Load(ctx context.Context, guildID snowflake.ID) (guild.Settings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.guilds[guildID]
	return v, ok, nil
}

// Save stores the settings of a guild.
func (s *MemoryStore) Save(ctx context.Context, guildID snowflake.ID, v guild.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds[guildID] = v
	return nil
}
