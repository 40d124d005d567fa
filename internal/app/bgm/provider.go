// Package bgm provides the default playlists played when a guild queue runs dry.
package bgm

import (
	"context"

	"github.com/osa030/guildbox/internal/domain/playlist"
)

// Provider is the interface for default playlist sources.
// Implementations may keep playlists in files, config or remote services.
type Provider interface {
	// Playlist returns the named playlist, or false when the provider does not have it.
	Playlist(ctx context.Context, name string) (*playlist.Playlist, bool, error)

	// Names lists the playlists the provider can serve.
	Names(ctx context.Context) ([]string, error)

	// Name returns the provider name (used in config).
	Name() string
}
