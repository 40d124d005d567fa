package bgm

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/playlist"
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain looks playlists up in multiple providers in order.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// Playlist returns the named playlist from the first provider that has it.
// A failing provider is skipped.
func (c *ProviderChain) Playlist(ctx context.Context, name string) (*playlist.Playlist, bool, error) {
	var failures []error
	for i, pm := range c.providers {
		zlog.Debug().Msgf("looking up playlist: index=%d total=%d provider=%s playlist=%s",
			i+1, len(c.providers), pm.DisplayName, name)

		p, ok, err := pm.Provider.Playlist(ctx, name)
		if err != nil {
			zlog.Warn().Msgf("provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			failures = append(failures, errors.Wrapf(err, "provider %s", pm.DisplayName))
			continue
		}
		if ok {
			return p, true, nil
		}
	}

	if len(failures) == len(c.providers) && len(failures) > 0 {
		return nil, false, errors.Wrapf(failures[0], "all providers failed for playlist %q", name)
	}
	return nil, false, nil
}

// Names returns the sorted, de-duplicated playlist names of every provider.
func (c *ProviderChain) Names(ctx context.Context) ([]string, error) {
	var names []string
	for _, pm := range c.providers {
		n, err := pm.Provider.Names(ctx)
		if err != nil {
			zlog.Warn().Msgf("failed to list playlists: provider=%s error=%v", pm.DisplayName, err)
			continue
		}
		names = append(names, n...)
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Name returns the chain name.
func (c *ProviderChain) Name() string {
	return "provider_chain"
}
