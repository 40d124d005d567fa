package bgm

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/infra/config"
)

// NewProviderChainFromConfig creates a provider chain from configuration.
// An empty provider list yields an empty chain, which disables default playlists.
func NewProviderChainFromConfig(cfg *config.Config) (*ProviderChain, error) {
	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Playlists.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating playlist provider: index=%d type=%s settings=%+v", i+1, pcfg.Type, pcfg.Settings)
		switch pcfg.Type {
		case "folder":
			provider, err = NewFolderProvider(pcfg.Settings)

		case "spotify":
			provider, err = NewSpotifyProvider(pcfg.Settings)

		case "lastfm":
			provider, err = NewLastFMProvider(pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered playlist provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewProviderChain(providers), nil
}
