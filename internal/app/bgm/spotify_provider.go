package bgm

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/playlist"
)

// SpotifyProviderConfig maps playlist names to Spotify playlist URLs.
type SpotifyProviderConfig struct {
	Playlists map[string]string `mapstructure:"playlists" validate:"required,min=1,dive,keys,required,endkeys,required"`
	Shuffle   bool              `mapstructure:"shuffle" default:"false"`
}

// SpotifyProvider serves named playlists backed by a Spotify playlist.
// The playlist URL is the single item; the Spotify resolver expands it.
type SpotifyProvider struct {
	config *SpotifyProviderConfig
}

// NewSpotifyProvider creates a new SpotifyProvider.
func NewSpotifyProvider(settings map[string]any) (*SpotifyProvider, error) {
	var config SpotifyProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("spotify provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("spotify provider validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}
	return &SpotifyProvider{config: &config}, nil
}

// Playlist returns the configured playlist.
func (p *SpotifyProvider) Playlist(ctx context.Context, name string) (*playlist.Playlist, bool, error) {
	url, ok := p.config.Playlists[name]
	if !ok {
		return nil, false, nil
	}
	return &playlist.Playlist{
		Name:    name,
		Items:   []string{url},
		Shuffle: p.config.Shuffle,
	}, true, nil
}

// Names lists the configured playlist names.
func (p *SpotifyProvider) Names(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(p.config.Playlists))
	for name := range p.config.Playlists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Name returns the provider name.
func (p *SpotifyProvider) Name() string {
	return "spotify"
}
