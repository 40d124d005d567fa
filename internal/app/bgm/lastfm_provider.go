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
	"github.com/osa030/guildbox/internal/infra/lastfm"
)

// chartTag selects the global chart instead of a tag chart.
const chartTag = "chart"

// LastFMProviderConfig maps playlist names to Last.fm tags.
type LastFMProviderConfig struct {
	APIKey    string            `mapstructure:"api_key" validate:"required"`
	Playlists map[string]string `mapstructure:"playlists" validate:"required,min=1,dive,keys,required,endkeys,required"`
	Limit     int               `mapstructure:"limit" default:"50" validate:"gte=1,lte=100"`
	Shuffle   bool              `mapstructure:"shuffle" default:"true"`
}

// TopTrackSource fetches charting tracks.
type TopTrackSource interface {
	TagTopTracks(ctx context.Context, tag string, limit int) ([]lastfm.TopTrack, error)
	ChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error)
}

// LastFMProvider serves tag charts as playlists of search queries.
type LastFMProvider struct {
	config *LastFMProviderConfig
	source TopTrackSource
}

// NewLastFMProvider creates a new LastFMProvider.
func NewLastFMProvider(settings map[string]any) (*LastFMProvider, error) {
	// Defaults first: an explicit false must survive.
	var config LastFMProviderConfig
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("lastfm provider validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}
	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, err
	}
	return newLastFMProvider(&config, client), nil
}

func newLastFMProvider(config *LastFMProviderConfig, source TopTrackSource) *LastFMProvider {
	return &LastFMProvider{config: config, source: source}
}

// Playlist fetches the chart of the tag the name maps to.
func (p *LastFMProvider) Playlist(ctx context.Context, name string) (*playlist.Playlist, bool, error) {
	tag, ok := p.config.Playlists[name]
	if !ok {
		return nil, false, nil
	}

	var tracks []lastfm.TopTrack
	var err error
	if tag == chartTag {
		tracks, err = p.source.ChartTopTracks(ctx, p.config.Limit)
	} else {
		tracks, err = p.source.TagTopTracks(ctx, tag, p.config.Limit)
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to fetch chart for %s", name)
	}

	pl := &playlist.Playlist{Name: name, Shuffle: p.config.Shuffle}
	for _, t := range tracks {
		pl.Items = append(pl.Items, t.Query())
	}
	return pl, true, nil
}

// Names lists the configured playlist names.
func (p *LastFMProvider) Names(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(p.config.Playlists))
	for name := range p.config.Playlists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Name returns the provider name.
func (p *LastFMProvider) Name() string {
	return "lastfm"
}
