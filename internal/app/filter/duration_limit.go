package filter

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/track"
)

const codeDurationLimit = "duration_limit_exceeded"

// DurationLimitConfig represents the configuration for DurationLimitFilter.
type DurationLimitConfig struct {
	MinSeconds int64 `mapstructure:"min_seconds" validate:"gte=0"`
	MaxSeconds int64 `mapstructure:"max_seconds" validate:"gte=0"` // 0 disables the limit
}

// DurationLimitFilter rejects tracks longer than the configured maximum.
// Live streams have no length and are rejected whenever a maximum is set.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects tracks longer than the allowed maximum"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{codeDurationLimit}
}

// ValidateConfig decodes min_seconds and max_seconds. Values may be strings.
func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	if config.MaxSeconds > 0 && config.MinSeconds > config.MaxSeconds {
		return errors.Newf("min_seconds %d is greater than max_seconds %d", config.MinSeconds, config.MaxSeconds)
	}

	f.config = &config
	zlog.Info().Msgf("filter: duration limit: min=%ds max=%ds", config.MinSeconds, config.MaxSeconds)
	return nil
}

func (f *DurationLimitFilter) AppliesTo(source Source) bool {
	return source == SourceUser
}

// Check rejects streams when a maximum is set, since their length is unknown.
// Tracks without a known length pass the minimum.
func (f *DurationLimitFilter) Check(ctx context.Context, req TrackRequest, t track.Track) Result {
	if f.config == nil {
		return Accept()
	}
	limit, floor := f.config.MaxSeconds, f.config.MinSeconds
	seconds := int64(math.Round(t.Duration.Seconds()))

	switch {
	case limit > 0 && (t.Stream || seconds > limit):
		return Reject(codeDurationLimit)
	case t.Duration > 0 && seconds < floor:
		return Reject(codeDurationLimit)
	}
	return Accept()
}

// MaxSeconds returns the configured maximum, 0 for no limit.
func (f *DurationLimitFilter) MaxSeconds() int64 {
	if f.config == nil {
		return 0
	}
	return f.config.MaxSeconds
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return &DurationLimitFilter{}
	})
}
