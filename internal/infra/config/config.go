// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord    DiscordConfig           `yaml:"discord"`
	Playback   PlaybackConfig          `yaml:"playback"`
	NowPlaying NowPlayingConfig        `yaml:"nowplaying"`
	Linkdave   LinkdaveConfig          `yaml:"linkdave"`
	Settings   SettingsConfig          `yaml:"settings"`
	Store      StoreConfig             `yaml:"store"`
	Playlists  PlaylistsConfig         `yaml:"playlists"`
	Spotify    SpotifyConfig           `yaml:"spotify"`
	Filters    map[string]FilterConfig `yaml:"filters"`
	Messages   MessagesConfig          `yaml:"messages"`
	Admin      AdminConfig             `yaml:"admin"`
}

// DiscordConfig represents chat platform configuration.
type DiscordConfig struct {
	Token        string `yaml:"token" validate:"required"`
	SongInStatus bool   `yaml:"song_in_status"`
	DefaultGame  string `yaml:"default_game"`
	SuccessEmoji string `yaml:"success_emoji" default:"🎶"`
	DJRole       string `yaml:"dj_role" default:"DJ"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	StayConnected bool    `yaml:"stay_connected"`
	SkipRatio     float64 `yaml:"skip_ratio" default:"0.55" validate:"gte=0,lte=1"`
	DefaultVolume int     `yaml:"default_volume" default:"100" validate:"gte=0,lte=150"`
	NPImages      bool    `yaml:"np_images"`
	LaneSize      int     `yaml:"lane_size" default:"64" validate:"gte=1"`
	SaveTimeoutMs int     `yaml:"save_timeout_ms" default:"5000" validate:"gte=100"`
}

// NowPlayingConfig represents now playing reconciliation configuration.
type NowPlayingConfig struct {
	IntervalMs    int     `yaml:"interval_ms" default:"10000" validate:"gte=1000"`
	EditRate      float64 `yaml:"edit_rate" default:"4" validate:"gt=0"`
	EditBurst     int     `yaml:"edit_burst" default:"10" validate:"gte=1"`
	EditTimeoutMs int     `yaml:"edit_timeout_ms" default:"10000" validate:"gte=100"`
}

// LinkdaveConfig represents audio node configuration.
type LinkdaveConfig struct {
	URL        string `yaml:"url" default:"ws://localhost:8080/ws" validate:"required,url"`
	Password   string `yaml:"password"`
	ClientName string `yaml:"client_name" default:"guildbox"`
}

// SettingsConfig selects the guild settings store.
type SettingsConfig struct {
	Backend string      `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig represents redis connection configuration.
type RedisConfig struct {
	Addr      string `yaml:"addr" default:"localhost:6379"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0"`
	KeyPrefix string `yaml:"key_prefix" default:"guildbox"`
}

// StoreConfig selects the now playing location store.
type StoreConfig struct {
	Driver string `yaml:"driver" default:"none" validate:"oneof=none postgres sqlite3"`
	DSN    string `yaml:"dsn" validate:"required_unless=Driver none"`
}

// PlaylistsConfig represents default playlist configuration.
type PlaylistsConfig struct {
	Providers []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single default playlist provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings" validate:"required"`
}

// SpotifyConfig represents Spotify API configuration.
// Leaving the credentials empty disables the Spotify resolver.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required_with=ClientSecret"`
	ClientSecret string `yaml:"client_secret" validate:"required_with=ClientID"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages for rejected requests.
type MessagesConfig struct {
	DefaultError          string `yaml:"default_error" default:"This track cannot be added."`
	DuplicateTrack        string `yaml:"duplicate_track" default:"This track is already in the queue."`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"This track is longer than the allowed maximum."`
}

// AdminConfig represents admin RPC configuration.
type AdminConfig struct {
	Addr  string `yaml:"addr" default:":8080"`
	Token string `yaml:"token" validate:"required"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Settings.Redis.Password = v
	}
	if v := os.Getenv("STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("LINKDAVE_PASSWORD"); v != "" {
		c.Linkdave.Password = v
	}
}

// GetMessage returns the message for the given filter rejection code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateDefaultGame(); err != nil {
		return err
	}

	return nil
}

// validateDefaultGame checks that the default game starts with a known activity verb.
func (c *Config) validateDefaultGame() error {
	game := strings.TrimSpace(c.Discord.DefaultGame)
	if game == "" {
		return nil
	}
	verb, _, _ := strings.Cut(strings.ToLower(game), " ")
	switch verb {
	case "playing", "listening", "watching", "streaming":
		return nil
	}
	return errors.Newf("default_game (%s) must start with playing, listening, watching or streaming", c.Discord.DefaultGame)
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}

// NowPlayingInterval returns the reconcile loop interval.
func (c *Config) NowPlayingInterval() time.Duration {
	return time.Duration(c.NowPlaying.IntervalMs) * time.Millisecond
}

// NowPlayingEditTimeout returns the timeout of a single status message edit.
func (c *Config) NowPlayingEditTimeout() time.Duration {
	return time.Duration(c.NowPlaying.EditTimeoutMs) * time.Millisecond
}

// SaveTimeout returns the timeout of a guild settings write.
func (c *Config) SaveTimeout() time.Duration {
	return time.Duration(c.Playback.SaveTimeoutMs) * time.Millisecond
}
