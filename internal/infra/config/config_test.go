package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
discord:
  token: test-discord-token
admin:
  token: test-admin-token
`

func TestConfig_Validate_RequiredFields(t *testing.T) {
	valid := func() Config {
		cfg, err := Parse([]byte(minimalYAML))
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing discord token",
			mutate:  func(c *Config) { c.Discord.Token = "" },
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name:    "missing admin token",
			mutate:  func(c *Config) { c.Admin.Token = "" },
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name:    "spotify secret without id",
			mutate:  func(c *Config) { c.Spotify.ClientSecret = "secret" },
			wantErr: true,
			errMsg:  "ClientID",
		},
		{
			name: "invalid market length",
			mutate: func(c *Config) {
				c.Spotify.ClientID = "id"
				c.Spotify.ClientSecret = "secret"
				c.Spotify.Market = "JAPAN"
			},
			wantErr: true,
			errMsg:  "Market",
		},
		{
			name:    "skip ratio above one",
			mutate:  func(c *Config) { c.Playback.SkipRatio = 1.5 },
			wantErr: true,
			errMsg:  "SkipRatio",
		},
		{
			name:    "volume above maximum",
			mutate:  func(c *Config) { c.Playback.DefaultVolume = 151 },
			wantErr: true,
			errMsg:  "DefaultVolume",
		},
		{
			name:    "unknown settings backend",
			mutate:  func(c *Config) { c.Settings.Backend = "etcd" },
			wantErr: true,
			errMsg:  "Backend",
		},
		{
			name:    "store driver without dsn",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: true,
			errMsg:  "DSN",
		},
		{
			name: "store driver with dsn",
			mutate: func(c *Config) {
				c.Store.Driver = "sqlite3"
				c.Store.DSN = "guildbox.db"
			},
			wantErr: false,
		},
		{
			name: "provider without type",
			mutate: func(c *Config) {
				c.Playlists.Providers = []ProviderConfig{{DisplayName: "Folder", Settings: map[string]any{"dir": "x"}}}
			},
			wantErr: true,
			errMsg:  "Type",
		},
		{
			name:    "invalid default game",
			mutate:  func(c *Config) { c.Discord.DefaultGame = "dancing to music" },
			wantErr: true,
			errMsg:  "default_game",
		},
		{
			name:    "valid default game",
			mutate:  func(c *Config) { c.Discord.DefaultGame = "listening to the radio" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 0.55, cfg.Playback.SkipRatio)
	assert.Equal(t, 100, cfg.Playback.DefaultVolume)
	assert.Equal(t, "memory", cfg.Settings.Backend)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, 10000, cfg.NowPlaying.IntervalMs)
	assert.Equal(t, ":8080", cfg.Admin.Addr)
	assert.Equal(t, "JP", cfg.Spotify.Market)
	assert.False(t, cfg.SpotifyEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
discord:
  token: from-file
admin:
  token: from-file
spotify:
  client_id: file-id
  client_secret: file-secret
`), 0o644))

	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Discord.Token)
	assert.Equal(t, "from-file", cfg.Admin.Token)
	assert.Equal(t, "file-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-secret", cfg.Spotify.ClientSecret)
	assert.True(t, cfg.SpotifyEnabled())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfig_GetMessage(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	tests := []struct {
		code string
		want string
	}{
		{"duplicate_track", cfg.Messages.DuplicateTrack},
		{"duration_limit_exceeded", cfg.Messages.DurationLimitExceeded},
		{"something_else", cfg.Messages.DefaultError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.GetMessage(tt.code))
			assert.NotEmpty(t, cfg.GetMessage(tt.code))
		})
	}
}

func TestConfig_Filters(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
filters:
  duration_limit_filter:
    enabled: true
    settings:
      max_seconds: 600
  duplicate_track_filter:
    enabled: false
`))
	require.NoError(t, err)

	assert.True(t, cfg.IsFilterEnabled("duration_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("duplicate_track_filter"))
	assert.False(t, cfg.IsFilterEnabled("unknown"))
	assert.Equal(t, 600, cfg.GetFilterSettings("duration_limit_filter")["max_seconds"])
	assert.Nil(t, cfg.GetFilterSettings("unknown"))
}
