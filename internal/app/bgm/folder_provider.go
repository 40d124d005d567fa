package bgm

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/playlist"
)

// FolderProviderConfig configures a FolderProvider.
type FolderProviderConfig struct {
	Dir       string `mapstructure:"dir" default:"Playlists" validate:"required"`
	Extension string `mapstructure:"extension" default:".txt" validate:"required,startswith=."`
}

// FolderProvider serves text playlists stored as one file per playlist.
type FolderProvider struct {
	config *FolderProviderConfig
}

// NewFolderProvider creates a new FolderProvider.
func NewFolderProvider(settings map[string]any) (*FolderProvider, error) {
	var config FolderProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("folder provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("folder provider validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}
	return &FolderProvider{config: &config}, nil
}

// Playlist reads <dir>/<name><extension>.
func (p *FolderProvider) Playlist(ctx context.Context, name string) (*playlist.Playlist, bool, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, false, nil
	}
	data, err := os.ReadFile(filepath.Join(p.config.Dir, name+p.config.Extension))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "failed to read playlist %q", name)
	}
	return playlist.Parse(name, string(data)), true, nil
}

// Names lists the playlist files in the folder.
func (p *FolderProvider) Names(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.config.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list playlists")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), p.config.Extension) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), p.config.Extension))
	}
	return names, nil
}

// Name returns the provider name.
func (p *FolderProvider) Name() string {
	return "folder"
}
