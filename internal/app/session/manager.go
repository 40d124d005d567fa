// Package session provides the guild session manager.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/bgm"
	"github.com/osa030/guildbox/internal/app/filter"
	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/app/session/registry"
	"github.com/osa030/guildbox/internal/domain/guild"
	"github.com/osa030/guildbox/internal/domain/listener"
	"github.com/osa030/guildbox/internal/domain/playlist"
	"github.com/osa030/guildbox/internal/domain/track"
	"github.com/osa030/guildbox/internal/infra/config"
)

// Backend is the audio node connection shared by every guild.
type Backend interface {
	Player(guildID snowflake.ID) playback.Player
	Events() <-chan playback.Event
	Destroy(guildID snowflake.ID)
}

// Voice manages voice connections and reports who is listening.
// Members reads cached gateway state and must not block.
type Voice interface {
	Join(ctx context.Context, guildID, channelID snowflake.ID) error
	Disconnect(guildID snowflake.ID)
	Connected(guildID snowflake.ID) bool
	Members(guildID snowflake.ID) ([]listener.Member, error)
}

// SettingsStore loads and saves guild settings.
type SettingsStore interface {
	Load(ctx context.Context, guildID snowflake.ID) (guild.Settings, bool, error)
	Save(ctx context.Context, guildID snowflake.ID, s guild.Settings) error
}

// Resolver turns queries into tracks.
type Resolver interface {
	Resolve(ctx context.Context, query string) track.LoadResult
}

// PlaylistCatalog looks default playlists up.
type PlaylistCatalog interface {
	Playlist(ctx context.Context, name string) (*playlist.Playlist, bool, error)
	Names(ctx context.Context) ([]string, error)
}

// Deps are the collaborators of the manager. Playlists and Notifiers are optional.
type Deps struct {
	Backend   Backend
	Voice     Voice
	Settings  SettingsStore
	Resolver  Resolver
	Playlists PlaylistCatalog
	Notifiers []playback.Notifier
}

// Manager owns the playback sessions of every guild. Sessions are created
// lazily on first use and removed when the guild becomes unreachable.
type Manager struct {
	config *config.Config

	registry    *registry.GuildRegistry
	filterChain *filter.Chain
	loader      *bgm.Loader
	notifier    playback.Notifier

	backend   Backend
	voice     Voice
	settings  SettingsStore
	resolver  Resolver
	playlists PlaylistCatalog

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewManager creates a new session manager.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	if deps.Backend == nil || deps.Voice == nil || deps.Settings == nil || deps.Resolver == nil {
		return nil, errors.New("backend, voice, settings and resolver are required")
	}
	if deps.Playlists == nil {
		deps.Playlists = bgm.NewProviderChain(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:      cfg,
		registry:    registry.NewGuildRegistry(),
		filterChain: filter.NewChain(),
		notifier:    fanOut(deps.Notifiers),
		backend:     deps.Backend,
		voice:       deps.Voice,
		settings:    deps.Settings,
		resolver:    deps.Resolver,
		playlists:   deps.Playlists,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	maxSeconds, err := m.setupFilters()
	if err != nil {
		cancel()
		return nil, err
	}
	m.loader = bgm.NewLoader(deps.Playlists, deps.Resolver, time.Duration(maxSeconds)*time.Second)

	return m, nil
}

// setupFilters initializes the filter chain and returns the track length limit.
func (m *Manager) setupFilters() (int64, error) {
	cfg := m.config
	var maxSeconds int64

	// DuplicateTrackFilter
	if cfg.IsFilterEnabled("duplicate_track_filter") {
		m.filterChain.Add(filter.NewDuplicateTrackFilter(m))
	}

	// Config driven filters
	for name, factory := range filter.GetRegistered() {
		if !cfg.IsFilterEnabled(name) {
			continue
		}
		f := factory()
		if err := f.ValidateConfig(cfg.GetFilterSettings(name)); err != nil {
			return 0, errors.Wrapf(err, "invalid config for filter %s", name)
		}
		if d, ok := f.(*filter.DurationLimitFilter); ok {
			maxSeconds = d.MaxSeconds()
		}
		m.filterChain.Add(f)
		zlog.Info().Msgf("filter enabled: name=%s", name)
	}
	return maxSeconds, nil
}

// Run consumes backend events until ctx is done or the manager is closed.
func (m *Manager) Run(ctx context.Context) {
	defer m.once.Do(func() { close(m.done) })
	for !m.eventLoop(ctx) {
		zlog.Info().Msg("restarting event loop")
	}
}

// eventLoop returns true when it stopped normally and false after a panic.
func (m *Manager) eventLoop(ctx context.Context) (stopped bool) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("event loop panicked: %v", r)
			stopped = false
		}
	}()

	events := m.backend.Events()
	for {
		select {
		case <-ctx.Done():
			return true
		case <-m.ctx.Done():
			return true
		case e, ok := <-events:
			if !ok {
				return true
			}
			m.dispatch(e)
		}
	}
}

func (m *Manager) dispatch(e playback.Event) {
	c, ok := m.registry.Get(e.GuildID)
	if !ok {
		zlog.Debug().Msgf("event for guild without session: guild=%s type=%s", e.GuildID, e.Type)
		return
	}
	c.Dispatch(e)
}

// Done is closed when Run returns.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// session returns the session of a guild, creating it on first use.
func (m *Manager) session(ctx context.Context, guildID snowflake.ID) *playback.Controller {
	if c, ok := m.registry.Get(guildID); ok {
		return c
	}

	settings, found, err := m.settings.Load(ctx, guildID)
	if err != nil {
		zlog.Warn().Msgf("failed to load guild settings, using defaults: guild=%s error=%v", guildID, err)
	}
	if err != nil || !found {
		settings = guild.Defaults(m.config.Playback.DefaultVolume, m.config.Playback.StayConnected)
	}

	c, created := m.registry.GetOrCreate(guildID, func() *playback.Controller {
		return playback.NewController(guildID, settings, playback.Deps{
			Player:    m.backend.Player(guildID),
			Voice:     m.voice,
			Notifier:  m.notifier,
			Playlists: m.loader,
			Settings:  m.settings,
		}, playback.Config{
			DefaultSkipRatio: m.config.Playback.SkipRatio,
			LaneSize:         m.config.Playback.LaneSize,
			SaveTimeout:      m.config.SaveTimeout(),
		})
	})
	if created {
		zlog.Info().Msgf("session created: guild=%s queue_type=%s repeat=%s volume=%d",
			guildID, settings.QueueType, settings.RepeatMode, settings.Volume)
	}
	return c
}

// existing returns the session of a guild without creating one.
func (m *Manager) existing(guildID snowflake.ID) (*playback.Controller, error) {
	c, ok := m.registry.Get(guildID)
	if !ok {
		return nil, playback.ErrNoTrack
	}
	return c, nil
}

// RemoveGuild destroys the session of a guild that became unreachable.
func (m *Manager) RemoveGuild(guildID snowflake.ID) {
	c, ok := m.registry.Remove(guildID)
	if !ok {
		return
	}
	c.Close()
	m.backend.Destroy(guildID)
	zlog.Info().Msgf("session removed: guild=%s", guildID)
}

// Status reports what a guild is playing. Guilds without a session report
// idle with the default volume.
func (m *Manager) Status(guildID snowflake.ID) (playback.Status, bool) {
	c, ok := m.registry.Get(guildID)
	if !ok {
		return playback.Status{GuildID: guildID, Volume: m.config.Playback.DefaultVolume}, false
	}
	return c.Status(), true
}

// GuildTracks lists the current and pending tracks of a guild.
func (m *Manager) GuildTracks(guildID snowflake.ID) []track.Track {
	c, ok := m.registry.Get(guildID)
	if !ok {
		return nil
	}
	var tracks []track.Track
	if s := c.Status(); s.Track != nil {
		tracks = append(tracks, *s.Track)
	}
	for _, qt := range c.Queue() {
		tracks = append(tracks, qt.Track)
	}
	return tracks
}

// Guilds returns the ids of every guild with a session.
func (m *Manager) Guilds() []snowflake.ID {
	sessions := m.registry.All()
	ids := make([]snowflake.ID, 0, len(sessions))
	for _, c := range sessions {
		ids = append(ids, c.GuildID())
	}
	return ids
}

// Close closes every session.
func (m *Manager) Close() {
	m.cancel()
	for _, c := range m.registry.All() {
		c.Close()
	}
}

// fanOut forwards track updates to several notifiers.
type fanOut []playback.Notifier

func (f fanOut) OnTrackUpdate(guildID snowflake.ID, t *track.Track) {
	for _, n := range f {
		n.OnTrackUpdate(guildID, t)
	}
}
