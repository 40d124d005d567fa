// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/time/rate"

	apiconnect "github.com/osa030/guildbox/internal/api/connect"
	"github.com/osa030/guildbox/internal/app/bgm"
	"github.com/osa030/guildbox/internal/app/filter"
	"github.com/osa030/guildbox/internal/app/notification"
	"github.com/osa030/guildbox/internal/app/nowplaying"
	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/app/resolver"
	"github.com/osa030/guildbox/internal/app/session"
	"github.com/osa030/guildbox/internal/domain/guild"
	"github.com/osa030/guildbox/internal/domain/track"
	"github.com/osa030/guildbox/internal/infra/config"
	"github.com/osa030/guildbox/internal/infra/direct"
	"github.com/osa030/guildbox/internal/infra/discord"
	"github.com/osa030/guildbox/internal/infra/linkdave"
	"github.com/osa030/guildbox/internal/infra/logger"
	"github.com/osa030/guildbox/internal/infra/settings"
	"github.com/osa030/guildbox/internal/infra/spotify"
	"github.com/osa030/guildbox/internal/infra/store"
)

var (
	app        = kingpin.New("guildbox-server", "guildbox music session server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{Level: "info", File: *logfile}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		closer.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	if err := validateFilterConfig(cfg); err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settingsStore, closeSettings, err := openSettings(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSettings.Close()

	locations, err := openLocations(ctx, cfg)
	if err != nil {
		return err
	}
	if locations != nil {
		defer locations.Close()
	}

	chain, err := newResolver(ctx, cfg)
	if err != nil {
		return err
	}

	playlists, err := bgm.NewProviderChainFromConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to create playlist providers")
	}

	botID, err := discord.LookupBotID(ctx, cfg.Discord.Token)
	if err != nil {
		return err
	}
	zlog.Info().Msgf("Bot user resolved: id=%s", botID)

	node := linkdave.New(linkdave.Config{
		URL:        cfg.Linkdave.URL,
		Password:   cfg.Linkdave.Password,
		ClientName: cfg.Linkdave.ClientName,
		BotID:      botID,
	})
	go node.Run(ctx)

	gateway, err := discord.New(discord.Config{
		Token:       cfg.Discord.Token,
		DefaultGame: cfg.Discord.DefaultGame,
		DJRole:      cfg.Discord.DJRole,
	}, node)
	if err != nil {
		return err
	}

	notifications := notification.NewManager()

	// The reconciler reads status from the manager, which notifies the
	// reconciler; the notifier is bound before the manager starts.
	np := &lateNotifier{}
	sessions, err := session.NewManager(cfg, session.Deps{
		Backend:   node,
		Voice:     gateway,
		Settings:  settingsStore,
		Resolver:  chain,
		Playlists: playlists,
		Notifiers: []playback.Notifier{np, notifications},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}

	npDeps := nowplaying.Deps{
		Messenger: gateway,
		Guilds:    gateway,
		Sessions:  sessions,
		Presence:  gateway,
	}
	if locations != nil {
		npDeps.Store = locations
	}
	reconciler := nowplaying.NewReconciler(npDeps, nowplaying.Config{
		Interval:     cfg.NowPlayingInterval(),
		Images:       cfg.Playback.NPImages,
		SongInStatus: cfg.Discord.SongInStatus,
		EditTimeout:  cfg.NowPlayingEditTimeout(),
		EditRate:     rate.Limit(cfg.NowPlaying.EditRate),
		EditBurst:    cfg.NowPlaying.EditBurst,
		SuccessEmoji: cfg.Discord.SuccessEmoji,
	})
	np.target = reconciler

	if err := reconciler.Restore(ctx); err != nil {
		zlog.Warn().Msgf("Failed to restore now playing messages: %v", err)
	}

	gateway.SetHooks(discord.Hooks{
		MessageDeleted: reconciler.OnMessageDeleted,
		GuildRemoved: func(guildID snowflake.ID) {
			sessions.RemoveGuild(guildID)
			reconciler.OnGuildRemoved(guildID)
		},
	})

	go sessions.Run(ctx)
	go reconciler.Run(ctx)

	if err := gateway.Open(); err != nil {
		return err
	}
	defer gateway.Close()

	adminService := apiconnect.NewAdminService(sessions, notifications, gateway, reconciler)
	adminPath, adminHandler := apiconnect.NewAdminHandler(
		adminService,
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)),
	)

	mux := http.NewServeMux()
	mux.Handle(adminPath, adminHandler)

	server := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting admin server: addr=%s", cfg.Admin.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-sessions.Done():
		zlog.Info().Msg("Session manager stopped, shutting down...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Close sessions first so players stop before streams are cut
	sessions.Close()
	notifications.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}
	cancel()

	zlog.Info().Msg("Server stopped")
	return nil
}

// lateNotifier forwards track updates to a notifier bound after construction.
type lateNotifier struct {
	target playback.Notifier
}

func (n *lateNotifier) OnTrackUpdate(guildID snowflake.ID, t *track.Track) {
	if n.target != nil {
		n.target.OnTrackUpdate(guildID, t)
	}
}

func openSettings(ctx context.Context, cfg *config.Config) (session.SettingsStore, io.Closer, error) {
	if cfg.Settings.Backend != "redis" {
		zlog.Info().Msg("Using in-memory guild settings")
		return settings.NewMemoryStore(), io.NopCloser(nil), nil
	}

	rc := cfg.Settings.Redis
	client, err := settings.DialRedis(ctx, settings.RedisConfig{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		KeyPrefix: rc.KeyPrefix,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to redis")
	}
	zlog.Info().Msgf("Using redis guild settings: addr=%s db=%d", rc.Addr, rc.DB)
	defaults := guild.Defaults(cfg.Playback.DefaultVolume, cfg.Playback.StayConnected)
	return settings.NewRedisStore(client, rc.KeyPrefix, defaults), client, nil
}

func openLocations(ctx context.Context, cfg *config.Config) (*store.LocationStore, error) {
	if cfg.Store.Driver == "none" {
		zlog.Info().Msg("Now playing locations are not persisted")
		return nil, nil
	}
	s, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open location store")
	}
	zlog.Info().Msgf("Now playing locations stored in %s", cfg.Store.Driver)
	return s, nil
}

// newResolver builds the query resolver chain. Links go to the resolver that
// recognises them; free text is searched on Spotify when it is enabled.
func newResolver(ctx context.Context, cfg *config.Config) (*resolver.Chain, error) {
	d := direct.New()
	if !cfg.SpotifyEnabled() {
		zlog.Info().Msg("Spotify resolver disabled, only direct links are accepted")
		return resolver.NewChain(d), nil
	}

	sp, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Spotify client")
	}
	zlog.Info().Msgf("Spotify resolver enabled: market=%s", cfg.Spotify.Market)

	return resolver.NewChain(sp, d, resolver.NewSearchFallback(spotify.SearchPrefix, sp, d)), nil
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for name, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", name, f.Description(), codes)
	}
}

// validateFilterConfig validates filter configurations.
func validateFilterConfig(cfg *config.Config) error {
	registry := filter.GetRegistered()

	for filterName, filterCfg := range cfg.Filters {
		if !filterCfg.Enabled {
			continue
		}

		factory, exists := registry[filterName]
		if !exists {
			// Some filters are created with dependencies, skip validation
			continue
		}

		f := factory()
		if err := f.ValidateConfig(filterCfg.Settings); err != nil {
			return errors.Wrapf(err, "filter %s", filterName)
		}
	}

	return nil
}
