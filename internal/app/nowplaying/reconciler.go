// Package nowplaying keeps one status message per guild in sync with playback.
package nowplaying

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/message"
	"github.com/osa030/guildbox/internal/domain/track"
)

// Messenger edits and posts chat messages. Edit failures are classified with
// the message package sentinels.
type Messenger interface {
	EditMessage(ctx context.Context, channelID, messageID snowflake.ID, p message.Payload) error
	PostMessage(ctx context.Context, channelID snowflake.ID, p message.Payload) (snowflake.ID, error)
}

// Guilds resolves guild and channel handles from the gateway cache.
type Guilds interface {
	HasGuild(guildID snowflake.ID) bool
	HasTextChannel(guildID, channelID snowflake.ID) bool
	VoiceChannel(guildID snowflake.ID) (snowflake.ID, bool)
}

// Presence mirrors the current track into the bot status.
type Presence interface {
	SetListening(title string)
	ResetPresence()
}

// StatusSource reports what a guild is playing.
type StatusSource interface {
	Status(guildID snowflake.ID) (playback.Status, bool)
}

// LocationStore persists tracked locations across restarts.
type LocationStore interface {
	LoadLocations(ctx context.Context) (map[snowflake.ID]message.Location, error)
	SaveLocation(ctx context.Context, guildID snowflake.ID, loc message.Location) error
	DeleteLocation(ctx context.Context, guildID snowflake.ID) error
}

// Config holds reconciler configuration.
type Config struct {
	Interval     time.Duration // Loop interval, ignored when Images is set
	Images       bool          // Rich image rendering, disables the loop
	SongInStatus bool          // Mirror the current track into presence
	EditTimeout  time.Duration
	EditRate     rate.Limit // Edits per second in the loop
	EditBurst    int
	SuccessEmoji string
}

// Deps are the collaborators of a reconciler. Presence and Store are optional.
type Deps struct {
	Messenger Messenger
	Guilds    Guilds
	Sessions  StatusSource
	Presence  Presence
	Store     LocationStore
}

type storeOp struct {
	guildID snowflake.ID
	loc     *message.Location // nil deletes
}

// Reconciler tracks at most one status message per guild. Tracking is keyed
// by guild in a sync.Map; stale results are dropped with compare-and-delete.
type Reconciler struct {
	locations sync.Map // snowflake.ID -> message.Location

	deps    Deps
	config  Config
	limiter *rate.Limiter

	lanesMu sync.Mutex
	lanes   map[snowflake.ID]bool // Guilds with a pass in flight, true reruns it

	storeCh chan storeOp
	wg      sync.WaitGroup

	presenceMu    sync.Mutex
	presence      string // Latest title to mirror, empty resets
	presenceDirty chan struct{}
}

// NewReconciler creates a reconciler.
func NewReconciler(deps Deps, config Config) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Second
	}
	if config.EditTimeout <= 0 {
		config.EditTimeout = 10 * time.Second
	}
	if config.EditRate <= 0 {
		config.EditRate = rate.Limit(4)
	}
	if config.EditBurst <= 0 {
		config.EditBurst = 10
	}
	return &Reconciler{
		deps:          deps,
		config:        config,
		limiter:       rate.NewLimiter(config.EditRate, config.EditBurst),
		lanes:         make(map[snowflake.ID]bool),
		storeCh:       make(chan storeOp, 256),
		presenceDirty: make(chan struct{}, 1),
	}
}

// Restore loads persisted locations. Existing tracking wins over stored rows.
func (r *Reconciler) Restore(ctx context.Context) error {
	if r.deps.Store == nil {
		return nil
	}
	locs, err := r.deps.Store.LoadLocations(ctx)
	if err != nil {
		return err
	}
	for guildID, loc := range locs {
		r.locations.LoadOrStore(guildID, loc)
	}
	zlog.Info().Msgf("nowplaying: restored tracked messages: count=%d", len(locs))
	return nil
}

// Run drives the periodic reconcile loop and the store writer until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	if r.deps.Store != nil {
		r.wg.Add(1)
		go r.runStore(ctx)
	}
	if r.config.SongInStatus && r.deps.Presence != nil {
		r.wg.Add(1)
		go r.runPresence(ctx)
	}
	defer r.wg.Wait()

	if r.config.Images {
		<-ctx.Done()
		return
	}

	zlog.Info().Msgf("nowplaying: reconcile loop started: interval=%v", r.config.Interval)
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ReconcileAll(ctx)
		}
	}
}

// ReconcileAll reconciles every tracked guild, paced by the edit limiter.
func (r *Reconciler) ReconcileAll(ctx context.Context) {
	var guilds []snowflake.ID
	r.locations.Range(func(key, _ any) bool {
		guilds = append(guilds, key.(snowflake.ID))
		return true
	})
	for _, guildID := range guilds {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		r.Reconcile(ctx, guildID)
	}
}

// SetLocation tracks a status message for a guild, replacing any previous one.
func (r *Reconciler) SetLocation(guildID snowflake.ID, loc message.Location) {
	r.locations.Store(guildID, loc)
	r.persist(guildID, &loc)
}

// ClearLocation stops tracking a guild. Clearing an untracked guild is a no-op.
func (r *Reconciler) ClearLocation(guildID snowflake.ID) {
	if _, ok := r.locations.LoadAndDelete(guildID); ok {
		r.persist(guildID, nil)
	}
}

// Location returns the tracked location of a guild.
func (r *Reconciler) Location(guildID snowflake.ID) (message.Location, bool) {
	v, ok := r.locations.Load(guildID)
	if !ok {
		return message.Location{}, false
	}
	return v.(message.Location), true
}

// OnMessageDeleted stops tracking when the deleted message is the tracked one.
func (r *Reconciler) OnMessageDeleted(guildID, messageID snowflake.ID) {
	loc, ok := r.Location(guildID)
	if !ok || loc.MessageID != messageID {
		return
	}
	r.drop(guildID, loc, "message deleted")
}

// OnGuildRemoved stops tracking a guild that became unreachable.
func (r *Reconciler) OnGuildRemoved(guildID snowflake.ID) {
	r.ClearLocation(guildID)
}

// OnTrackUpdate reconciles the guild in the background and mirrors the track
// into presence. t is nil when nothing is playing.
func (r *Reconciler) OnTrackUpdate(guildID snowflake.ID, t *track.Track) {
	if _, ok := r.Location(guildID); ok {
		go r.Reconcile(context.Background(), guildID)
	}

	if r.config.SongInStatus && r.deps.Presence != nil {
		title := ""
		if t != nil {
			title = t.Title
		}
		r.presenceMu.Lock()
		r.presence = title
		r.presenceMu.Unlock()
		select {
		case r.presenceDirty <- struct{}{}:
		default:
		}
	}
}

// Payload renders the current status of a guild.
func (r *Reconciler) Payload(guildID snowflake.ID) message.Payload {
	status, _ := r.deps.Sessions.Status(guildID)
	var voice snowflake.ID
	if status.Track != nil {
		voice, _ = r.deps.Guilds.VoiceChannel(guildID)
	}
	return Render(status, voice, r.formatOptions())
}

// Show posts the status of a guild to a channel and tracks the new message
// when something is playing.
func (r *Reconciler) Show(ctx context.Context, guildID, channelID snowflake.ID) (snowflake.ID, error) {
	status, _ := r.deps.Sessions.Status(guildID)
	var voice snowflake.ID
	if status.Track != nil {
		voice, _ = r.deps.Guilds.VoiceChannel(guildID)
	}
	payload := Render(status, voice, r.formatOptions())

	ctx, cancel := context.WithTimeout(ctx, r.config.EditTimeout)
	defer cancel()
	messageID, err := r.deps.Messenger.PostMessage(ctx, channelID, payload)
	if err != nil {
		return 0, err
	}
	if status.Track != nil {
		r.SetLocation(guildID, message.Location{ChannelID: channelID, MessageID: messageID})
	} else {
		r.ClearLocation(guildID)
	}
	return messageID, nil
}

// Reconcile edits the tracked message of a guild to match its current status.
// Passes for one guild never overlap: a call made while a pass is in flight
// returns at once and the running pass repeats with the newer status.
func (r *Reconciler) Reconcile(ctx context.Context, guildID snowflake.ID) {
	if !r.enter(guildID) {
		return
	}
	for {
		r.reconcileOnce(ctx, guildID)
		if !r.leave(guildID) {
			return
		}
	}
}

func (r *Reconciler) enter(guildID snowflake.ID) bool {
	r.lanesMu.Lock()
	defer r.lanesMu.Unlock()
	if _, busy := r.lanes[guildID]; busy {
		r.lanes[guildID] = true
		return false
	}
	r.lanes[guildID] = false
	return true
}

// leave reports whether another pass was requested meanwhile.
func (r *Reconciler) leave(guildID snowflake.ID) bool {
	r.lanesMu.Lock()
	defer r.lanesMu.Unlock()
	if r.lanes[guildID] {
		r.lanes[guildID] = false
		return true
	}
	delete(r.lanes, guildID)
	return false
}

func (r *Reconciler) reconcileOnce(ctx context.Context, guildID snowflake.ID) {
	loc, ok := r.Location(guildID)
	if !ok {
		return
	}
	if !r.deps.Guilds.HasGuild(guildID) {
		r.drop(guildID, loc, "guild unavailable")
		return
	}
	if !r.deps.Guilds.HasTextChannel(guildID, loc.ChannelID) {
		r.drop(guildID, loc, "channel unavailable")
		return
	}

	status, _ := r.deps.Sessions.Status(guildID)
	var payload message.Payload
	if status.Track == nil {
		payload = RenderNoMusic(status.Volume, r.formatOptions())
	} else {
		voice, _ := r.deps.Guilds.VoiceChannel(guildID)
		payload = Render(status, voice, r.formatOptions())
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.EditTimeout)
	defer cancel()
	err := r.deps.Messenger.EditMessage(ctx, loc.ChannelID, loc.MessageID, payload)
	if status.Track == nil {
		r.drop(guildID, loc, "nothing playing")
	}
	if err == nil {
		return
	}
	if message.IsPermanent(err) {
		r.drop(guildID, loc, err.Error())
		return
	}
	zlog.Debug().Msgf("nowplaying: edit failed, retrying later: guild=%s message=%s error=%v", guildID, loc.MessageID, err)
}

// drop stops tracking loc unless the guild already tracks a different message.
func (r *Reconciler) drop(guildID snowflake.ID, loc message.Location, reason string) {
	if r.locations.CompareAndDelete(guildID, loc) {
		zlog.Debug().Msgf("nowplaying: stopped tracking: guild=%s message=%s reason=%s", guildID, loc.MessageID, reason)
		r.persist(guildID, nil)
	}
}

func (r *Reconciler) formatOptions() FormatOptions {
	return FormatOptions{
		SuccessEmoji: r.config.SuccessEmoji,
		Images:       r.config.Images,
	}
}

func (r *Reconciler) persist(guildID snowflake.ID, loc *message.Location) {
	if r.deps.Store == nil {
		return
	}
	select {
	case r.storeCh <- storeOp{guildID: guildID, loc: loc}:
	default:
		zlog.Warn().Msgf("nowplaying: store queue full, dropping write: guild=%s", guildID)
	}
}

func (r *Reconciler) runStore(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-r.storeCh:
			r.apply(op)
		}
	}
}

func (r *Reconciler) apply(op storeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var err error
	if op.loc != nil {
		err = r.deps.Store.SaveLocation(ctx, op.guildID, *op.loc)
	} else {
		err = r.deps.Store.DeleteLocation(ctx, op.guildID)
	}
	if err != nil {
		zlog.Warn().Msgf("nowplaying: failed to persist location: guild=%s error=%v", op.guildID, err)
	}
}

// runPresence applies the latest presence. Intermediate titles are skipped.
func (r *Reconciler) runPresence(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.presenceDirty:
			r.presenceMu.Lock()
			title := r.presence
			r.presenceMu.Unlock()
			if title != "" {
				r.deps.Presence.SetListening(title)
			} else {
				r.deps.Presence.ResetPresence()
			}
		}
	}
}
