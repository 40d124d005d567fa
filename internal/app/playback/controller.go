package playback

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/queue"
	"github.com/osa030/guildbox/internal/domain/guild"
	"github.com/osa030/guildbox/internal/domain/playlist"
	"github.com/osa030/guildbox/internal/domain/track"
)

// Player is the audio backend handle of one guild. Calls must not block on
// network I/O; outcomes arrive later as Events.
type Player interface {
	Play(t track.Track, volume int) error
	Stop() error
	SetPaused(paused bool) error
	SetVolume(volume int) error
}

// Voice tears down the guild voice connection. Must not block.
type Voice interface {
	Disconnect(guildID snowflake.ID)
}

// Notifier receives now playing changes, nil meaning nothing is playing. Must not block.
type Notifier interface {
	OnTrackUpdate(guildID snowflake.ID, t *track.Track)
}

// PlaylistLoader resolves named default playlists. The lookup in Load must
// only touch local sources; item resolution happens in the background.
type PlaylistLoader interface {
	// Load starts resolving the named playlist in the background and reports
	// false when it does not exist or has no items. onTrack receives tracks in
	// order and done is called once every item has been processed.
	Load(ctx context.Context, name string, onTrack func(track.Track), done func(loaded int, errs []playlist.ItemError)) bool
}

// SettingsSaver persists guild settings.
type SettingsSaver interface {
	Save(ctx context.Context, guildID snowflake.ID, s guild.Settings) error
}

// Config holds controller configuration.
type Config struct {
	DefaultSkipRatio float64       // Used when the guild has no skip ratio of its own
	LaneSize         int           // Buffered backend events per guild
	SaveTimeout      time.Duration // Timeout of a settings write
}

// Deps are the collaborators of a controller. Only Player is required.
type Deps struct {
	Player    Player
	Voice     Voice
	Notifier  Notifier
	Playlists PlaylistLoader
	Settings  SettingsSaver
}

// Status is a point-in-time view of what a guild is playing.
type Status struct {
	GuildID       snowflake.ID
	State         State
	Track         *track.Track
	Position      time.Duration
	Volume        int
	RepeatMode    guild.RepeatMode
	QueueType     guild.QueueType
	QueueSize     int
	QueueDuration time.Duration
}

// Controller is the playback session of one guild. All state is guarded by
// mu; backend events are applied in order on the controller's own lane.
type Controller struct {
	mu sync.Mutex

	guildID  snowflake.ID
	settings guild.Settings

	// Queue management
	queue        queue.Queue
	defaultQueue []track.Track // Staged tracks of the default playlist

	// Current track state
	current       *track.Track
	votes         map[snowflake.ID]struct{}
	paused        bool
	startTime     time.Time
	pausedAt      *time.Time
	pausedElapsed time.Duration

	stopping bool   // Next STOPPED end goes idle instead of advancing
	loadGen  uint64 // Bumped to drop results of stale playlist loads
	closed   bool

	deps   Deps
	config Config

	lane  chan func()
	dirty chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates the session of a guild and starts its event lane.
func NewController(guildID snowflake.ID, settings guild.Settings, deps Deps, config Config) *Controller {
	if config.LaneSize <= 0 {
		config.LaneSize = 64
	}
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = 5 * time.Second
	}
	if deps.Voice == nil {
		deps.Voice = nopVoice{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		guildID:  guildID,
		settings: settings,
		queue:    queue.New(settings.QueueType, nil),
		votes:    make(map[snowflake.ID]struct{}),
		deps:     deps,
		config:   config,
		lane:     make(chan func(), config.LaneSize),
		dirty:    make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	go c.runLane()
	go c.runSaver()
	return c
}

// GuildID returns the guild the controller belongs to.
func (c *Controller) GuildID() snowflake.ID {
	return c.guildID
}

// Dispatch queues a backend event onto the controller's lane.
func (c *Controller) Dispatch(e Event) {
	c.submit(func() { c.HandleEvent(e) })
}

// HandleEvent applies a backend event synchronously.
func (c *Controller) HandleEvent(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	switch e.Type {
	case EventTrackStarted:
		c.onTrackStartLocked(e.Track)
	case EventTrackEnded:
		c.onTrackEndLocked(e.Track, e.Reason)
	case EventTrackException:
		logTrackException(c.guildID, e.Track, e.Err)
	case EventPlayerUpdate:
		c.onPlayerUpdateLocked(e.Position, e.Paused)
	}
}

// Enqueue adds a track. It returns -1 when the track started immediately,
// otherwise its 1-indexed queue position.
func (c *Controller) Enqueue(t track.Track) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopping = false
	if c.current == nil {
		c.startLocked(t)
		return -1
	}
	return c.queue.Add(track.NewQueuedTrack(t)) + 1
}

// EnqueueFront adds a track at the head of the queue. It returns -1 when the
// track started immediately, otherwise 1.
func (c *Controller) EnqueueFront(t track.Track) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopping = false
	if c.current == nil {
		c.startLocked(t)
		return -1
	}
	return c.queue.AddAt(0, track.NewQueuedTrack(t)) + 1
}

// Remove removes the entry at the 0-based index.
func (c *Controller) Remove(index int) (track.QueuedTrack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Remove(index)
}

// RemoveOwned removes the entry at the 0-based index if owner added it.
// force skips the ownership check.
func (c *Controller) RemoveOwned(index int, owner snowflake.ID, force bool) (track.QueuedTrack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	qt, err := c.queue.Get(index)
	if err != nil {
		return qt, err
	}
	if !force && qt.Owner() != owner {
		return qt, ErrNotOwner
	}
	return c.queue.Remove(index)
}

// RemoveAll removes every entry owned by owner and returns the count.
func (c *Controller) RemoveAll(owner snowflake.ID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.RemoveAll(owner)
}

// Move moves the entry at from to to (both 0-based).
func (c *Controller) Move(from, to int) (track.QueuedTrack, error) {
	if from == to {
		return track.QueuedTrack{}, ErrSameIndex
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.MoveItem(from, to)
}

// Shuffle shuffles owner's entries and returns how many were shuffled.
func (c *Controller) Shuffle(owner snowflake.ID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Shuffle(owner)
}

// SkipTo drops every entry before the 0-based index and stops the current
// track so the entry at index plays next.
func (c *Controller) SkipTo(index int) (track.QueuedTrack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return track.QueuedTrack{}, ErrNoTrack
	}
	target, err := c.queue.Get(index)
	if err != nil {
		return target, err
	}
	if err := c.queue.Skip(index); err != nil {
		return target, err
	}
	c.skipLocked()
	return target, nil
}

// ForceSkip stops the current track.
func (c *Controller) ForceSkip() (track.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return track.Track{}, ErrNoTrack
	}
	skipped := *c.current
	c.skipLocked()
	return skipped, nil
}

// StopAndClear empties both queues and stops the current track. The session
// stays idle until a new track is enqueued.
func (c *Controller) StopAndClear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue.Clear()
	c.defaultQueue = nil
	c.loadGen++

	if c.current == nil {
		c.idleLocked()
		return
	}

	c.stopping = true
	if err := c.deps.Player.Stop(); err != nil {
		zlog.Warn().Err(err).Msgf("playback: stop failed, ending locally: guild=%s", c.guildID)
		c.endLocked(*c.current, EndStopped)
	}
}

// SetPaused pauses or resumes the current track.
func (c *Controller) SetPaused(paused bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return ErrNoTrack
	}
	if c.paused == paused {
		return nil
	}

	now := toWallTime(time.Now())
	if paused {
		c.pausedAt = &now
	} else if c.pausedAt != nil {
		c.pausedElapsed += now.Sub(*c.pausedAt)
		c.pausedAt = nil
	}
	c.paused = paused
	return c.deps.Player.SetPaused(paused)
}

// Queue returns a snapshot of the pending entries.
func (c *Controller) Queue() []track.QueuedTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.List()
}

// Status returns what the guild is playing right now.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		GuildID:    c.guildID,
		State:      c.stateLocked(),
		Position:   c.positionLocked(),
		Volume:     c.settings.Volume,
		RepeatMode: c.settings.RepeatMode,
		QueueType:  c.settings.QueueType,
		QueueSize:  c.queue.Size(),
	}
	if c.current != nil {
		cur := *c.current
		s.Track = &cur
	}
	for _, qt := range c.queue.List() {
		s.QueueDuration += qt.Track.Duration
	}
	return s
}

// Close stops the lane and drops pending playlist loads.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.loadGen++
	c.mu.Unlock()
	c.cancel()
}

func (c *Controller) stateLocked() State {
	switch {
	case c.current == nil:
		return StateIdle
	case c.paused:
		return StatePaused
	default:
		return StatePlaying
	}
}

// startLocked makes t current and asks the backend to play it.
// Must be called with lock held.
func (c *Controller) startLocked(t track.Track) {
	c.current = &t
	c.paused = false
	c.resetClockLocked()

	zlog.Debug().Msgf("playback: starting track: guild=%s title=%s uri=%s", c.guildID, t.Title, t.URI)
	if err := c.deps.Player.Play(t, c.settings.Volume); err != nil {
		zlog.Warn().Err(err).Msgf("playback: play failed: guild=%s uri=%s", c.guildID, t.URI)
		c.endLocked(t, EndLoadFailed)
	}
}

// skipLocked stops the current track; the backend's STOPPED end advances the queue.
func (c *Controller) skipLocked() {
	if err := c.deps.Player.Stop(); err != nil {
		zlog.Warn().Err(err).Msgf("playback: stop failed, ending locally: guild=%s", c.guildID)
		c.endLocked(*c.current, EndStopped)
	}
}

func (c *Controller) onTrackStartLocked(t track.Track) {
	clear(c.votes)

	if c.current == nil || !c.current.SameSource(t) {
		zlog.Debug().Msgf("playback: ignoring start of stale track: guild=%s uri=%s", c.guildID, t.URI)
		return
	}
	c.resetClockLocked()

	zlog.Info().Msgf("playback: track started: guild=%s title=%s owner=%s", c.guildID, c.current.Title, c.current.Owner())
	cur := *c.current
	c.deps.Notifier.OnTrackUpdate(c.guildID, &cur)
}

func (c *Controller) onTrackEndLocked(t track.Track, reason EndReason) {
	if reason == EndReplaced {
		zlog.Debug().Msgf("playback: track replaced: guild=%s uri=%s", c.guildID, t.URI)
		return
	}
	if c.current == nil || !c.current.SameSource(t) {
		zlog.Debug().Msgf("playback: ignoring end of stale track: guild=%s uri=%s reason=%s", c.guildID, t.URI, reason)
		return
	}
	c.endLocked(*c.current, reason)
}

// endLocked applies the repeat policy to ended and advances to the next track.
// Must be called with lock held.
func (c *Controller) endLocked(ended track.Track, reason EndReason) {
	if reason != EndFinished {
		zlog.Debug().Msgf("playback: track ended: guild=%s id=%s title=%s reason=%s",
			c.guildID, ended.Identifier, ended.Title, reason)
	}

	if reason == EndFinished && !c.stopping {
		switch c.settings.RepeatMode {
		case guild.RepeatAll:
			c.queue.Add(track.NewQueuedTrack(ended.Clone()))
		case guild.RepeatSingle:
			c.queue.AddAt(0, track.NewQueuedTrack(ended.Clone()))
		}
	}

	c.current = nil
	c.resetClockLocked()

	if c.stopping {
		c.stopping = false
		c.idleLocked()
		return
	}

	if next, ok := c.queue.Pull(); ok {
		c.startLocked(next.Track)
		return
	}
	if !c.playFromDefaultLocked() {
		c.idleLocked()
	}
}

// idleLocked enters the idle state. Must be called with lock held.
func (c *Controller) idleLocked() {
	c.current = nil
	c.deps.Notifier.OnTrackUpdate(c.guildID, nil)
	if !c.settings.StayConnected {
		c.deps.Voice.Disconnect(c.guildID)
	}
	if c.paused {
		c.paused = false
		if err := c.deps.Player.SetPaused(false); err != nil {
			zlog.Debug().Err(err).Msgf("playback: unpause on idle failed: guild=%s", c.guildID)
		}
	}
	zlog.Info().Msgf("playback: idle: guild=%s", c.guildID)
}

// playFromDefaultLocked plays the next staged default track, or starts loading
// the guild's default playlist. It returns false when there is nothing to play.
func (c *Controller) playFromDefaultLocked() bool {
	if len(c.defaultQueue) > 0 {
		next := c.defaultQueue[0]
		c.defaultQueue = c.defaultQueue[1:]
		c.startLocked(next)
		return true
	}

	name := c.settings.DefaultPlaylist
	if name == "" || c.deps.Playlists == nil {
		return false
	}

	c.loadGen++
	gen := c.loadGen
	ok := c.deps.Playlists.Load(c.ctx, name,
		func(t track.Track) {
			c.submit(func() { c.onDefaultTrack(gen, t) })
		},
		func(loaded int, errs []playlist.ItemError) {
			c.submit(func() { c.onDefaultDone(gen, name, loaded, errs) })
		},
	)
	if ok {
		zlog.Info().Msgf("playback: loading default playlist: guild=%s playlist=%s", c.guildID, name)
	}
	return ok
}

func (c *Controller) onDefaultTrack(gen uint64, t track.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.loadGen {
		return
	}
	if c.current == nil {
		c.startLocked(t)
		return
	}
	c.defaultQueue = append(c.defaultQueue, t)
}

func (c *Controller) onDefaultDone(gen uint64, name string, loaded int, errs []playlist.ItemError) {
	for _, e := range errs {
		zlog.Warn().Msgf("playback: default playlist item failed: guild=%s playlist=%s index=%d item=%s reason=%s",
			c.guildID, name, e.Index, e.Item, e.Reason)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.loadGen {
		return
	}
	zlog.Info().Msgf("playback: default playlist loaded: guild=%s playlist=%s tracks=%d errors=%d",
		c.guildID, name, loaded, len(errs))
	if loaded == 0 && c.current == nil {
		c.idleLocked()
	}
}

func (c *Controller) onPlayerUpdateLocked(position time.Duration, paused bool) {
	if c.current == nil {
		return
	}
	now := toWallTime(time.Now())
	c.startTime = now.Add(-position)
	c.pausedElapsed = 0
	c.pausedAt = nil
	if c.paused {
		c.pausedAt = &now
	}
	if paused != c.paused {
		zlog.Debug().Msgf("playback: backend pause state differs: guild=%s backend=%v local=%v", c.guildID, paused, c.paused)
	}
}

func (c *Controller) resetClockLocked() {
	c.startTime = toWallTime(time.Now())
	c.pausedAt = nil
	c.pausedElapsed = 0
}

func (c *Controller) positionLocked() time.Duration {
	if c.current == nil {
		return 0
	}
	now := toWallTime(time.Now())
	elapsed := now.Sub(c.startTime) - c.pausedElapsed
	if c.pausedAt != nil {
		elapsed -= now.Sub(*c.pausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	if d := c.current.Duration; d > 0 && elapsed > d {
		return d
	}
	return elapsed
}

// persistLocked schedules a settings write. Must be called with lock held.
func (c *Controller) persistLocked() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

// submit queues fn onto the lane, waiting while the lane is full.
func (c *Controller) submit(fn func()) {
	select {
	case c.lane <- fn:
	case <-c.ctx.Done():
	}
}

func (c *Controller) runLane() {
	for {
		select {
		case fn := <-c.lane:
			c.runSafe(fn)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Controller) runSafe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback: panic in event lane: guild=%s panic=%v", c.guildID, r)
		}
	}()
	fn()
}

func (c *Controller) runSaver() {
	for {
		select {
		case <-c.dirty:
			c.save()
		case <-c.ctx.Done():
			select {
			case <-c.dirty:
				c.save()
			default:
			}
			return
		}
	}
}

func (c *Controller) save() {
	if c.deps.Settings == nil {
		return
	}
	c.mu.Lock()
	s := c.settings
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.SaveTimeout)
	defer cancel()
	if err := c.deps.Settings.Save(ctx, c.guildID, s); err != nil {
		zlog.Error().Err(err).Msgf("playback: failed to save settings: guild=%s", c.guildID)
	}
}

// toWallTime returns the time with monotonic clock stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}

type nopVoice struct{}

func (nopVoice) Disconnect(snowflake.ID) {}

type nopNotifier struct{}

func (nopNotifier) OnTrackUpdate(snowflake.ID, *track.Track) {}
