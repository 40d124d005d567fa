package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/guild"
	"github.com/osa030/guildbox/internal/domain/listener"
	"github.com/osa030/guildbox/internal/domain/playlist"
	"github.com/osa030/guildbox/internal/domain/track"
	"github.com/osa030/guildbox/internal/infra/config"
)

const (
	testGuild snowflake.ID = 100
	testVoice snowflake.ID = 200
	alice     snowflake.ID = 1
	bob       snowflake.ID = 2
)

type fakePlayer struct {
	mu     sync.Mutex
	played []string
	stops  int
}

func (p *fakePlayer) Play(t track.Track, volume int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, t.Identifier)
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

func (p *fakePlayer) SetPaused(bool) error { return nil }
func (p *fakePlayer) SetVolume(int) error  { return nil }

func (p *fakePlayer) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

type fakeBackend struct {
	mu        sync.Mutex
	players   map[snowflake.ID]*fakePlayer
	events    chan playback.Event
	destroyed []snowflake.ID
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		players: make(map[snowflake.ID]*fakePlayer),
		events:  make(chan playback.Event, 16),
	}
}

func (b *fakeBackend) Player(guildID snowflake.ID) playback.Player {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.players[guildID]
	if !ok {
		p = &fakePlayer{}
		b.players[guildID] = p
	}
	return p
}

func (b *fakeBackend) player(guildID snowflake.ID) *fakePlayer {
	return b.Player(guildID).(*fakePlayer)
}

func (b *fakeBackend) Events() <-chan playback.Event { return b.events }

func (b *fakeBackend) Destroy(guildID snowflake.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = append(b.destroyed, guildID)
}

type fakeVoice struct {
	mu          sync.Mutex
	connected   map[snowflake.ID]bool
	members     []listener.Member
	joinErr     error
	disconnects int
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{connected: make(map[snowflake.ID]bool)}
}

func (v *fakeVoice) Join(ctx context.Context, guildID, channelID snowflake.ID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.joinErr != nil {
		return v.joinErr
	}
	v.connected[guildID] = true
	return nil
}

func (v *fakeVoice) Disconnect(guildID snowflake.ID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.connected[guildID] = false
	v.disconnects++
}

func (v *fakeVoice) Connected(guildID snowflake.ID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected[guildID]
}

func (v *fakeVoice) Members(snowflake.ID) ([]listener.Member, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.members, nil
}

type fakeSettings struct {
	mu      sync.Mutex
	stored  map[snowflake.ID]guild.Settings
	loadErr error
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{stored: make(map[snowflake.ID]guild.Settings)}
}

func (s *fakeSettings) Load(ctx context.Context, guildID snowflake.ID) (guild.Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return guild.Settings{}, false, s.loadErr
	}
	v, ok := s.stored[guildID]
	return v, ok, nil
}

func (s *fakeSettings) Save(ctx context.Context, guildID snowflake.ID, v guild.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored[guildID] = v
	return nil
}

type mapResolver map[string]track.LoadResult

func (r mapResolver) Resolve(ctx context.Context, query string) track.LoadResult {
	if res, ok := r[query]; ok {
		return res
	}
	return track.LoadResult{Type: track.LoadNoMatch, Selected: -1}
}

type staticCatalog map[string]*playlist.Playlist

func (c staticCatalog) Playlist(ctx context.Context, name string) (*playlist.Playlist, bool, error) {
	pl, ok := c[name]
	return pl, ok, nil
}

func (c staticCatalog) Names(ctx context.Context) ([]string, error) {
	var names []string
	for name := range c {
		names = append(names, name)
	}
	return names, nil
}

func tr(id string, d time.Duration) track.Track {
	return track.Track{Identifier: id, Title: "title " + id, URI: "https://example.com/" + id, Duration: d}
}

func single(t track.Track) track.LoadResult {
	return track.LoadResult{Type: track.LoadTrack, Tracks: []track.Track{t}, Selected: -1}
}

type fixture struct {
	manager  *Manager
	backend  *fakeBackend
	voice    *fakeVoice
	settings *fakeSettings
}

func testConfig() *config.Config {
	return &config.Config{
		Playback: config.PlaybackConfig{
			SkipRatio:     0.55,
			DefaultVolume: 100,
			LaneSize:      16,
			SaveTimeoutMs: 1000,
		},
		Filters: map[string]config.FilterConfig{
			"duplicate_track_filter": {Enabled: true},
			"duration_limit_filter":  {Enabled: true, Settings: map[string]any{"max_seconds": 600}},
		},
		Messages: config.MessagesConfig{
			DefaultError:          "error",
			DuplicateTrack:        "already queued",
			DurationLimitExceeded: "too long",
		},
	}
}

func newFixture(t *testing.T, resolver mapResolver) *fixture {
	t.Helper()
	f := &fixture{
		backend:  newFakeBackend(),
		voice:    newFakeVoice(),
		settings: newFakeSettings(),
	}
	m, err := NewManager(testConfig(), Deps{
		Backend:  f.backend,
		Voice:    f.voice,
		Settings: f.settings,
		Resolver: resolver,
		Playlists: staticCatalog{
			"chill": playlist.Parse("chill", "https://example.com/c1\n"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	f.manager = m
	return f
}

func (f *fixture) play(t *testing.T, user snowflake.ID, query string) *AddResult {
	t.Helper()
	res, err := f.manager.Play(context.Background(), PlayRequest{
		GuildID:        testGuild,
		VoiceChannelID: testVoice,
		User:           Requester{ID: user, Username: "user"},
		Query:          query,
	})
	require.NoError(t, err)
	return res
}

func TestNewManager_RequiresDeps(t *testing.T) {
	_, err := NewManager(testConfig(), Deps{})
	assert.Error(t, err)
}

func TestNewManager_InvalidFilterConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Filters["duration_limit_filter"] = config.FilterConfig{Enabled: true, Settings: map[string]any{"min_seconds": 700, "max_seconds": 600}}
	_, err := NewManager(cfg, Deps{
		Backend:  newFakeBackend(),
		Voice:    newFakeVoice(),
		Settings: newFakeSettings(),
		Resolver: mapResolver{},
	})
	assert.Error(t, err)
}

func TestManager_SessionUsesStoredSettings(t *testing.T) {
	f := newFixture(t, mapResolver{})
	stored := guild.Defaults(40, false)
	stored.RepeatMode = guild.RepeatAll
	f.settings.stored[testGuild] = stored

	s := f.manager.Settings(context.Background(), testGuild)
	assert.Equal(t, 40, s.Volume)
	assert.Equal(t, guild.RepeatAll, s.RepeatMode)
}

func TestManager_SessionFallsBackToDefaults(t *testing.T) {
	f := newFixture(t, mapResolver{})
	f.settings.loadErr = errors.New("backend down")

	s := f.manager.Settings(context.Background(), testGuild)
	assert.Equal(t, 100, s.Volume)
	assert.Equal(t, guild.QueueFair, s.QueueType)
}

func TestManager_StatusWithoutSession(t *testing.T) {
	f := newFixture(t, mapResolver{})
	status, ok := f.manager.Status(testGuild)
	assert.False(t, ok)
	assert.Nil(t, status.Track)
	assert.Equal(t, 100, status.Volume)
}

func TestManager_RemoveGuild(t *testing.T) {
	f := newFixture(t, mapResolver{"a": single(tr("a", time.Minute))})
	f.play(t, alice, "a")
	require.Equal(t, []snowflake.ID{testGuild}, f.manager.Guilds())

	f.manager.RemoveGuild(testGuild)
	assert.Empty(t, f.manager.Guilds())
	assert.Equal(t, []snowflake.ID{testGuild}, f.backend.destroyed)

	f.manager.RemoveGuild(testGuild)
	assert.Len(t, f.backend.destroyed, 1)
}

func TestManager_RunDispatchesEvents(t *testing.T) {
	f := newFixture(t, mapResolver{
		"a": single(tr("a", time.Minute)),
		"b": single(tr("b", time.Minute)),
	})
	f.play(t, alice, "a")
	f.play(t, alice, "b")

	ctx, cancel := context.WithCancel(context.Background())
	go f.manager.Run(ctx)

	a := tr("a", time.Minute)
	f.backend.events <- playback.Event{Type: playback.EventTrackEnded, GuildID: testGuild, Track: a, Reason: playback.EndFinished}
	f.backend.events <- playback.Event{Type: playback.EventTrackEnded, GuildID: 999, Track: a, Reason: playback.EndFinished}

	assert.Eventually(t, func() bool {
		status, _ := f.manager.Status(testGuild)
		return status.Track != nil && status.Track.Identifier == "b"
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-f.manager.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestManager_GuildTracks(t *testing.T) {
	f := newFixture(t, mapResolver{
		"a": single(tr("a", time.Minute)),
		"b": single(tr("b", time.Minute)),
	})
	assert.Nil(t, f.manager.GuildTracks(testGuild))

	f.play(t, alice, "a")
	f.play(t, bob, "b")

	var ids []string
	for _, t := range f.manager.GuildTracks(testGuild) {
		ids = append(ids, t.Identifier)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}
