package session

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/filter"
	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/guild"
	"github.com/osa030/guildbox/internal/domain/track"
)

// Errors
var (
	ErrNoMatch         = errors.New("no results found")
	ErrNotInVoice      = errors.New("you must be listening in a voice channel to use that")
	ErrUnknownPlaylist = errors.New("playlist not found")
	ErrInvalidPosition = errors.New("position must be a valid integer within the queue")
)

// RejectedError is returned when a filter refuses a track.
type RejectedError struct {
	Code    string
	Message string
	Track   track.Track
}

func (e *RejectedError) Error() string {
	return e.Message
}

// Requester identifies the member issuing a command.
type Requester struct {
	ID       snowflake.ID
	Username string
	Discrim  string
	Avatar   string
	DJ       bool // May edit entries of other members
}

func (r Requester) userInfo() *track.UserInfo {
	return &track.UserInfo{
		ID:       r.ID,
		Username: r.Username,
		Discrim:  r.Discrim,
		Avatar:   r.Avatar,
	}
}

// PlayRequest asks for a query to be resolved and queued.
type PlayRequest struct {
	GuildID        snowflake.ID
	VoiceChannelID snowflake.ID // Channel to join, zero when already connected
	User           Requester
	Query          string
	Front          bool // Insert at the head of the queue
}

// AddResult describes what a play request queued.
type AddResult struct {
	Track    track.Track // First queued track
	Position int         // -1 when it started immediately, else 1-based
	Playlist string      // Playlist name for playlist loads
	Added    int         // Tracks queued
	Rejected int         // Playlist tracks refused by filters
}

// RemoveResult describes a remove command.
type RemoveResult struct {
	Removed *track.QueuedTrack // Single removal
	Count   int                // Entries removed
}

// Play resolves a query and queues the result.
func (m *Manager) Play(ctx context.Context, req PlayRequest) (*AddResult, error) {
	query := strings.Trim(strings.TrimSpace(req.Query), "<>")
	if query == "" {
		return nil, errors.Wrap(ErrNoMatch, "empty query")
	}

	if req.VoiceChannelID != 0 {
		if err := m.voice.Join(ctx, req.GuildID, req.VoiceChannelID); err != nil {
			return nil, errors.Wrap(err, "failed to join voice channel")
		}
	} else if !m.voice.Connected(req.GuildID) {
		return nil, ErrNotInVoice
	}

	res := m.resolver.Resolve(ctx, query)
	switch res.Type {
	case track.LoadNoMatch:
		return nil, errors.Wrapf(ErrNoMatch, "query %q", query)
	case track.LoadFailed:
		if res.Err == nil {
			return nil, &track.LoadError{Severity: track.SeverityFault, Message: "unknown failure"}
		}
		return nil, res.Err
	}

	c := m.session(ctx, req.GuildID)
	freq := filter.TrackRequest{
		GuildID:   req.GuildID,
		Requester: req.User.ID,
		Query:     query,
		Source:    filter.SourceUser,
	}

	if res.Type == track.LoadPlaylist && !req.Front && len(res.Tracks) > 1 {
		return m.addPlaylist(ctx, c, freq, req.User, res)
	}

	t, ok := res.Pick()
	if !ok {
		return nil, errors.Wrapf(ErrNoMatch, "query %q", query)
	}
	if result := m.filterChain.Execute(ctx, freq, t); !result.Accepted {
		zlog.Info().Msgf("track request rejected: guild=%s user=%s track=%q code=%s", req.GuildID, req.User.ID, t.Title, result.Code)
		return nil, &RejectedError{Code: result.Code, Message: m.config.GetMessage(result.Code), Track: t}
	}

	t.Metadata = track.NewRequestMetadata(req.User.userInfo(), track.NewRequestInfo(query, t.URI, 0))
	var pos int
	if req.Front {
		pos = c.EnqueueFront(t)
	} else {
		pos = c.Enqueue(t)
	}
	zlog.Info().Msgf("track queued: guild=%s user=%s track=%q position=%d front=%v", req.GuildID, req.User.ID, t.Title, pos, req.Front)
	return &AddResult{Track: t, Position: pos, Added: 1}, nil
}

func (m *Manager) addPlaylist(ctx context.Context, c *playback.Controller, freq filter.TrackRequest, user Requester, res track.LoadResult) (*AddResult, error) {
	out := &AddResult{Playlist: res.PlaylistName, Position: 0}
	for _, t := range res.Tracks {
		if result := m.filterChain.Execute(ctx, freq, t); !result.Accepted {
			out.Rejected++
			continue
		}
		t.Metadata = track.NewRequestMetadata(user.userInfo(), track.NewRequestInfo(freq.Query, t.URI, 0))
		pos := c.Enqueue(t)
		if out.Added == 0 {
			out.Track = t
			out.Position = pos
		}
		out.Added++
	}
	zlog.Info().Msgf("playlist queued: guild=%s user=%s playlist=%q added=%d rejected=%d",
		freq.GuildID, user.ID, res.PlaylistName, out.Added, out.Rejected)
	if out.Added == 0 {
		return out, errors.Wrapf(ErrNoMatch, "no playable tracks in playlist %q", res.PlaylistName)
	}
	return out, nil
}

// Skip registers a skip vote. The requester of the track skips immediately.
func (m *Manager) Skip(ctx context.Context, guildID snowflake.ID, user Requester) (playback.VoteResult, error) {
	c, err := m.existing(guildID)
	if err != nil {
		return playback.VoteResult{}, err
	}
	members, err := m.voice.Members(guildID)
	if err != nil {
		return playback.VoteResult{}, errors.Wrap(err, "failed to list voice members")
	}
	return c.RegisterSkipVote(user.ID, members)
}

// ForceSkip skips the current track without voting.
func (m *Manager) ForceSkip(ctx context.Context, guildID snowflake.ID) (track.Track, error) {
	c, err := m.existing(guildID)
	if err != nil {
		return track.Track{}, err
	}
	return c.ForceSkip()
}

// SkipTo skips to the 1-based queue position.
func (m *Manager) SkipTo(ctx context.Context, guildID snowflake.ID, position int) (track.QueuedTrack, error) {
	c, err := m.existing(guildID)
	if err != nil {
		return track.QueuedTrack{}, err
	}
	if err := checkPosition(position, c.Status().QueueSize); err != nil {
		return track.QueuedTrack{}, err
	}
	return c.SkipTo(position - 1)
}

// Remove removes the entry at the 1-based position. Position 0 removes every
// entry of the requester. Members may only remove their own entries unless DJ.
func (m *Manager) Remove(ctx context.Context, guildID snowflake.ID, user Requester, position int) (RemoveResult, error) {
	c, err := m.existing(guildID)
	if err != nil {
		return RemoveResult{}, err
	}
	if position == 0 {
		return RemoveResult{Count: c.RemoveAll(user.ID)}, nil
	}
	if err := checkPosition(position, c.Status().QueueSize); err != nil {
		return RemoveResult{}, err
	}
	qt, err := c.RemoveOwned(position-1, user.ID, user.DJ)
	if err != nil {
		return RemoveResult{}, err
	}
	return RemoveResult{Removed: &qt, Count: 1}, nil
}

// Move moves an entry between 1-based positions.
func (m *Manager) Move(ctx context.Context, guildID snowflake.ID, from, to int) (track.QueuedTrack, error) {
	c, err := m.existing(guildID)
	if err != nil {
		return track.QueuedTrack{}, err
	}
	size := c.Status().QueueSize
	if err := checkPosition(from, size); err != nil {
		return track.QueuedTrack{}, err
	}
	if err := checkPosition(to, size); err != nil {
		return track.QueuedTrack{}, err
	}
	return c.Move(from-1, to-1)
}

// Shuffle shuffles the requester's entries and returns how many were shuffled.
func (m *Manager) Shuffle(ctx context.Context, guildID snowflake.ID, user Requester) (int, error) {
	c, err := m.existing(guildID)
	if err != nil {
		return 0, err
	}
	return c.Shuffle(user.ID), nil
}

// Stop clears the queue, stops playback and leaves the voice channel.
func (m *Manager) Stop(ctx context.Context, guildID snowflake.ID) error {
	if c, ok := m.registry.Get(guildID); ok {
		c.StopAndClear()
	}
	m.voice.Disconnect(guildID)
	return nil
}

// SetPaused pauses or resumes the current track.
func (m *Manager) SetPaused(ctx context.Context, guildID snowflake.ID, paused bool) error {
	c, err := m.existing(guildID)
	if err != nil {
		return err
	}
	return c.SetPaused(paused)
}

// Queue returns the pending entries of a guild.
func (m *Manager) Queue(ctx context.Context, guildID snowflake.ID) []track.QueuedTrack {
	c, ok := m.registry.Get(guildID)
	if !ok {
		return nil
	}
	return c.Queue()
}

// Settings returns the settings of a guild.
func (m *Manager) Settings(ctx context.Context, guildID snowflake.ID) guild.Settings {
	return m.session(ctx, guildID).Settings()
}

// SetRepeatMode parses and applies a repeat mode. An empty argument toggles
// between off and all.
func (m *Manager) SetRepeatMode(ctx context.Context, guildID snowflake.ID, arg string) (guild.RepeatMode, error) {
	c := m.session(ctx, guildID)
	mode, err := guild.ParseRepeatMode(arg, c.Settings().RepeatMode)
	if err != nil {
		return mode, err
	}
	c.SetRepeatMode(mode)
	return mode, nil
}

// SetQueueType parses and applies a queue type. An empty argument reports the
// current type.
func (m *Manager) SetQueueType(ctx context.Context, guildID snowflake.ID, arg string) (guild.QueueType, error) {
	c := m.session(ctx, guildID)
	if strings.TrimSpace(arg) == "" {
		return c.Settings().QueueType, nil
	}
	t, err := guild.ParseQueueType(arg)
	if err != nil {
		return c.Settings().QueueType, err
	}
	c.SetQueueType(t)
	return t, nil
}

// SetVolume applies a volume and returns the previous one.
func (m *Manager) SetVolume(ctx context.Context, guildID snowflake.ID, volume int) (int, error) {
	c := m.session(ctx, guildID)
	old := c.Settings().Volume
	if err := c.SetVolume(volume); err != nil {
		return old, err
	}
	return old, nil
}

// SetSkipRatio applies a skip percentage.
func (m *Manager) SetSkipRatio(ctx context.Context, guildID snowflake.ID, percent int) error {
	return m.session(ctx, guildID).SetSkipRatio(percent)
}

// SetDefaultPlaylist sets the playlist played when the queue runs dry.
// "none" or an empty name clears it.
func (m *Manager) SetDefaultPlaylist(ctx context.Context, guildID snowflake.ID, name string) error {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "none") {
		name = ""
	}
	if name != "" {
		_, ok, err := m.playlists.Playlist(ctx, name)
		if err != nil {
			return errors.Wrapf(err, "failed to look up playlist %q", name)
		}
		if !ok {
			return errors.Wrapf(ErrUnknownPlaylist, "%q", name)
		}
	}
	m.session(ctx, guildID).SetDefaultPlaylist(name)
	return nil
}

// SetStayConnected keeps the bot in voice while idle.
func (m *Manager) SetStayConnected(ctx context.Context, guildID snowflake.ID, stay bool) {
	m.session(ctx, guildID).SetStayConnected(stay)
}

// Playlists lists the available default playlists.
func (m *Manager) Playlists(ctx context.Context) ([]string, error) {
	return m.playlists.Names(ctx)
}

func checkPosition(position, size int) error {
	if position < 1 || position > size {
		return errors.Wrapf(ErrInvalidPosition, "position %d, queue size %d", position, size)
	}
	return nil
}
