// Package connect provides the admin RPC service over the session manager.
package connect

import (
	"context"
	"net/http"
	"strconv"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/notification"
	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/app/queue"
	"github.com/osa030/guildbox/internal/app/session"
	"github.com/osa030/guildbox/internal/domain/guild"
	"github.com/osa030/guildbox/internal/domain/track"
)

// Members looks guild members up to act on their behalf.
type Members interface {
	Requester(ctx context.Context, guildID, userID snowflake.ID) (session.Requester, error)
}

// NowPlaying posts now playing messages.
type NowPlaying interface {
	Show(ctx context.Context, guildID, channelID snowflake.ID) (snowflake.ID, error)
}

// AdminService implements the admin RPC.
type AdminService struct {
	sessions      *session.Manager
	notifications *notification.Manager
	members       Members
	nowPlaying    NowPlaying
}

// NewAdminService creates a new AdminService. members and nowPlaying may be nil.
func NewAdminService(sessions *session.Manager, notifications *notification.Manager, members Members, nowPlaying NowPlaying) *AdminService {
	return &AdminService{
		sessions:      sessions,
		notifications: notifications,
		members:       members,
		nowPlaying:    nowPlaying,
	}
}

// NewAdminHandler mounts every procedure of the service. The returned path is
// the service prefix.
func NewAdminHandler(s *AdminService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ProcedureListGuilds, connect.NewUnaryHandler(ProcedureListGuilds, s.ListGuilds, opts...))
	mux.Handle(ProcedureGetStatus, connect.NewUnaryHandler(ProcedureGetStatus, s.GetStatus, opts...))
	mux.Handle(ProcedureGetQueue, connect.NewUnaryHandler(ProcedureGetQueue, s.GetQueue, opts...))
	mux.Handle(ProcedurePlay, connect.NewUnaryHandler(ProcedurePlay, s.Play, opts...))
	mux.Handle(ProcedureSkip, connect.NewUnaryHandler(ProcedureSkip, s.Skip, opts...))
	mux.Handle(ProcedureForceSkip, connect.NewUnaryHandler(ProcedureForceSkip, s.ForceSkip, opts...))
	mux.Handle(ProcedureSkipTo, connect.NewUnaryHandler(ProcedureSkipTo, s.SkipTo, opts...))
	mux.Handle(ProcedureRemove, connect.NewUnaryHandler(ProcedureRemove, s.Remove, opts...))
	mux.Handle(ProcedureMove, connect.NewUnaryHandler(ProcedureMove, s.Move, opts...))
	mux.Handle(ProcedureShuffle, connect.NewUnaryHandler(ProcedureShuffle, s.Shuffle, opts...))
	mux.Handle(ProcedurePause, connect.NewUnaryHandler(ProcedurePause, s.Pause, opts...))
	mux.Handle(ProcedureStop, connect.NewUnaryHandler(ProcedureStop, s.Stop, opts...))
	mux.Handle(ProcedureSetRepeat, connect.NewUnaryHandler(ProcedureSetRepeat, s.SetRepeat, opts...))
	mux.Handle(ProcedureSetQueueType, connect.NewUnaryHandler(ProcedureSetQueueType, s.SetQueueType, opts...))
	mux.Handle(ProcedureSetVolume, connect.NewUnaryHandler(ProcedureSetVolume, s.SetVolume, opts...))
	mux.Handle(ProcedureSetSkipRatio, connect.NewUnaryHandler(ProcedureSetSkipRatio, s.SetSkipRatio, opts...))
	mux.Handle(ProcedureSetPlaylist, connect.NewUnaryHandler(ProcedureSetPlaylist, s.SetDefaultPlaylist, opts...))
	mux.Handle(ProcedureSetStay, connect.NewUnaryHandler(ProcedureSetStay, s.SetStayConnected, opts...))
	mux.Handle(ProcedureListPlaylists, connect.NewUnaryHandler(ProcedureListPlaylists, s.ListPlaylists, opts...))
	mux.Handle(ProcedureShowNowPlay, connect.NewUnaryHandler(ProcedureShowNowPlay, s.ShowNowPlaying, opts...))
	mux.Handle(ProcedureWatch, connect.NewServerStreamHandler(ProcedureWatch, s.Watch, opts...))
	return "/" + AdminServiceName + "/", mux
}

// ListGuilds lists guilds with a live session.
func (s *AdminService) ListGuilds(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[GuildsResponse], error) {
	ids := s.sessions.Guilds()
	guilds := make([]string, len(ids))
	for i, id := range ids {
		guilds[i] = id.String()
	}
	return connect.NewResponse(&GuildsResponse{Guilds: guilds}), nil
}

// GetStatus returns the playback status of a guild.
func (s *AdminService) GetStatus(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[StatusResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	status, ok := s.sessions.Status(guildID)
	if !ok {
		settings := s.sessions.Settings(ctx, guildID)
		status = playback.Status{
			GuildID:    guildID,
			Volume:     settings.Volume,
			RepeatMode: settings.RepeatMode,
			QueueType:  settings.QueueType,
		}
	}
	return connect.NewResponse(statusResponse(status, ok)), nil
}

// GetQueue lists the pending tracks of a guild.
func (s *AdminService) GetQueue(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[QueueResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	queued := s.sessions.Queue(ctx, guildID)
	entries := make([]QueueEntry, len(queued))
	for i, q := range queued {
		entries[i] = QueueEntry{Position: i + 1, Track: *trackInfo(&q.Track), AddedAt: q.AddedAt}
	}
	return connect.NewResponse(&QueueResponse{Entries: entries}), nil
}

// Play resolves a query and queues the result.
func (s *AdminService) Play(
	ctx context.Context,
	req *connect.Request[PlayRequest],
) (*connect.Response[PlayResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	user, err := s.requester(ctx, guildID, req.Msg.UserID)
	if err != nil {
		return nil, err
	}
	var voiceID snowflake.ID
	if req.Msg.VoiceChannelID != "" {
		if voiceID, err = parseID("voice_channel_id", req.Msg.VoiceChannelID); err != nil {
			return nil, err
		}
	}

	res, err := s.sessions.Play(ctx, session.PlayRequest{
		GuildID:        guildID,
		VoiceChannelID: voiceID,
		User:           user,
		Query:          req.Msg.Query,
		Front:          req.Msg.Front,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	zlog.Info().Msgf("admin: play: guild=%s query=%q added=%d", guildID, req.Msg.Query, res.Added)
	return connect.NewResponse(&PlayResponse{
		Track:    trackInfo(&res.Track),
		Position: res.Position,
		Playlist: res.Playlist,
		Added:    res.Added,
		Rejected: res.Rejected,
	}), nil
}

// Skip votes to skip the current track.
func (s *AdminService) Skip(
	ctx context.Context,
	req *connect.Request[MemberRequest],
) (*connect.Response[SkipResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	user, err := s.requester(ctx, guildID, req.Msg.UserID)
	if err != nil {
		return nil, err
	}
	vote, err := s.sessions.Skip(ctx, guildID, user)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SkipResponse{
		Track:     trackInfo(&vote.Track),
		Skipped:   vote.Skipped,
		Already:   vote.Already,
		Votes:     vote.Votes,
		Required:  vote.Required,
		Listeners: vote.Listeners,
	}), nil
}

// ForceSkip skips the current track without a vote.
func (s *AdminService) ForceSkip(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[TrackResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	t, err := s.sessions.ForceSkip(ctx, guildID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TrackResponse{Track: trackInfo(&t)}), nil
}

// SkipTo jumps to a queue position.
func (s *AdminService) SkipTo(
	ctx context.Context,
	req *connect.Request[PositionRequest],
) (*connect.Response[TrackResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	q, err := s.sessions.SkipTo(ctx, guildID, req.Msg.Position)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TrackResponse{Track: trackInfo(&q.Track)}), nil
}

// Remove removes a queue entry, or every entry of the member at position 0.
func (s *AdminService) Remove(
	ctx context.Context,
	req *connect.Request[PositionRequest],
) (*connect.Response[CountResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	user, err := s.requester(ctx, guildID, req.Msg.UserID)
	if err != nil {
		return nil, err
	}
	res, err := s.sessions.Remove(ctx, guildID, user, req.Msg.Position)
	if err != nil {
		return nil, toConnectError(err)
	}
	resp := &CountResponse{Count: res.Count}
	if res.Removed != nil {
		resp.Track = trackInfo(&res.Removed.Track)
	}
	return connect.NewResponse(resp), nil
}

// Move moves a queue entry.
func (s *AdminService) Move(
	ctx context.Context,
	req *connect.Request[MoveRequest],
) (*connect.Response[TrackResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	q, err := s.sessions.Move(ctx, guildID, req.Msg.From, req.Msg.To)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TrackResponse{Track: trackInfo(&q.Track)}), nil
}

// Shuffle shuffles the entries of the member.
func (s *AdminService) Shuffle(
	ctx context.Context,
	req *connect.Request[MemberRequest],
) (*connect.Response[CountResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	user, err := s.requester(ctx, guildID, req.Msg.UserID)
	if err != nil {
		return nil, err
	}
	n, err := s.sessions.Shuffle(ctx, guildID, user)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CountResponse{Count: n}), nil
}

// Pause pauses or resumes playback.
func (s *AdminService) Pause(
	ctx context.Context,
	req *connect.Request[PauseRequest],
) (*connect.Response[Empty], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SetPaused(ctx, guildID, req.Msg.Paused); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// Stop clears the queue and leaves voice.
func (s *AdminService) Stop(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[Empty], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Stop(ctx, guildID); err != nil {
		return nil, toConnectError(err)
	}
	zlog.Info().Msgf("admin: stopped: guild=%s", guildID)
	return connect.NewResponse(&Empty{}), nil
}

// SetRepeat sets the repeat mode. An empty value toggles between off and all.
func (s *AdminService) SetRepeat(
	ctx context.Context,
	req *connect.Request[SettingRequest],
) (*connect.Response[SettingResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	mode, err := s.sessions.SetRepeatMode(ctx, guildID, req.Msg.Value)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SettingResponse{Value: mode.String()}), nil
}

// SetQueueType sets the queue type. An empty value reports the current one.
func (s *AdminService) SetQueueType(
	ctx context.Context,
	req *connect.Request[SettingRequest],
) (*connect.Response[SettingResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	qt, err := s.sessions.SetQueueType(ctx, guildID, req.Msg.Value)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SettingResponse{Value: qt.String()}), nil
}

// SetVolume sets the volume. An empty value reports the current one.
func (s *AdminService) SetVolume(
	ctx context.Context,
	req *connect.Request[SettingRequest],
) (*connect.Response[SettingResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	if req.Msg.Value == "" {
		current := s.sessions.Settings(ctx, guildID).Volume
		return connect.NewResponse(&SettingResponse{Value: strconv.Itoa(current)}), nil
	}
	volume, err := strconv.Atoi(req.Msg.Value)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, playback.ErrInvalidVolume)
	}
	prev, err := s.sessions.SetVolume(ctx, guildID, volume)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SettingResponse{Value: strconv.Itoa(volume), Previous: strconv.Itoa(prev)}), nil
}

// SetSkipRatio sets the skip percentage. -1 restores the configured default.
func (s *AdminService) SetSkipRatio(
	ctx context.Context,
	req *connect.Request[SettingRequest],
) (*connect.Response[SettingResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	percent, err := strconv.Atoi(req.Msg.Value)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, playback.ErrInvalidSkipRatio)
	}
	if err := s.sessions.SetSkipRatio(ctx, guildID, percent); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SettingResponse{Value: strconv.Itoa(percent)}), nil
}

// SetDefaultPlaylist sets the default playlist. "none" clears it.
func (s *AdminService) SetDefaultPlaylist(
	ctx context.Context,
	req *connect.Request[SettingRequest],
) (*connect.Response[SettingResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SetDefaultPlaylist(ctx, guildID, req.Msg.Value); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SettingResponse{Value: s.sessions.Settings(ctx, guildID).DefaultPlaylist}), nil
}

// SetStayConnected toggles staying in voice while idle.
func (s *AdminService) SetStayConnected(
	ctx context.Context,
	req *connect.Request[SettingRequest],
) (*connect.Response[SettingResponse], error) {
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	stay, err := strconv.ParseBool(req.Msg.Value)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("invalid boolean: %q", req.Msg.Value))
	}
	s.sessions.SetStayConnected(ctx, guildID, stay)
	return connect.NewResponse(&SettingResponse{Value: strconv.FormatBool(s.sessions.Settings(ctx, guildID).StayConnected)}), nil
}

// ListPlaylists lists the default playlists.
func (s *AdminService) ListPlaylists(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[PlaylistsResponse], error) {
	names, err := s.sessions.Playlists(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PlaylistsResponse{Names: names}), nil
}

// ShowNowPlaying posts the now playing message to a channel.
func (s *AdminService) ShowNowPlaying(
	ctx context.Context,
	req *connect.Request[ShowNowPlayingRequest],
) (*connect.Response[ShowNowPlayingResponse], error) {
	if s.nowPlaying == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("now playing messages are disabled"))
	}
	guildID, err := parseGuild(req.Msg.GuildID)
	if err != nil {
		return nil, err
	}
	channelID, err := parseID("channel_id", req.Msg.ChannelID)
	if err != nil {
		return nil, err
	}
	messageID, err := s.nowPlaying.Show(ctx, guildID, channelID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ShowNowPlayingResponse{MessageID: messageID.String()}), nil
}

// Watch streams playback notifications until the client goes away.
func (s *AdminService) Watch(
	ctx context.Context,
	req *connect.Request[WatchRequest],
	stream *connect.ServerStream[Notification],
) error {
	var guildID snowflake.ID
	if req.Msg.GuildID != "" {
		var err error
		if guildID, err = parseGuild(req.Msg.GuildID); err != nil {
			return err
		}
	}

	id, ch := s.notifications.Subscribe(guildID)
	defer s.notifications.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.sessions.Done():
			return nil
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(&Notification{
				SequenceNo: n.SequenceNo,
				GuildID:    n.GuildID.String(),
				Type:       n.Type.String(),
				Track:      trackInfo(n.Track),
				Time:       n.Time,
			}); err != nil {
				return err
			}
		}
	}
}

// requester resolves the member a command acts for.
func (s *AdminService) requester(ctx context.Context, guildID snowflake.ID, userID string) (session.Requester, error) {
	if userID == "" {
		return session.Requester{Username: "admin", DJ: true}, nil
	}
	id, err := parseID("user_id", userID)
	if err != nil {
		return session.Requester{}, err
	}
	if s.members == nil {
		return session.Requester{ID: id}, nil
	}
	user, err := s.members.Requester(ctx, guildID, id)
	if err != nil {
		return session.Requester{}, connect.NewError(connect.CodeNotFound, err)
	}
	return user, nil
}

func parseGuild(raw string) (snowflake.ID, error) {
	return parseID("guild_id", raw)
}

func parseID(field, raw string) (snowflake.ID, error) {
	id, err := snowflake.Parse(raw)
	if err != nil || id == 0 {
		return 0, connect.NewError(connect.CodeInvalidArgument, errors.Newf("invalid %s %q", field, raw))
	}
	return id, nil
}

// toConnectError maps command failures to RPC codes.
func toConnectError(err error) error {
	var rejected *session.RejectedError
	var loadErr *track.LoadError
	switch {
	case errors.As(err, &rejected):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.As(err, &loadErr):
		return connect.NewError(connect.CodeUnavailable, errors.New(loadErr.UserMessage()))
	case errors.Is(err, session.ErrNoMatch), errors.Is(err, session.ErrUnknownPlaylist):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, playback.ErrNoTrack), errors.Is(err, session.ErrNotInVoice):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, playback.ErrNotOwner):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.IsAny(err,
		session.ErrInvalidPosition,
		queue.ErrIndexOutOfRange,
		playback.ErrSameIndex,
		playback.ErrInvalidVolume,
		playback.ErrInvalidSkipRatio,
		guild.ErrInvalidRepeatMode,
		guild.ErrInvalidQueueType,
	):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		zlog.Error().Msgf("admin: command failed: error=%v", err)
		return connect.NewError(connect.CodeInternal, err)
	}
}
