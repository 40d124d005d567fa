package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// AdminClient calls the admin service.
type AdminClient struct {
	httpClient connect.HTTPClient
	baseURL    string
	opts       []connect.ClientOption
}

// NewAdminClient creates a client for the service at baseURL.
func NewAdminClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *AdminClient {
	opts = append([]connect.ClientOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(&tokenInterceptor{token: token}),
	}, opts...)
	return &AdminClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
	}
}

func unary[Req, Res any](ctx context.Context, c *AdminClient, procedure string, req *Req) (*Res, error) {
	client := connect.NewClient[Req, Res](c.httpClient, c.baseURL+procedure, c.opts...)
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *AdminClient) ListGuilds(ctx context.Context) (*GuildsResponse, error) {
	return unary[Empty, GuildsResponse](ctx, c, ProcedureListGuilds, &Empty{})
}

func (c *AdminClient) GetStatus(ctx context.Context, req *GuildRequest) (*StatusResponse, error) {
	return unary[GuildRequest, StatusResponse](ctx, c, ProcedureGetStatus, req)
}

func (c *AdminClient) GetQueue(ctx context.Context, req *GuildRequest) (*QueueResponse, error) {
	return unary[GuildRequest, QueueResponse](ctx, c, ProcedureGetQueue, req)
}

func (c *AdminClient) Play(ctx context.Context, req *PlayRequest) (*PlayResponse, error) {
	return unary[PlayRequest, PlayResponse](ctx, c, ProcedurePlay, req)
}

func (c *AdminClient) Skip(ctx context.Context, req *MemberRequest) (*SkipResponse, error) {
	return unary[MemberRequest, SkipResponse](ctx, c, ProcedureSkip, req)
}

func (c *AdminClient) ForceSkip(ctx context.Context, req *GuildRequest) (*TrackResponse, error) {
	return unary[GuildRequest, TrackResponse](ctx, c, ProcedureForceSkip, req)
}

func (c *AdminClient) SkipTo(ctx context.Context, req *PositionRequest) (*TrackResponse, error) {
	return unary[PositionRequest, TrackResponse](ctx, c, ProcedureSkipTo, req)
}

func (c *AdminClient) Remove(ctx context.Context, req *PositionRequest) (*CountResponse, error) {
	return unary[PositionRequest, CountResponse](ctx, c, ProcedureRemove, req)
}

func (c *AdminClient) Move(ctx context.Context, req *MoveRequest) (*TrackResponse, error) {
	return unary[MoveRequest, TrackResponse](ctx, c, ProcedureMove, req)
}

func (c *AdminClient) Shuffle(ctx context.Context, req *MemberRequest) (*CountResponse, error) {
	return unary[MemberRequest, CountResponse](ctx, c, ProcedureShuffle, req)
}

func (c *AdminClient) Pause(ctx context.Context, req *PauseRequest) error {
	_, err := unary[PauseRequest, Empty](ctx, c, ProcedurePause, req)
	return err
}

func (c *AdminClient) Stop(ctx context.Context, req *GuildRequest) error {
	_, err := unary[GuildRequest, Empty](ctx, c, ProcedureStop, req)
	return err
}

func (c *AdminClient) SetRepeat(ctx context.Context, req *SettingRequest) (*SettingResponse, error) {
	return unary[SettingRequest, SettingResponse](ctx, c, ProcedureSetRepeat, req)
}

func (c *AdminClient) SetQueueType(ctx context.Context, req *SettingRequest) (*SettingResponse, error) {
	return unary[SettingRequest, SettingResponse](ctx, c, ProcedureSetQueueType, req)
}

func (c *AdminClient) SetVolume(ctx context.Context, req *SettingRequest) (*SettingResponse, error) {
	return unary[SettingRequest, SettingResponse](ctx, c, ProcedureSetVolume, req)
}

func (c *AdminClient) SetSkipRatio(ctx context.Context, req *SettingRequest) (*SettingResponse, error) {
	return unary[SettingRequest, SettingResponse](ctx, c, ProcedureSetSkipRatio, req)
}

func (c *AdminClient) SetDefaultPlaylist(ctx context.Context, req *SettingRequest) (*SettingResponse, error) {
	return unary[SettingRequest, SettingResponse](ctx, c, ProcedureSetPlaylist, req)
}

func (c *AdminClient) SetStayConnected(ctx context.Context, req *SettingRequest) (*SettingResponse, error) {
	return unary[SettingRequest, SettingResponse](ctx, c, ProcedureSetStay, req)
}

func (c *AdminClient) ListPlaylists(ctx context.Context) (*PlaylistsResponse, error) {
	return unary[Empty, PlaylistsResponse](ctx, c, ProcedureListPlaylists, &Empty{})
}

func (c *AdminClient) ShowNowPlaying(ctx context.Context, req *ShowNowPlayingRequest) (*ShowNowPlayingResponse, error) {
	return unary[ShowNowPlayingRequest, ShowNowPlayingResponse](ctx, c, ProcedureShowNowPlay, req)
}

// Watch calls fn for every notification until the stream ends or fn fails.
func (c *AdminClient) Watch(ctx context.Context, req *WatchRequest, fn func(*Notification) error) error {
	client := connect.NewClient[WatchRequest, Notification](c.httpClient, c.baseURL+ProcedureWatch, c.opts...)
	stream, err := client.CallServerStream(ctx, connect.NewRequest(req))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	return stream.Err()
}
