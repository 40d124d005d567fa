package connect

import (
	"time"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/track"
)

// AdminServiceName is the fully-qualified name of the admin service.
const AdminServiceName = "guildbox.admin.v1.AdminService"

// Procedures of the admin service.
const (
	ProcedureListGuilds    = "/" + AdminServiceName + "/ListGuilds"
	ProcedureGetStatus     = "/" + AdminServiceName + "/GetStatus"
	ProcedureGetQueue      = "/" + AdminServiceName + "/GetQueue"
	ProcedurePlay          = "/" + AdminServiceName + "/Play"
	ProcedureSkip          = "/" + AdminServiceName + "/Skip"
	ProcedureForceSkip     = "/" + AdminServiceName + "/ForceSkip"
	ProcedureSkipTo        = "/" + AdminServiceName + "/SkipTo"
	ProcedureRemove        = "/" + AdminServiceName + "/Remove"
	ProcedureMove          = "/" + AdminServiceName + "/Move"
	ProcedureShuffle       = "/" + AdminServiceName + "/Shuffle"
	ProcedurePause         = "/" + AdminServiceName + "/Pause"
	ProcedureStop          = "/" + AdminServiceName + "/Stop"
	ProcedureSetRepeat     = "/" + AdminServiceName + "/SetRepeat"
	ProcedureSetQueueType  = "/" + AdminServiceName + "/SetQueueType"
	ProcedureSetVolume     = "/" + AdminServiceName + "/SetVolume"
	ProcedureSetSkipRatio  = "/" + AdminServiceName + "/SetSkipRatio"
	ProcedureSetPlaylist   = "/" + AdminServiceName + "/SetDefaultPlaylist"
	ProcedureSetStay       = "/" + AdminServiceName + "/SetStayConnected"
	ProcedureListPlaylists = "/" + AdminServiceName + "/ListPlaylists"
	ProcedureShowNowPlay   = "/" + AdminServiceName + "/ShowNowPlaying"
	ProcedureWatch         = "/" + AdminServiceName + "/Watch"
)

// GuildRequest targets one guild.
type GuildRequest struct {
	GuildID string `json:"guild_id"`
}

// MemberRequest targets one guild on behalf of a member. An empty user id
// acts as an administrator.
type MemberRequest struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id,omitempty"`
}

// PlayRequest queues a query.
type PlayRequest struct {
	GuildID        string `json:"guild_id"`
	UserID         string `json:"user_id,omitempty"`
	VoiceChannelID string `json:"voice_channel_id,omitempty"`
	Query          string `json:"query"`
	Front          bool   `json:"front,omitempty"`
}

// PositionRequest targets a 1-based queue position.
type PositionRequest struct {
	GuildID  string `json:"guild_id"`
	UserID   string `json:"user_id,omitempty"`
	Position int    `json:"position"`
}

// MoveRequest moves a queue entry.
type MoveRequest struct {
	GuildID string `json:"guild_id"`
	From    int    `json:"from"`
	To      int    `json:"to"`
}

// PauseRequest pauses or resumes playback.
type PauseRequest struct {
	GuildID string `json:"guild_id"`
	Paused  bool   `json:"paused"`
}

// SettingRequest changes one guild setting.
type SettingRequest struct {
	GuildID string `json:"guild_id"`
	Value   string `json:"value"`
}

// ShowNowPlayingRequest posts the now playing message to a channel.
type ShowNowPlayingRequest struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
}

// WatchRequest subscribes to playback notifications. An empty guild id
// watches every guild.
type WatchRequest struct {
	GuildID string `json:"guild_id,omitempty"`
}

// TrackInfo describes a track.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Author     string `json:"author,omitempty"`
	URI        string `json:"uri,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Stream     bool   `json:"stream,omitempty"`
	Source     string `json:"source,omitempty"`
	Requester  string `json:"requester,omitempty"`
}

// QueueEntry is one pending track.
type QueueEntry struct {
	Position int       `json:"position"`
	Track    TrackInfo `json:"track"`
	AddedAt  time.Time `json:"added_at"`
}

// StatusResponse is the playback status of a guild.
type StatusResponse struct {
	GuildID         string     `json:"guild_id"`
	Active          bool       `json:"active"`
	State           string     `json:"state"`
	Track           *TrackInfo `json:"track,omitempty"`
	PositionMs      int64      `json:"position_ms"`
	Volume          int        `json:"volume"`
	RepeatMode      string     `json:"repeat_mode"`
	QueueType       string     `json:"queue_type"`
	QueueSize       int        `json:"queue_size"`
	QueueDurationMs int64      `json:"queue_duration_ms"`
}

// GuildsResponse lists guilds with a live session.
type GuildsResponse struct {
	Guilds []string `json:"guilds"`
}

// QueueResponse lists the pending tracks of a guild.
type QueueResponse struct {
	Entries []QueueEntry `json:"entries"`
}

// PlayResponse describes what a play request queued.
type PlayResponse struct {
	Track    *TrackInfo `json:"track,omitempty"`
	Position int        `json:"position"`
	Playlist string     `json:"playlist,omitempty"`
	Added    int        `json:"added"`
	Rejected int        `json:"rejected,omitempty"`
}

// SkipResponse describes a skip vote.
type SkipResponse struct {
	Track     *TrackInfo `json:"track,omitempty"`
	Skipped   bool       `json:"skipped"`
	Already   bool       `json:"already,omitempty"`
	Votes     int        `json:"votes"`
	Required  int        `json:"required"`
	Listeners int        `json:"listeners"`
}

// TrackResponse carries the track a command acted on.
type TrackResponse struct {
	Track *TrackInfo `json:"track,omitempty"`
}

// CountResponse carries a count of affected entries.
type CountResponse struct {
	Track *TrackInfo `json:"track,omitempty"`
	Count int        `json:"count"`
}

// SettingResponse carries the resulting value of a setting.
type SettingResponse struct {
	Value    string `json:"value"`
	Previous string `json:"previous,omitempty"`
}

// PlaylistsResponse lists the default playlists.
type PlaylistsResponse struct {
	Names []string `json:"names"`
}

// ShowNowPlayingResponse carries the posted message id.
type ShowNowPlayingResponse struct {
	MessageID string `json:"message_id"`
}

// Empty is an empty response.
type Empty struct{}

// Notification is a playback change pushed to watchers.
type Notification struct {
	SequenceNo uint64     `json:"sequence_no"`
	GuildID    string     `json:"guild_id"`
	Type       string     `json:"type"`
	Track      *TrackInfo `json:"track,omitempty"`
	Time       time.Time  `json:"time"`
}

func trackInfo(t *track.Track) *TrackInfo {
	if t == nil {
		return nil
	}
	info := &TrackInfo{
		Identifier: t.Identifier,
		Title:      t.Title,
		Author:     t.Author,
		URI:        t.URI,
		DurationMs: t.Duration.Milliseconds(),
		Stream:     t.Stream,
		Source:     t.SourceName,
	}
	if u := t.Metadata.User; u != nil {
		info.Requester = u.Username
	}
	return info
}

func statusResponse(s playback.Status, active bool) *StatusResponse {
	return &StatusResponse{
		GuildID:         s.GuildID.String(),
		Active:          active,
		State:           s.State.String(),
		Track:           trackInfo(s.Track),
		PositionMs:      s.Position.Milliseconds(),
		Volume:          s.Volume,
		RepeatMode:      s.RepeatMode.String(),
		QueueType:       s.QueueType.String(),
		QueueSize:       s.QueueSize,
		QueueDurationMs: s.QueueDuration.Milliseconds(),
	}
}
