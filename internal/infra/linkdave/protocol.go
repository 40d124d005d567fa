package linkdave

import (
	"encoding/json"

	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/app/playback"
)

// Client to node ops.
const (
	opIdentify    uint8 = 0
	opVoiceUpdate uint8 = 1
	opPlay        uint8 = 2
	opPause       uint8 = 3
	opResume      uint8 = 4
	opStop        uint8 = 5
	opDisconnect  uint8 = 7
	opPing        uint8 = 8
	opVolume      uint8 = 9
)

// Node to client ops.
const (
	opReady           uint8 = 0
	opPlayerUpdate    uint8 = 1
	opTrackStart      uint8 = 2
	opTrackEnd        uint8 = 3
	opTrackError      uint8 = 4
	opVoiceConnect    uint8 = 5
	opVoiceDisconnect uint8 = 6
	opPong            uint8 = 7
	opStats           uint8 = 8
	opNodeDraining    uint8 = 9
)

const playerStatePaused = "paused"

type message struct {
	Op   uint8 `json:"op"`
	Data any   `json:"d,omitempty"`
}

type inbound struct {
	Op   uint8           `json:"op"`
	Data json.RawMessage `json:"d"`
}

type identifyData struct {
	ClientID snowflake.ID `json:"bot_id"`
}

type voiceServerEvent struct {
	Token    string `json:"token"`
	GuildID  string `json:"guild_id"`
	Endpoint string `json:"endpoint"`
}

type voiceUpdateData struct {
	GuildID   snowflake.ID     `json:"guild_id"`
	ChannelID snowflake.ID     `json:"channel_id"`
	SessionID string           `json:"session_id"`
	Event     voiceServerEvent `json:"event"`
}

type playData struct {
	GuildID   snowflake.ID `json:"guild_id"`
	URL       string       `json:"url"`
	StartTime int64        `json:"start_time,omitempty"`
	Volume    int          `json:"volume,omitempty"`
}

type guildData struct {
	GuildID snowflake.ID `json:"guild_id"`
}

type volumeData struct {
	GuildID snowflake.ID `json:"guild_id"`
	Volume  int          `json:"volume"`
}

type readyData struct {
	SessionID string `json:"session_id"`
	Resumed   bool   `json:"resumed"`
}

type playerUpdateData struct {
	GuildID  snowflake.ID `json:"guild_id"`
	State    string       `json:"state"`
	Position int64        `json:"position"`
	Volume   int          `json:"volume"`
}

type trackInfo struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Duration int64  `json:"duration,omitempty"`
}

type trackStartData struct {
	GuildID snowflake.ID `json:"guild_id"`
	Track   trackInfo    `json:"track"`
}

type trackEndData struct {
	GuildID snowflake.ID `json:"guild_id"`
	Track   trackInfo    `json:"track"`
	Reason  string       `json:"reason"`
}

type trackErrorData struct {
	GuildID snowflake.ID `json:"guild_id"`
	Track   trackInfo    `json:"track"`
	Error   string       `json:"error"`
}

type voiceConnectData struct {
	GuildID   snowflake.ID `json:"guild_id"`
	ChannelID snowflake.ID `json:"channel_id"`
}

type voiceDisconnectData struct {
	GuildID snowflake.ID `json:"guild_id"`
	Reason  string       `json:"reason,omitempty"`
}

type nodeDrainingData struct {
	Reason     string `json:"reason"`
	DeadlineMs int64  `json:"deadline_ms"`
}

// endReason maps a node end reason to a playback end reason.
func endReason(s string) playback.EndReason {
	switch s {
	case "finished":
		return playback.EndFinished
	case "stopped":
		return playback.EndStopped
	case "replaced":
		return playback.EndReplaced
	case "cleanup":
		return playback.EndCleanup
	default:
		return playback.EndLoadFailed
	}
}
