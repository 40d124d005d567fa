// Package linkdave is a client for a linkdave audio node. One websocket
// connection carries the players of every guild.
package linkdave

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/track"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024

	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Errors
var (
	ErrSendBufferFull = errors.New("linkdave send buffer full")
)

// Config represents the node connection settings.
type Config struct {
	URL        string
	Password   string
	ClientName string
	BotID      snowflake.ID
}

// playerState is what the client remembers about a guild player. The request
// metadata travels serialized next to the url the node reports back.
type playerState struct {
	url      string
	track    track.Track
	meta     string
	volume   int
	position int64
	paused   bool
}

// Client talks to the audio node and implements the session backend.
type Client struct {
	config Config
	dialer *websocket.Dialer

	sendCh    chan message
	events    chan playback.Event
	connected atomic.Bool

	mu      sync.Mutex
	players map[snowflake.ID]*playerState
	voice   map[snowflake.ID]voiceUpdateData
}

// New creates a client. Run must be called to connect.
func New(cfg Config) *Client {
	if cfg.ClientName == "" {
		cfg.ClientName = "guildbox"
	}
	return &Client{
		config:  cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		sendCh:  make(chan message, 256),
		events:  make(chan playback.Event, 1024),
		players: make(map[snowflake.ID]*playerState),
		voice:   make(map[snowflake.ID]voiceUpdateData),
	}
}

// Events returns the playback events of every guild.
func (c *Client) Events() <-chan playback.Event {
	return c.events
}

// Connected reports whether the node connection is up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Player returns the player handle of a guild.
func (c *Client) Player(guildID snowflake.ID) playback.Player {
	return &guildPlayer{client: c, guildID: guildID}
}

// Destroy tears the player of a guild down on the node.
func (c *Client) Destroy(guildID snowflake.ID) {
	c.mu.Lock()
	delete(c.players, guildID)
	delete(c.voice, guildID)
	c.mu.Unlock()
	c.send(message{Op: opDisconnect, Data: guildData{GuildID: guildID}})
}

// VoiceUpdate forwards the voice credentials of a guild to the node. They are
// replayed after a reconnect.
func (c *Client) VoiceUpdate(guildID, channelID snowflake.ID, sessionID, token, endpoint string) {
	update := voiceUpdateData{
		GuildID:   guildID,
		ChannelID: channelID,
		SessionID: sessionID,
		Event: voiceServerEvent{
			Token:    token,
			GuildID:  guildID.String(),
			Endpoint: endpoint,
		},
	}
	c.mu.Lock()
	c.voice[guildID] = update
	c.mu.Unlock()
	c.send(message{Op: opVoiceUpdate, Data: update})
}

// Run keeps the node connection alive until ctx is done.
func (c *Client) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		established, err := c.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if established {
			backoff = minBackoff
		}
		zlog.Warn().Msgf("linkdave: connection lost, reconnecting: url=%s backoff=%v error=%v", c.config.URL, backoff, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// connect runs one connection until it fails.
func (c *Client) connect(ctx context.Context) (bool, error) {
	header := http.Header{}
	header.Set("Client-Name", c.config.ClientName)
	if c.config.Password != "" {
		header.Set("Authorization", c.config.Password)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.config.URL, header)
	if err != nil {
		return false, errors.Wrap(err, "failed to dial node")
	}
	defer conn.Close()

	c.drainSend()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(message{Op: opIdentify, Data: identifyData{ClientID: c.config.BotID}}); err != nil {
		return false, errors.Wrap(err, "failed to identify")
	}

	c.connected.Store(true)
	defer c.connected.Store(false)
	zlog.Info().Msgf("linkdave: connected: url=%s", c.config.URL)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writePump(conn, done)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	c.resync()
	err = c.readPump(ctx, conn)
	close(done)
	conn.Close()
	wg.Wait()
	return true, err
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return errors.Wrap(err, "websocket read error")
			}
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(ctx, data)
	}
}

func (c *Client) writePump(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.sendCh:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				zlog.Warn().Msgf("linkdave: failed to write message: op=%d error=%v", msg.Op, err)
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

func (c *Client) send(msg message) bool {
	select {
	case c.sendCh <- msg:
		return true
	default:
		zlog.Warn().Msgf("linkdave: send buffer full, dropping message: op=%d", msg.Op)
		return false
	}
}

// drainSend drops messages queued for a previous connection.
func (c *Client) drainSend() {
	for {
		select {
		case <-c.sendCh:
		default:
			return
		}
	}
}

// resync replays voice credentials and resumes the tracks that were playing
// when the previous connection dropped.
func (c *Client) resync() {
	c.mu.Lock()
	var msgs []message
	for _, update := range c.voice {
		msgs = append(msgs, message{Op: opVoiceUpdate, Data: update})
	}
	for guildID, p := range c.players {
		if p.url == "" {
			continue
		}
		msgs = append(msgs, message{Op: opPlay, Data: playData{
			GuildID:   guildID,
			URL:       p.url,
			StartTime: p.position,
			Volume:    p.volume,
		}})
		if p.paused {
			msgs = append(msgs, message{Op: opPause, Data: guildData{GuildID: guildID}})
		}
	}
	c.mu.Unlock()

	for _, msg := range msgs {
		c.send(msg)
	}
	if len(msgs) > 0 {
		zlog.Info().Msgf("linkdave: resynced players: messages=%d", len(msgs))
	}
}

func (c *Client) handle(ctx context.Context, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		zlog.Warn().Msgf("linkdave: failed to decode message: error=%v", err)
		return
	}

	switch msg.Op {
	case opReady:
		var d readyData
		if decode(msg, &d) {
			zlog.Info().Msgf("linkdave: ready: session=%s resumed=%v", d.SessionID, d.Resumed)
		}
	case opPlayerUpdate:
		var d playerUpdateData
		if decode(msg, &d) {
			c.onPlayerUpdate(ctx, d)
		}
	case opTrackStart:
		var d trackStartData
		if decode(msg, &d) {
			c.emit(ctx, playback.Event{Type: playback.EventTrackStarted, GuildID: d.GuildID, Track: c.trackFor(d.GuildID, d.Track)})
		}
	case opTrackEnd:
		var d trackEndData
		if decode(msg, &d) {
			c.onTrackEnd(ctx, d.GuildID, d.Track, endReason(d.Reason))
		}
	case opTrackError:
		var d trackErrorData
		if decode(msg, &d) {
			c.onTrackError(ctx, d)
		}
	case opVoiceConnect:
		var d voiceConnectData
		if decode(msg, &d) {
			zlog.Debug().Msgf("linkdave: voice connected: guild=%s channel=%s", d.GuildID, d.ChannelID)
		}
	case opVoiceDisconnect:
		var d voiceDisconnectData
		if decode(msg, &d) {
			zlog.Debug().Msgf("linkdave: voice disconnected: guild=%s reason=%s", d.GuildID, d.Reason)
		}
	case opNodeDraining:
		var d nodeDrainingData
		if decode(msg, &d) {
			zlog.Warn().Msgf("linkdave: node draining: reason=%s deadline_ms=%d", d.Reason, d.DeadlineMs)
		}
	case opPong, opStats:
	default:
		zlog.Debug().Msgf("linkdave: unknown op: op=%d", msg.Op)
	}
}

func decode(msg inbound, v any) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		zlog.Warn().Msgf("linkdave: failed to decode payload: op=%d error=%v", msg.Op, err)
		return false
	}
	return true
}

func (c *Client) onPlayerUpdate(ctx context.Context, d playerUpdateData) {
	c.mu.Lock()
	p, ok := c.players[d.GuildID]
	if ok {
		p.position = d.Position
		p.paused = d.State == playerStatePaused
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	c.emit(ctx, playback.Event{
		Type:     playback.EventPlayerUpdate,
		GuildID:  d.GuildID,
		Position: time.Duration(d.Position) * time.Millisecond,
		Paused:   d.State == playerStatePaused,
	})
}

func (c *Client) onTrackEnd(ctx context.Context, guildID snowflake.ID, info trackInfo, reason playback.EndReason) {
	t := c.trackFor(guildID, info)
	if reason != playback.EndReplaced {
		c.mu.Lock()
		if p, ok := c.players[guildID]; ok && p.url == info.URL {
			p.url = ""
			p.position = 0
			p.paused = false
		}
		c.mu.Unlock()
	}
	c.emit(ctx, playback.Event{Type: playback.EventTrackEnded, GuildID: guildID, Track: t, Reason: reason})
}

// onTrackError reports the exception. The node sends no end event after a
// failed play, so one is synthesized.
func (c *Client) onTrackError(ctx context.Context, d trackErrorData) {
	if d.Track.URL == "" {
		zlog.Warn().Msgf("linkdave: node error: guild=%s error=%s", d.GuildID, d.Error)
		return
	}
	t := c.trackFor(d.GuildID, d.Track)
	c.emit(ctx, playback.Event{
		Type:    playback.EventTrackException,
		GuildID: d.GuildID,
		Track:   t,
		Err:     &playback.TrackError{Message: d.Error, Severity: severity(d.Error)},
	})
	c.onTrackEnd(ctx, d.GuildID, d.Track, playback.EndLoadFailed)
}

// trackFor returns the track the node refers to, with its request metadata.
func (c *Client) trackFor(guildID snowflake.ID, info trackInfo) track.Track {
	c.mu.Lock()
	p, ok := c.players[guildID]
	var t track.Track
	var meta string
	if ok && p.url == info.URL {
		t, meta = p.track, p.meta
	}
	c.mu.Unlock()

	if !ok || t.URI != info.URL {
		return track.Track{URI: info.URL, Identifier: info.URL, Title: info.Title, Duration: time.Duration(info.Duration) * time.Millisecond}
	}
	if meta != "" {
		if md, err := track.ParseRequestMetadata(meta); err == nil {
			t.Metadata = md
		} else {
			zlog.Debug().Msgf("linkdave: failed to decode request metadata: guild=%s error=%v", guildID, err)
		}
	}
	return t
}

func (c *Client) emit(ctx context.Context, e playback.Event) {
	select {
	case c.events <- e:
	case <-ctx.Done():
	}
}

// severity classifies a node error message.
func severity(msg string) track.Severity {
	m := strings.ToLower(msg)
	for _, s := range []string{"403", "404", "410", "not found", "unsupported", "forbidden"} {
		if strings.Contains(m, s) {
			return track.SeverityCommon
		}
	}
	if strings.Contains(m, "voice") {
		return track.SeveritySuspicious
	}
	return track.SeverityFault
}

// guildPlayer is the playback.Player of one guild. Calls never block.
type guildPlayer struct {
	client  *Client
	guildID snowflake.ID
}

func (p *guildPlayer) state() *playerState {
	s, ok := p.client.players[p.guildID]
	if !ok {
		s = &playerState{volume: 100}
		p.client.players[p.guildID] = s
	}
	return s
}

// Play starts t. While the node is unreachable the request is kept and sent
// on reconnect.
func (p *guildPlayer) Play(t track.Track, volume int) error {
	meta := ""
	if !t.Metadata.IsEmpty() {
		meta = t.Metadata.String()
	}
	stored := t
	stored.Metadata = track.RequestMetadata{}

	c := p.client
	c.mu.Lock()
	s := p.state()
	s.url = t.URI
	s.track = stored
	s.meta = meta
	s.volume = volume
	s.position = 0
	s.paused = false
	c.mu.Unlock()

	if !c.Connected() {
		zlog.Debug().Msgf("linkdave: node unreachable, play deferred: guild=%s uri=%s", p.guildID, t.URI)
		return nil
	}
	msg := message{Op: opPlay, Data: playData{
		GuildID:   p.guildID,
		URL:       t.URI,
		StartTime: t.Metadata.StartTimestamp(),
		Volume:    volume,
	}}
	if !c.send(msg) {
		return ErrSendBufferFull
	}
	return nil
}

func (p *guildPlayer) Stop() error {
	c := p.client
	c.mu.Lock()
	s := p.state()
	playing := s.url != ""
	c.mu.Unlock()

	if !c.Connected() {
		if playing {
			return errors.New("linkdave node unreachable")
		}
		return nil
	}
	if !c.send(message{Op: opStop, Data: guildData{GuildID: p.guildID}}) {
		return ErrSendBufferFull
	}
	return nil
}

func (p *guildPlayer) SetPaused(paused bool) error {
	c := p.client
	c.mu.Lock()
	p.state().paused = paused
	c.mu.Unlock()

	op := opResume
	if paused {
		op = opPause
	}
	if !c.Connected() {
		return nil
	}
	if !c.send(message{Op: op, Data: guildData{GuildID: p.guildID}}) {
		return ErrSendBufferFull
	}
	return nil
}

func (p *guildPlayer) SetVolume(volume int) error {
	c := p.client
	c.mu.Lock()
	p.state().volume = volume
	c.mu.Unlock()

	if !c.Connected() {
		return nil
	}
	if !c.send(message{Op: opVolume, Data: volumeData{GuildID: p.guildID, Volume: volume}}) {
		return ErrSendBufferFull
	}
	return nil
}
