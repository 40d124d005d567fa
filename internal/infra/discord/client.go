// Package discord adapts a discordgo gateway session to the playback engine:
// messages, presence, voice connections and guild state.
package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"
)

// VoiceSink receives the voice credentials of the bot user.
type VoiceSink interface {
	VoiceUpdate(guildID, channelID snowflake.ID, sessionID, token, endpoint string)
}

// Hooks are called for gateway events the engine reacts to. Nil hooks are skipped.
type Hooks struct {
	MessageDeleted func(guildID, messageID snowflake.ID)
	GuildRemoved   func(guildID snowflake.ID)
}

// Config represents the gateway client configuration.
type Config struct {
	Token       string
	DefaultGame string
	DJRole      string
}

// pendingVoice collects the two halves of a voice handshake.
type pendingVoice struct {
	channelID snowflake.ID
	sessionID string
	token     string
	endpoint  string
}

// Client wraps a discordgo session.
type Client struct {
	session *discordgo.Session
	config  Config
	sink    VoiceSink
	hooks   Hooks

	mu      sync.Mutex
	pending map[snowflake.ID]*pendingVoice
	waiters map[snowflake.ID][]chan struct{}
}

// New creates a client. Open must be called to connect to the gateway.
func New(cfg Config, sink VoiceSink) (*Client, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord session")
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers
	s.State.TrackVoice = true
	s.State.TrackMembers = true

	return newClient(s, cfg, sink), nil
}

// LookupBotID fetches the id of the user the token belongs to.
func LookupBotID(ctx context.Context, token string) (snowflake.ID, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create discord session")
	}
	u, err := s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return 0, errors.Wrap(err, "failed to fetch bot user")
	}
	id, err := snowflake.Parse(u.ID)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid bot user id: %s", u.ID)
	}
	return id, nil
}

func newClient(s *discordgo.Session, cfg Config, sink VoiceSink) *Client {
	c := &Client{
		session: s,
		config:  cfg,
		sink:    sink,
		pending: make(map[snowflake.ID]*pendingVoice),
		waiters: make(map[snowflake.ID][]chan struct{}),
	}
	s.AddHandler(c.onReady)
	s.AddHandler(c.onVoiceStateUpdate)
	s.AddHandler(c.onVoiceServerUpdate)
	s.AddHandler(c.onMessageDelete)
	s.AddHandler(c.onGuildDelete)
	return c
}

// SetHooks installs the event hooks. It must be called before Open.
func (c *Client) SetHooks(h Hooks) {
	c.hooks = h
}

// Open connects to the gateway.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open discord session")
	}
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	return c.session.Close()
}

// BotID returns the id of the bot user, or 0 before the gateway is ready.
func (c *Client) BotID() snowflake.ID {
	if c.session.State == nil || c.session.State.User == nil {
		return 0
	}
	return parseID(c.session.State.User.ID)
}

func (c *Client) onReady(s *discordgo.Session, r *discordgo.Ready) {
	zlog.Info().Msgf("discord: ready: user=%s guilds=%d", r.User.Username, len(r.Guilds))
	c.ResetPresence()
}

func (c *Client) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	botID := c.BotID()
	if vs == nil || vs.VoiceState == nil || botID == 0 || parseID(vs.UserID) != botID {
		return
	}
	guildID := parseID(vs.GuildID)
	if vs.ChannelID == "" {
		c.mu.Lock()
		delete(c.pending, guildID)
		c.mu.Unlock()
		zlog.Debug().Msgf("discord: left voice: guild=%s", guildID)
		return
	}

	c.mu.Lock()
	p := c.pendingFor(guildID)
	p.channelID = parseID(vs.ChannelID)
	p.sessionID = vs.SessionID
	c.mu.Unlock()
	c.flushVoice(guildID)
}

func (c *Client) onVoiceServerUpdate(s *discordgo.Session, vs *discordgo.VoiceServerUpdate) {
	if vs == nil {
		return
	}
	guildID := parseID(vs.GuildID)
	c.mu.Lock()
	p := c.pendingFor(guildID)
	p.token = vs.Token
	p.endpoint = vs.Endpoint
	c.mu.Unlock()
	c.flushVoice(guildID)
}

// flushVoice forwards the handshake once both halves arrived.
func (c *Client) flushVoice(guildID snowflake.ID) {
	c.mu.Lock()
	p, ok := c.pending[guildID]
	if !ok || p.sessionID == "" || p.token == "" || p.channelID == 0 {
		c.mu.Unlock()
		return
	}
	v := *p
	c.mu.Unlock()

	if c.sink != nil {
		c.sink.VoiceUpdate(guildID, v.channelID, v.sessionID, v.token, v.endpoint)
	}
	c.releaseWaiters(guildID)
}

func (c *Client) pendingFor(guildID snowflake.ID) *pendingVoice {
	p, ok := c.pending[guildID]
	if !ok {
		p = &pendingVoice{}
		c.pending[guildID] = p
	}
	return p
}

func (c *Client) onMessageDelete(s *discordgo.Session, m *discordgo.MessageDelete) {
	if m == nil || m.Message == nil || m.GuildID == "" || c.hooks.MessageDeleted == nil {
		return
	}
	c.hooks.MessageDeleted(parseID(m.GuildID), parseID(m.ID))
}

func (c *Client) onGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g == nil || g.Guild == nil {
		return
	}
	guildID := parseID(g.ID)
	zlog.Info().Msgf("discord: guild removed: guild=%s unavailable=%v", guildID, g.Unavailable)
	c.mu.Lock()
	delete(c.pending, guildID)
	c.mu.Unlock()
	if c.hooks.GuildRemoved != nil {
		c.hooks.GuildRemoved(guildID)
	}
}

func parseID(s string) snowflake.ID {
	id, err := snowflake.Parse(s)
	if err != nil {
		return 0
	}
	return id
}
