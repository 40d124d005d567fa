package discord

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/session"
	"github.com/osa030/guildbox/internal/domain/listener"
)

const joinTimeout = 10 * time.Second

// ErrGuildNotCached is returned when the guild is missing from the gateway state.
var ErrGuildNotCached = errors.New("guild not in gateway state")

// Join moves the bot into a voice channel and waits for the voice handshake.
func (c *Client) Join(ctx context.Context, guildID, channelID snowflake.ID) error {
	if current, ok := c.VoiceChannel(guildID); ok && current == channelID {
		return nil
	}

	ready := make(chan struct{})
	c.mu.Lock()
	c.waiters[guildID] = append(c.waiters[guildID], ready)
	c.mu.Unlock()

	if err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, true); err != nil {
		c.dropWaiter(guildID, ready)
		return errors.Wrapf(err, "failed to join voice channel %s", channelID)
	}

	select {
	case <-ready:
		zlog.Info().Msgf("discord: joined voice: guild=%s channel=%s", guildID, channelID)
		return nil
	case <-ctx.Done():
		c.dropWaiter(guildID, ready)
		return ctx.Err()
	case <-time.After(joinTimeout):
		c.dropWaiter(guildID, ready)
		return errors.Newf("timed out joining voice channel %s", channelID)
	}
}

func (c *Client) dropWaiter(guildID snowflake.ID, ready chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws := c.waiters[guildID]
	for i, w := range ws {
		if w == ready {
			c.waiters[guildID] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(c.waiters[guildID]) == 0 {
		delete(c.waiters, guildID)
	}
}

// releaseWaiters wakes every Join waiting on the guild.
func (c *Client) releaseWaiters(guildID snowflake.ID) {
	c.mu.Lock()
	ws := c.waiters[guildID]
	delete(c.waiters, guildID)
	c.mu.Unlock()
	for _, w := range ws {
		close(w)
	}
}

// Disconnect leaves the voice channel of a guild.
func (c *Client) Disconnect(guildID snowflake.ID) {
	if err := c.session.ChannelVoiceJoinManual(guildID.String(), "", false, false); err != nil {
		zlog.Warn().Msgf("discord: failed to leave voice: guild=%s error=%v", guildID, err)
	}
}

// Connected reports whether the bot is in a voice channel of the guild.
func (c *Client) Connected(guildID snowflake.ID) bool {
	_, ok := c.VoiceChannel(guildID)
	return ok
}

// VoiceChannel returns the voice channel the bot is in.
func (c *Client) VoiceChannel(guildID snowflake.ID) (snowflake.ID, bool) {
	botID := c.BotID()
	if botID == 0 {
		return 0, false
	}
	vs, err := c.session.State.VoiceState(guildID.String(), botID.String())
	if err != nil || vs.ChannelID == "" {
		return 0, false
	}
	return parseID(vs.ChannelID), true
}

// Members lists the users in the bot's voice channel, the bot excluded.
func (c *Client) Members(guildID snowflake.ID) ([]listener.Member, error) {
	g, err := c.session.State.Guild(guildID.String())
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to read guild %s", guildID), ErrGuildNotCached)
	}
	channelID, ok := c.VoiceChannel(guildID)
	if !ok {
		return nil, nil
	}
	botID := c.BotID().String()
	channel := channelID.String()

	var members []listener.Member
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channel || vs.UserID == botID {
			continue
		}
		m := listener.Member{
			ID:       parseID(vs.UserID),
			Deafened: vs.Deaf || vs.SelfDeaf,
		}
		if u := c.user(g.ID, vs); u != nil {
			m.Username = u.Username
			m.Bot = u.Bot
		}
		members = append(members, m)
	}
	return members, nil
}

func (c *Client) user(guildID string, vs *discordgo.VoiceState) *discordgo.User {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User
	}
	if m, err := c.session.State.Member(guildID, vs.UserID); err == nil && m.User != nil {
		return m.User
	}
	return nil
}

// HasGuild reports whether the guild is in the gateway state.
func (c *Client) HasGuild(guildID snowflake.ID) bool {
	_, err := c.session.State.Guild(guildID.String())
	return err == nil
}

// HasTextChannel reports whether channelID is a text channel of the guild.
func (c *Client) HasTextChannel(guildID, channelID snowflake.ID) bool {
	ch, err := c.session.State.Channel(channelID.String())
	if err != nil || ch.GuildID != guildID.String() {
		return false
	}
	return ch.Type == discordgo.ChannelTypeGuildText || ch.Type == discordgo.ChannelTypeGuildNews
}

// Requester describes a guild member issuing a command. Guild owners, members
// with the manage server permission and holders of the DJ role are DJs.
func (c *Client) Requester(ctx context.Context, guildID, userID snowflake.ID) (session.Requester, error) {
	m, err := c.session.State.Member(guildID.String(), userID.String())
	if err != nil {
		m, err = c.session.GuildMember(guildID.String(), userID.String(), discordgo.WithContext(ctx))
		if err != nil {
			return session.Requester{}, errors.Wrapf(err, "failed to look member %s up", userID)
		}
	}
	if m.User == nil {
		return session.Requester{}, errors.Newf("member %s has no user", userID)
	}
	return session.Requester{
		ID:       userID,
		Username: m.User.Username,
		Discrim:  m.User.Discriminator,
		Avatar:   m.User.AvatarURL(""),
		DJ:       c.isDJ(guildID.String(), m),
	}, nil
}

func (c *Client) isDJ(guildID string, m *discordgo.Member) bool {
	g, err := c.session.State.Guild(guildID)
	if err != nil {
		return false
	}
	if m.User != nil && g.OwnerID == m.User.ID {
		return true
	}
	for _, roleID := range m.Roles {
		r, err := c.session.State.Role(guildID, roleID)
		if err != nil {
			continue
		}
		if r.Permissions&(discordgo.PermissionManageServer|discordgo.PermissionAdministrator) != 0 {
			return true
		}
		if c.config.DJRole != "" && strings.EqualFold(r.Name, c.config.DJRole) {
			return true
		}
	}
	return false
}
