package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/domain/message"
)

// EditMessage replaces the content of a posted message.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID snowflake.ID, p message.Payload) error {
	edit := discordgo.NewMessageEdit(channelID.String(), messageID.String()).
		SetContent(p.Content).
		SetEmbeds(toEmbeds(p.Embeds))
	if _, err := c.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return classify(err, "failed to edit message")
	}
	return nil
}

// PostMessage sends a new message and returns its id.
func (c *Client) PostMessage(ctx context.Context, channelID snowflake.ID, p message.Payload) (snowflake.ID, error) {
	send := &discordgo.MessageSend{
		Content: p.Content,
		Embeds:  toEmbeds(p.Embeds),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	}
	m, err := c.session.ChannelMessageSendComplex(channelID.String(), send, discordgo.WithContext(ctx))
	if err != nil {
		return 0, classify(err, "failed to post message")
	}
	return parseID(m.ID), nil
}

// classify marks REST failures that make further delivery futile.
func classify(err error, msg string) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMessage:
			return errors.Mark(errors.Wrap(err, msg), message.ErrUnknownMessage)
		case discordgo.ErrCodeUnknownChannel:
			return errors.Mark(errors.Wrap(err, msg), message.ErrUnknownChannel)
		case discordgo.ErrCodeMissingAccess:
			return errors.Mark(errors.Wrap(err, msg), message.ErrMissingAccess)
		case discordgo.ErrCodeMissingPermissions:
			return errors.Mark(errors.Wrap(err, msg), message.ErrMissingPermissions)
		}
	}
	return errors.Wrap(err, msg)
}

func toEmbeds(embeds []message.Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			URL:         e.URL,
			Description: e.Description,
			Color:       e.Color,
		}
		if e.AuthorName != "" {
			me.Author = &discordgo.MessageEmbedAuthor{Name: e.AuthorName, IconURL: e.AuthorIcon}
		}
		if e.ThumbnailURL != "" {
			me.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
		}
		if e.FooterText != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.FooterText, IconURL: e.FooterIcon}
		}
		out = append(out, me)
	}
	return out
}
