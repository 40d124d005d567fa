package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"
)

// SetListening shows the title as a listening activity.
func (c *Client) SetListening(title string) {
	c.updateStatus(&discordgo.Activity{Name: title, Type: discordgo.ActivityTypeListening})
}

// ResetPresence restores the configured default game.
func (c *Client) ResetPresence() {
	c.updateStatus(parseGame(c.config.DefaultGame))
}

func (c *Client) updateStatus(a *discordgo.Activity) {
	data := discordgo.UpdateStatusData{Status: string(discordgo.StatusOnline), Activities: []*discordgo.Activity{}}
	if a != nil {
		data.Activities = append(data.Activities, a)
	}
	if err := c.session.UpdateStatusComplex(data); err != nil {
		zlog.Debug().Msgf("discord: failed to update presence: error=%v", err)
	}
}

// parseGame reads "playing <name>", "listening <name>", "watching <name>" or
// "streaming <url> <name>". Anything else is played as is.
func parseGame(game string) *discordgo.Activity {
	game = strings.TrimSpace(game)
	if game == "" || strings.EqualFold(game, "none") {
		return nil
	}
	verb, rest, _ := strings.Cut(game, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "playing":
		return &discordgo.Activity{Name: rest, Type: discordgo.ActivityTypeGame}
	case "listening":
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "to "))
		return &discordgo.Activity{Name: rest, Type: discordgo.ActivityTypeListening}
	case "watching":
		return &discordgo.Activity{Name: rest, Type: discordgo.ActivityTypeWatching}
	case "streaming":
		url, name, ok := strings.Cut(rest, " ")
		if !ok {
			return &discordgo.Activity{Name: rest, Type: discordgo.ActivityTypeGame}
		}
		return &discordgo.Activity{Name: strings.TrimSpace(name), Type: discordgo.ActivityTypeStreaming, URL: url}
	default:
		return &discordgo.Activity{Name: game, Type: discordgo.ActivityTypeGame}
	}
}
