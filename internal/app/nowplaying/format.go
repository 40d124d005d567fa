package nowplaying

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/message"
	"github.com/osa030/guildbox/internal/domain/track"
)

const (
	PlayEmoji  = "\u25B6" // ▶
	PauseEmoji = "\u23F8" // ⏸
	StopEmoji  = "\u23F9" // ⏹

	barCells = 12
)

// FormatOptions controls payload rendering.
type FormatOptions struct {
	SuccessEmoji string
	Images       bool
}

// Render builds the status payload for a guild. voiceChannel may be zero when
// the bot is not connected.
func Render(s playback.Status, voiceChannel snowflake.ID, opts FormatOptions) message.Payload {
	if s.Track == nil {
		return RenderNoMusic(s.Volume, opts)
	}
	t := s.Track

	content := opts.SuccessEmoji + " **Now Playing...**"
	if voiceChannel != 0 {
		content = fmt.Sprintf("%s **Now Playing in <#%s>...**", opts.SuccessEmoji, voiceChannel)
	}

	embed := message.Embed{
		Title: t.Title,
		URL:   t.URI,
	}
	if u := t.Metadata.User; u != nil && u.ID != 0 {
		embed.AuthorName = FormatUsername(u)
		embed.AuthorIcon = u.Avatar
	}
	if opts.Images {
		switch {
		case t.SourceName == "youtube" && t.Identifier != "":
			embed.ThumbnailURL = "https://img.youtube.com/vi/" + t.Identifier + "/mqdefault.jpg"
		case t.ArtworkURL != "":
			embed.ThumbnailURL = t.ArtworkURL
		}
	}
	if t.Author != "" {
		embed.FooterText = "Source: " + t.Author
	}

	status := PlayEmoji
	if s.State == playback.StatePaused {
		status = PauseEmoji
	}
	progress := 0.0
	duration := "LIVE"
	if !t.Stream {
		duration = FormatTime(t.Duration)
		if t.Duration > 0 {
			progress = float64(s.Position) / float64(t.Duration)
		}
	}
	embed.Description = fmt.Sprintf("%s %s `[%s/%s]` %s",
		status, ProgressBar(progress), FormatTime(s.Position), duration, VolumeIcon(s.Volume))

	return message.Payload{
		Content: message.FilterEveryone(content),
		Embeds:  []message.Embed{embed},
	}
}

// RenderNoMusic builds the payload shown when nothing is playing.
func RenderNoMusic(volume int, opts FormatOptions) message.Payload {
	return message.Payload{
		Content: message.FilterEveryone(opts.SuccessEmoji + " **Now Playing...**"),
		Embeds: []message.Embed{{
			Title:       "No music playing",
			Description: StopEmoji + " " + ProgressBar(-1) + " " + VolumeIcon(volume),
		}},
	}
}

// ProgressBar renders a 12 cell bar with a knob at the given fraction.
// Fractions outside [0, 1) render no knob.
func ProgressBar(percent float64) string {
	knob := int(percent * barCells)
	if percent < 0 {
		knob = -1
	}
	var sb strings.Builder
	for i := 0; i < barCells; i++ {
		if i == knob {
			sb.WriteString("\U0001F518") // 🔘
		} else {
			sb.WriteString("▬")
		}
	}
	return sb.String()
}

// VolumeIcon returns the speaker icon for a volume.
func VolumeIcon(volume int) string {
	switch {
	case volume == 0:
		return "\U0001F507" // 🔇
	case volume < 30:
		return "\U0001F508" // 🔈
	case volume < 70:
		return "\U0001F509" // 🔉
	default:
		return "\U0001F50A" // 🔊
	}
}

// FormatTime renders a duration as mm:ss, or h:mm:ss when it is an hour or longer.
func FormatTime(d time.Duration) string {
	seconds := int64(math.Round(d.Seconds()))
	hours := seconds / 3600
	seconds %= 3600
	minutes := seconds / 60
	seconds %= 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// FormatUsername renders a username, with the discriminator for legacy accounts.
func FormatUsername(u *track.UserInfo) string {
	if u.Discrim == "" || u.Discrim == "0" || u.Discrim == "0000" {
		return u.Username
	}
	return u.Username + "#" + u.Discrim
}
