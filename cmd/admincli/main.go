// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/guildbox/internal/api/connect"
)

var (
	app     = kingpin.New("guildbox-admincli", "guildbox admin client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token   = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()
	guildID = app.Flag("guild", "Guild ID (or set GUILDBOX_GUILD env)").Short('g').Envar("GUILDBOX_GUILD").String()
	userID  = app.Flag("user", "Act as this member instead of an administrator").Short('u').String()

	guildsCmd = app.Command("guilds", "List guilds with a live session")
	statusCmd = app.Command("status", "Get guild playback status")
	queueCmd  = app.Command("queue", "List queued tracks")

	playCmd     = app.Command("play", "Queue a link or search query")
	playQuery   = playCmd.Arg("query", "Link or search text").Required().Strings()
	playChannel = playCmd.Flag("channel", "Voice channel to join").Short('c').String()
	playFront   = playCmd.Flag("front", "Queue at the front").Bool()

	skipCmd      = app.Command("skip", "Vote to skip the current track")
	forceSkipCmd = app.Command("forceskip", "Skip the current track without voting").Alias("fs")
	skipToCmd    = app.Command("skipto", "Skip to a queue position")
	skipToPos    = skipToCmd.Arg("position", "1-based queue position").Required().Int()

	removeCmd = app.Command("remove", "Remove a queue entry")
	removePos = removeCmd.Arg("position", "1-based queue position, 0 removes every entry of --user").Default("0").Int()

	moveCmd  = app.Command("move", "Move a queue entry")
	moveFrom = moveCmd.Arg("from", "1-based source position").Required().Int()
	moveTo   = moveCmd.Arg("to", "1-based target position").Required().Int()

	shuffleCmd = app.Command("shuffle", "Shuffle the queue")
	pauseCmd   = app.Command("pause", "Pause playback")
	resumeCmd  = app.Command("resume", "Resume playback")
	stopCmd    = app.Command("stop", "Stop playback and clear the queue")

	repeatCmd   = app.Command("repeat", "Set or cycle the repeat mode")
	repeatValue = repeatCmd.Arg("mode", "off, one or all").String()

	queueTypeCmd   = app.Command("queuetype", "Set the queue type")
	queueTypeValue = queueTypeCmd.Arg("type", "fair or fifo").Required().String()

	volumeCmd   = app.Command("volume", "Set the volume")
	volumeValue = volumeCmd.Arg("volume", "0-150").Required().Int()

	skipRatioCmd   = app.Command("setskip", "Set the skip vote percentage")
	skipRatioValue = skipRatioCmd.Arg("percent", "0-100, -1 uses the default").Required().Int()

	playlistCmd   = app.Command("playlist", "Set the default playlist")
	playlistValue = playlistCmd.Arg("name", "Playlist name, none clears it").Required().String()

	stayCmd   = app.Command("stay", "Stay in voice while idle")
	stayValue = stayCmd.Arg("enabled", "true or false").Required().Bool()

	playlistsCmd = app.Command("playlists", "List default playlists")

	nowPlayingCmd     = app.Command("nowplaying", "Post the now playing message").Alias("np")
	nowPlayingChannel = nowPlayingCmd.Arg("channel", "Text channel ID").Required().String()

	watchCmd = app.Command("watch", "Stream playback notifications")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}
	if *guildID == "" && command != guildsCmd.FullCommand() && command != playlistsCmd.FullCommand() && command != watchCmd.FullCommand() {
		fmt.Println("Error: guild is required (use --guild or GUILDBOX_GUILD env)")
		os.Exit(1)
	}

	client := apiconnect.NewAdminClient(http.DefaultClient, *server, *token)

	if command == watchCmd.FullCommand() {
		watch(client)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := execute(ctx, client, command); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, client *apiconnect.AdminClient, command string) error {
	guild := &apiconnect.GuildRequest{GuildID: *guildID}
	member := &apiconnect.MemberRequest{GuildID: *guildID, UserID: *userID}
	setting := func(v string) *apiconnect.SettingRequest {
		return &apiconnect.SettingRequest{GuildID: *guildID, Value: v}
	}

	switch command {
	case guildsCmd.FullCommand():
		resp, err := client.ListGuilds(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Guilds (%d):\n", len(resp.Guilds))
		for _, g := range resp.Guilds {
			fmt.Printf("  %s\n", g)
		}

	case statusCmd.FullCommand():
		resp, err := client.GetStatus(ctx, guild)
		if err != nil {
			return err
		}
		printStatus(resp)

	case queueCmd.FullCommand():
		resp, err := client.GetQueue(ctx, guild)
		if err != nil {
			return err
		}
		if len(resp.Entries) == 0 {
			fmt.Println("Queue is empty")
			return nil
		}
		fmt.Printf("Queue (%d):\n", len(resp.Entries))
		for _, e := range resp.Entries {
			fmt.Printf("  %3d. %s [%s] (requested by %s)\n",
				e.Position, e.Track.Title, formatDuration(e.Track.DurationMs, e.Track.Stream), e.Track.Requester)
		}

	case playCmd.FullCommand():
		query := ""
		for i, q := range *playQuery {
			if i > 0 {
				query += " "
			}
			query += q
		}
		resp, err := client.Play(ctx, &apiconnect.PlayRequest{
			GuildID:        *guildID,
			UserID:         *userID,
			VoiceChannelID: *playChannel,
			Query:          query,
			Front:          *playFront,
		})
		if err != nil {
			return err
		}
		printPlay(resp)

	case skipCmd.FullCommand():
		resp, err := client.Skip(ctx, member)
		if err != nil {
			return err
		}
		switch {
		case resp.Skipped:
			fmt.Printf("Skipped %s\n", title(resp.Track))
		case resp.Already:
			fmt.Printf("Already voted (%d/%d)\n", resp.Votes, resp.Required)
		default:
			fmt.Printf("Voted to skip %s (%d/%d, %d listening)\n", title(resp.Track), resp.Votes, resp.Required, resp.Listeners)
		}

	case forceSkipCmd.FullCommand():
		resp, err := client.ForceSkip(ctx, guild)
		if err != nil {
			return err
		}
		fmt.Printf("Skipped %s\n", title(resp.Track))

	case skipToCmd.FullCommand():
		resp, err := client.SkipTo(ctx, &apiconnect.PositionRequest{GuildID: *guildID, UserID: *userID, Position: *skipToPos})
		if err != nil {
			return err
		}
		fmt.Printf("Skipped to %s\n", title(resp.Track))

	case removeCmd.FullCommand():
		resp, err := client.Remove(ctx, &apiconnect.PositionRequest{GuildID: *guildID, UserID: *userID, Position: *removePos})
		if err != nil {
			return err
		}
		if resp.Track != nil {
			fmt.Printf("Removed %s\n", title(resp.Track))
		} else {
			fmt.Printf("Removed %d entries\n", resp.Count)
		}

	case moveCmd.FullCommand():
		resp, err := client.Move(ctx, &apiconnect.MoveRequest{GuildID: *guildID, From: *moveFrom, To: *moveTo})
		if err != nil {
			return err
		}
		fmt.Printf("Moved %s to position %d\n", title(resp.Track), *moveTo)

	case shuffleCmd.FullCommand():
		resp, err := client.Shuffle(ctx, member)
		if err != nil {
			return err
		}
		fmt.Printf("Shuffled %d entries\n", resp.Count)

	case pauseCmd.FullCommand(), resumeCmd.FullCommand():
		paused := command == pauseCmd.FullCommand()
		if err := client.Pause(ctx, &apiconnect.PauseRequest{GuildID: *guildID, Paused: paused}); err != nil {
			return err
		}
		if paused {
			fmt.Println("Playback paused")
		} else {
			fmt.Println("Playback resumed")
		}

	case stopCmd.FullCommand():
		if err := client.Stop(ctx, guild); err != nil {
			return err
		}
		fmt.Println("Playback stopped")

	case repeatCmd.FullCommand():
		return printSetting("Repeat mode")(client.SetRepeat(ctx, setting(*repeatValue)))

	case queueTypeCmd.FullCommand():
		return printSetting("Queue type")(client.SetQueueType(ctx, setting(*queueTypeValue)))

	case volumeCmd.FullCommand():
		return printSetting("Volume")(client.SetVolume(ctx, setting(strconv.Itoa(*volumeValue))))

	case skipRatioCmd.FullCommand():
		return printSetting("Skip ratio")(client.SetSkipRatio(ctx, setting(strconv.Itoa(*skipRatioValue))))

	case playlistCmd.FullCommand():
		return printSetting("Default playlist")(client.SetDefaultPlaylist(ctx, setting(*playlistValue)))

	case stayCmd.FullCommand():
		return printSetting("Stay connected")(client.SetStayConnected(ctx, setting(strconv.FormatBool(*stayValue))))

	case playlistsCmd.FullCommand():
		resp, err := client.ListPlaylists(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Playlists (%d):\n", len(resp.Names))
		for _, n := range resp.Names {
			fmt.Printf("  %s\n", n)
		}

	case nowPlayingCmd.FullCommand():
		resp, err := client.ShowNowPlaying(ctx, &apiconnect.ShowNowPlayingRequest{GuildID: *guildID, ChannelID: *nowPlayingChannel})
		if err != nil {
			return err
		}
		fmt.Printf("Posted now playing message %s\n", resp.MessageID)
	}
	return nil
}

func watch(client *apiconnect.AdminClient) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Watching notifications (Ctrl+C to stop)...")
	err := client.Watch(ctx, &apiconnect.WatchRequest{GuildID: *guildID}, func(n *apiconnect.Notification) error {
		fmt.Printf("[%s] #%d guild=%s %s %s\n",
			n.Time.Local().Format("15:04:05"), n.SequenceNo, n.GuildID, n.Type, title(n.Track))
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printStatus(s *apiconnect.StatusResponse) {
	fmt.Println("\n=== GUILD STATUS ===")
	fmt.Printf("Guild: %s\n", s.GuildID)
	if !s.Active {
		fmt.Println("No active session")
		fmt.Println()
		return
	}
	fmt.Printf("State: %s\n", s.State)
	fmt.Printf("Volume: %d\n", s.Volume)
	fmt.Printf("Repeat: %s\n", s.RepeatMode)
	fmt.Printf("Queue Type: %s\n", s.QueueType)
	fmt.Printf("Queue Size: %d (%s)\n", s.QueueSize, formatDuration(s.QueueDurationMs, false))

	if s.Track != nil {
		fmt.Printf("\nCurrently Playing:\n")
		fmt.Printf("  Title: %s\n", s.Track.Title)
		fmt.Printf("  Author: %s\n", s.Track.Author)
		fmt.Printf("  URL: %s\n", s.Track.URI)
		fmt.Printf("  Source: %s\n", s.Track.Source)
		fmt.Printf("  Requested by: %s\n", s.Track.Requester)
		fmt.Printf("  Position: %s / %s\n", formatDuration(s.PositionMs, false), formatDuration(s.Track.DurationMs, s.Track.Stream))
	} else {
		fmt.Println("\nNo track currently playing")
	}
	fmt.Println()
}

func printPlay(resp *apiconnect.PlayResponse) {
	switch {
	case resp.Playlist != "":
		fmt.Printf("Queued %d tracks from %s", resp.Added, resp.Playlist)
		if resp.Rejected > 0 {
			fmt.Printf(" (%d rejected)", resp.Rejected)
		}
		fmt.Println()
	case resp.Position < 0:
		fmt.Printf("Now playing %s\n", title(resp.Track))
	default:
		fmt.Printf("Queued %s at position %d\n", title(resp.Track), resp.Position)
	}
}

func printSetting(name string) func(*apiconnect.SettingResponse, error) error {
	return func(resp *apiconnect.SettingResponse, err error) error {
		if err != nil {
			return err
		}
		if resp.Previous != "" {
			fmt.Printf("%s: %s (was %s)\n", name, resp.Value, resp.Previous)
		} else {
			fmt.Printf("%s: %s\n", name, resp.Value)
		}
		return nil
	}
}

func title(t *apiconnect.TrackInfo) string {
	if t == nil {
		return "(none)"
	}
	if t.Author != "" {
		return fmt.Sprintf("%s - %s", t.Title, t.Author)
	}
	return t.Title
}

func formatDuration(ms int64, stream bool) string {
	if stream {
		return "LIVE"
	}
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
