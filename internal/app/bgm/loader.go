package bgm

import (
	"context"
	"math/rand/v2"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/playlist"
	"github.com/osa030/guildbox/internal/domain/track"
)

// Resolver resolves a playlist item into tracks.
type Resolver interface {
	Resolve(ctx context.Context, query string) track.LoadResult
}

// PlaylistSource looks named playlists up.
type PlaylistSource interface {
	Playlist(ctx context.Context, name string) (*playlist.Playlist, bool, error)
}

// Loader resolves default playlists in the background.
type Loader struct {
	playlists   PlaylistSource
	resolver    Resolver
	maxDuration time.Duration
}

// NewLoader creates a loader. A positive maxDuration drops longer tracks.
func NewLoader(playlists PlaylistSource, resolver Resolver, maxDuration time.Duration) *Loader {
	return &Loader{
		playlists:   playlists,
		resolver:    resolver,
		maxDuration: maxDuration,
	}
}

// Load starts resolving the named playlist. It returns false when the playlist
// does not exist or has no items; onTrack and done are then never called.
func (l *Loader) Load(ctx context.Context, name string, onTrack func(track.Track), done func(loaded int, errs []playlist.ItemError)) bool {
	pl, ok, err := l.playlists.Playlist(ctx, name)
	if err != nil {
		zlog.Warn().Msgf("bgm: failed to look up playlist: name=%s error=%v", name, err)
		return false
	}
	if !ok || pl.Empty() {
		return false
	}

	items := pl.Ordered()
	go func() {
		loaded := 0
		var errs []playlist.ItemError
		for i, item := range items {
			if ctx.Err() != nil {
				errs = append(errs, playlist.ItemError{Index: i, Item: item, Reason: "cancelled"})
				continue
			}
			tracks, reason := l.resolve(ctx, item, pl.Shuffle)
			if reason != "" {
				errs = append(errs, playlist.ItemError{Index: i, Item: item, Reason: reason})
			}
			for _, t := range tracks {
				t.Metadata = track.Empty
				onTrack(t)
				loaded++
			}
		}
		zlog.Info().Msgf("bgm: playlist loaded: name=%s items=%d tracks=%d errors=%d", name, len(items), loaded, len(errs))
		done(loaded, errs)
	}()
	return true
}

func (l *Loader) resolve(ctx context.Context, item string, shuffle bool) ([]track.Track, string) {
	res := l.resolver.Resolve(ctx, item)
	switch res.Type {
	case track.LoadTrack, track.LoadSearch:
		t, ok := res.Pick()
		if !ok {
			return nil, "No matches found."
		}
		if l.tooLong(t) {
			return nil, "This track is longer than the allowed maximum"
		}
		return []track.Track{t}, ""

	case track.LoadPlaylist:
		var kept []track.Track
		for _, t := range res.Tracks {
			if !l.tooLong(t) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			return nil, "This playlist has no tracks within the allowed length"
		}
		if shuffle {
			rand.Shuffle(len(kept), func(i, j int) { kept[i], kept[j] = kept[j], kept[i] })
		}
		return kept, ""

	case track.LoadFailed:
		if res.Err != nil {
			return nil, res.Err.Message
		}
		return nil, "Failed to load track"

	default:
		return nil, "No matches found."
	}
}

func (l *Loader) tooLong(t track.Track) bool {
	if l.maxDuration <= 0 {
		return false
	}
	return t.Stream || t.Duration > l.maxDuration
}
