package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/domain/track"
)

const codeDuplicateTrack = "duplicate_track"

// Title noise removed before comparing songs. Remixes are kept: they are
// different songs.
var (
	versionNoise = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),
		regexp.MustCompile(`\s*[\(\[][^\)\]]*remaster[^\)\]]*[\)\]]`),
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`),
		regexp.MustCompile(`\s*[\(\[][^\)\]]*(version|edit)[\)\]]`),
		regexp.MustCompile(`\s*[\(\[]\s*live[^\)\]]*[\)\]]`),
		regexp.MustCompile(`\s*-\s*live\b.*$`),
		regexp.MustCompile(`\s*-?\s*(radio\s+edit|single\s+version)`),
	}
	videoNoise = []*regexp.Regexp{
		regexp.MustCompile(`\s*[\(\[][^\)\]]*official[^\)\]]*[\)\]]`),
		regexp.MustCompile(`\s*[\(\[][^\)\]]*(lyrics?|audio|video|visualizer)[^\)\]]*[\)\]]`),
		regexp.MustCompile(`\s*[\(\[]\s*(hd|hq|4k|mv)\s*[\)\]]`),
	}
	channelSuffix = regexp.MustCompile(`\s*(-\s*topic|vevo|official)$`)
	spaces        = regexp.MustCompile(`\s+`)
)

// TrackSource lists the current and pending tracks of a guild.
type TrackSource interface {
	GuildTracks(guildID snowflake.ID) []track.Track
}

// DuplicateTrackFilter rejects tracks already playing or queued in the guild:
// the same source, or the same song by the same artist in another version.
// Video uploads titled "Artist - Song" on the artist's channel count as that song.
type DuplicateTrackFilter struct {
	tracks TrackSource
}

// NewDuplicateTrackFilter creates a duplicate filter reading guild tracks from tracks.
func NewDuplicateTrackFilter(tracks TrackSource) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{tracks: tracks}
}

func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already in the guild queue, other versions of the same song included"
}

func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{codeDuplicateTrack}
}

func (f *DuplicateTrackFilter) AppliesTo(source Source) bool {
	return source == SourceUser
}

func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *DuplicateTrackFilter) Check(ctx context.Context, req TrackRequest, requested track.Track) Result {
	want := keyOf(requested)
	for _, existing := range f.tracks.GuildTracks(req.GuildID) {
		if existing.SameSource(requested) {
			return Reject(codeDuplicateTrack)
		}
		if want.valid() && keyOf(existing) == want {
			return Reject(codeDuplicateTrack)
		}
	}
	return Accept()
}

// songKey identifies a song independently of its version.
type songKey struct {
	title  string
	artist string
}

func (k songKey) valid() bool {
	return k.title != "" && k.artist != ""
}

func keyOf(t track.Track) songKey {
	artist := normalizeArtist(t.Author)
	title := t.Title

	// "Artist - Song" uploads on the artist's channel
	if head, tail, ok := strings.Cut(title, " - "); ok {
		if a := normalizeArtist(head); a != "" && (artist == "" || a == artist) {
			artist = a
			title = tail
		}
	}
	return songKey{title: normalizeTrackName(title), artist: artist}
}

// normalizeTrackName lowercases the title and strips version and video noise.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)
	for _, p := range videoNoise {
		normalized = p.ReplaceAllString(normalized, "")
	}
	for _, p := range versionNoise {
		normalized = p.ReplaceAllString(normalized, "")
	}
	normalized = spaces.ReplaceAllString(strings.TrimSpace(normalized), " ")
	return strings.TrimRight(normalized, " -")
}

func normalizeArtist(name string) string {
	a := strings.ToLower(strings.TrimSpace(name))
	a = strings.TrimSpace(channelSuffix.ReplaceAllString(a, ""))
	return spaces.ReplaceAllString(a, " ")
}
