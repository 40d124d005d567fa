// Package direct resolves plain http(s) links into tracks the audio backend
// streams as-is.
package direct

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/osa030/guildbox/internal/domain/track"
)

// Resolver resolves direct media links.
type Resolver struct{}

// New creates a direct link resolver.
func New() *Resolver {
	return &Resolver{}
}

// Name returns the resolver name.
func (r *Resolver) Name() string {
	return "direct"
}

// CanResolve reports whether the query is an absolute http(s) URL.
func (r *Resolver) CanResolve(query string) bool {
	_, ok := parse(query)
	return ok
}

// Resolve builds a track for the link. Metadata is derived from the URL only.
func (r *Resolver) Resolve(ctx context.Context, query string) track.LoadResult {
	u, ok := parse(query)
	if !ok {
		return track.LoadResult{Type: track.LoadNoMatch, Selected: -1}
	}

	t := track.Track{
		URI:        u.String(),
		Author:     u.Hostname(),
		Seekable:   true,
		SourceName: "http",
	}

	if id := youtubeID(u); id != "" {
		t.Identifier = id
		t.Title = "YouTube video " + id
		t.Author = "YouTube"
		t.SourceName = "youtube"
	} else {
		t.Identifier = u.String()
		t.Title = titleFromPath(u)
	}

	return track.LoadResult{Type: track.LoadTrack, Tracks: []track.Track{t}, Selected: -1}
}

func parse(query string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(query))
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

func youtubeID(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		return strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if u.Path == "/watch" {
			return u.Query().Get("v")
		}
		if rest, ok := strings.CutPrefix(u.Path, "/shorts/"); ok {
			return strings.Trim(rest, "/")
		}
	}
	return ""
}

func titleFromPath(u *url.URL) string {
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return u.Hostname()
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	if ext := path.Ext(base); ext != "" && len(ext) < len(base) {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
