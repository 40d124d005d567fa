// Package spotify resolves Spotify links and searches into playable tracks.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/osa030/guildbox/internal/domain/track"
)

// SearchPrefix marks a query as a Spotify search.
const SearchPrefix = "spsearch:"

// previewLength is the length of a Spotify preview clip.
const previewLength = 30 * time.Second

// api is the subset of the Spotify Web API used by the client.
type api interface {
	GetTrack(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.FullTrack, error)
	GetPlaylist(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.FullPlaylist, error)
	GetPlaylistItems(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.PlaylistItemPage, error)
	Search(ctx context.Context, query string, t spotify.SearchType, opts ...spotify.RequestOption) (*spotify.SearchResult, error)
}

// Client is a Spotify API client.
type Client struct {
	client      api
	market      string
	searchLimit int
	maxRetries  int
	retryDelay  time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// New creates a new Spotify client authenticated with the client credentials flow.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := creds.Token(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to obtain spotify token")
	}

	return newClient(spotify.New(creds.Client(ctx)), cfg.Market), nil
}

func newClient(c api, market string) *Client {
	if market == "" {
		market = "JP"
	}
	return &Client{
		client:      c,
		market:      market,
		searchLimit: 5,
		maxRetries:  3,
		retryDelay:  time.Second,
	}
}

// Name returns the resolver name.
func (c *Client) Name() string {
	return "spotify"
}

// CanResolve reports whether the query is a Spotify link, URI or search.
func (c *Client) CanResolve(query string) bool {
	q := strings.TrimSpace(query)
	switch {
	case strings.HasPrefix(q, SearchPrefix):
		return true
	case strings.HasPrefix(q, "spotify:track:"), strings.HasPrefix(q, "spotify:playlist:"):
		return true
	case strings.Contains(q, "open.spotify.com/"):
		return strings.Contains(q, "/track/") || strings.Contains(q, "/playlist/")
	}
	return false
}

// Resolve looks a Spotify query up.
func (c *Client) Resolve(ctx context.Context, query string) track.LoadResult {
	q := strings.TrimSpace(query)
	switch {
	case strings.HasPrefix(q, SearchPrefix):
		return c.search(ctx, strings.TrimSpace(strings.TrimPrefix(q, SearchPrefix)))
	case strings.HasPrefix(q, "spotify:playlist:") || strings.Contains(q, "/playlist/"):
		return c.playlist(ctx, q)
	default:
		return c.track(ctx, q)
	}
}

func (c *Client) track(ctx context.Context, query string) track.LoadResult {
	id := extractTrackID(query)
	if id == "" {
		return noMatch()
	}

	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return noMatch()
		}
		return failed(track.SeverityFault, "Error loading track.", errors.Wrap(err, "failed to get track"))
	}

	t, ok := c.convertTrack(result)
	if !ok {
		return failed(track.SeverityCommon, "This track has no playable preview.", nil)
	}
	return track.LoadResult{Type: track.LoadTrack, Tracks: []track.Track{t}, Selected: -1}
}

func (c *Client) search(ctx context.Context, query string) track.LoadResult {
	if query == "" {
		return noMatch()
	}

	var result *spotify.SearchResult
	err := c.retry(ctx, func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(c.searchLimit),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return failed(track.SeverityFault, "Error searching Spotify.", errors.Wrap(err, "failed to search"))
	}
	if result.Tracks == nil {
		return noMatch()
	}

	var tracks []track.Track
	for i := range result.Tracks.Tracks {
		if t, ok := c.convertTrack(&result.Tracks.Tracks[i]); ok {
			tracks = append(tracks, t)
		}
	}
	if len(tracks) == 0 {
		return noMatch()
	}
	return track.LoadResult{Type: track.LoadSearch, Tracks: tracks, Selected: 0}
}

func (c *Client) playlist(ctx context.Context, query string) track.LoadResult {
	playlistID := extractPlaylistID(query)
	if playlistID == "" {
		return noMatch()
	}

	var info *spotify.FullPlaylist
	err := c.retry(ctx, func() error {
		p, err := c.client.GetPlaylist(ctx, spotify.ID(playlistID), spotify.Fields("name"))
		if err != nil {
			return err
		}
		info = p
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return noMatch()
		}
		return failed(track.SeverityFault, "Error loading playlist.", errors.Wrap(err, "failed to get playlist"))
	}

	var tracks []track.Track
	offset := 0
	limit := 100

	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(limit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return failed(track.SeverityFault, "Error loading playlist.", errors.Wrap(err, "failed to get playlist items"))
		}

		for _, item := range page.Items {
			// Episodes have no Track
			if item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			if t, ok := c.convertTrack(item.Track.Track); ok {
				tracks = append(tracks, t)
			}
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	if len(tracks) == 0 {
		return noMatch()
	}
	return track.LoadResult{Type: track.LoadPlaylist, Tracks: tracks, PlaylistName: info.Name, Selected: -1}
}

// convertTrack converts a Spotify FullTrack to a domain Track. Tracks without
// a preview clip cannot be played and are reported as false.
func (c *Client) convertTrack(t *spotify.FullTrack) (track.Track, bool) {
	if t.PreviewURL == "" {
		return track.Track{}, false
	}

	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var albumArt string
	if len(t.Album.Images) > 0 {
		albumArt = t.Album.Images[0].URL
	}

	duration := time.Duration(t.Duration) * time.Millisecond
	if duration <= 0 || duration > previewLength {
		duration = previewLength
	}

	return track.Track{
		Identifier: string(t.ID),
		Title:      t.Name,
		URI:        t.PreviewURL,
		Author:     strings.Join(artists, ", "),
		Duration:   duration,
		Seekable:   true,
		SourceName: "spotify",
		ArtworkURL: albumArt,
	}, true
}

// GetTrackURL returns the Spotify URL for a track.
func GetTrackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry cancelled")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

func isNotFound(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "404") ||
		strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "invalid id")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	return extractID(input, "track")
}

// extractID handles spotify:<kind>:ID, open.spotify.com/<kind>/ID (with an
// optional intl-XX segment) and plain IDs.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if prefix := "spotify:" + kind + ":"; strings.HasPrefix(input, prefix) {
		return strings.TrimPrefix(input, prefix)
	}

	if sep := "/" + kind + "/"; strings.Contains(input, "open.spotify.com") && strings.Contains(input, sep) {
		parts := strings.Split(input, sep)
		// Remove query parameters and trailing slashes
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	// Assume it's already an ID
	return input
}

func noMatch() track.LoadResult {
	return track.LoadResult{Type: track.LoadNoMatch, Selected: -1}
}

func failed(severity track.Severity, message string, cause error) track.LoadResult {
	return track.LoadResult{
		Type:     track.LoadFailed,
		Selected: -1,
		Err:      &track.LoadError{Severity: severity, Message: message, Cause: cause},
	}
}
