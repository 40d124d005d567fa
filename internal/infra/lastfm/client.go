// Package lastfm provides a client for the Last.fm chart API.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const (
	defaultBaseURL  = "https://ws.audioscrobbler.com/2.0/"
	defaultCacheTTL = time.Hour
	maxLimit        = 100
)

// Config represents Last.fm client configuration.
type Config struct {
	APIKey   string
	CacheTTL time.Duration
}

// TopTrack represents a charting track.
type TopTrack struct {
	Name   string
	Artist string
}

// Query returns the track as search text.
func (t TopTrack) Query() string {
	return t.Artist + " - " + t.Name
}

type cacheEntry struct {
	tracks  []TopTrack
	expires time.Time
}

// Client is a Last.fm API client. Chart results are cached per key.
type Client struct {
	apiKey     string
	baseURL    string
	ttl        time.Duration
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time
}

type topTracksResponse struct {
	Tracks struct {
		Track []struct {
			Name   string `json:"name"`
			Artist struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"track"`
	} `json:"tracks"`
}

type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    defaultBaseURL,
		ttl:        cfg.CacheTTL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string]cacheEntry),
		now:        time.Now,
	}, nil
}

// TagTopTracks retrieves the top tracks of a tag.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) TagTopTracks(ctx context.Context, tag string, limit int) ([]TopTrack, error) {
	if tag == "" {
		return nil, errors.New("tag name is required")
	}
	params := url.Values{}
	params.Set("method", "tag.getTopTracks")
	params.Set("tag", tag)
	return c.topTracks(ctx, "tag:"+tag, params, limit)
}

// ChartTopTracks retrieves the global top tracks.
// Reference: https://www.last.fm/api/show/chart.getTopTracks
func (c *Client) ChartTopTracks(ctx context.Context, limit int) ([]TopTrack, error) {
	params := url.Values{}
	params.Set("method", "chart.getTopTracks")
	return c.topTracks(ctx, "chart", params, limit)
}

func (c *Client) topTracks(ctx context.Context, key string, params url.Values, limit int) ([]TopTrack, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	key = fmt.Sprintf("%s:%d", key, limit)

	if tracks, ok := c.cached(key); ok {
		zlog.Debug().Msgf("lastfm: cache hit: key=%s", key)
		return tracks, nil
	}

	params.Set("limit", fmt.Sprintf("%d", limit))
	var response topTracksResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}

	tracks := make([]TopTrack, 0, len(response.Tracks.Track))
	for _, t := range response.Tracks.Track {
		if t.Name == "" {
			continue
		}
		tracks = append(tracks, TopTrack{Name: t.Name, Artist: t.Artist.Name})
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{tracks: tracks, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	zlog.Debug().Msgf("lastfm: cached top tracks: key=%s count=%d", key, len(tracks))

	return tracks, nil
}

func (c *Client) cached(key string) ([]TopTrack, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.cache, key)
		return nil, false
	}
	return e.tracks, true
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("last.fm API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}
