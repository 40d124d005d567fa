// Package resolver turns user queries into playable tracks.
package resolver

import (
	"context"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/track"
)

// Resolver looks up tracks for queries it recognises.
type Resolver interface {
	// Name returns the resolver name used in logs.
	Name() string
	// CanResolve reports whether the resolver handles the query.
	CanResolve(query string) bool
	// Resolve looks the query up. Failures are reported as LoadFailed results.
	Resolve(ctx context.Context, query string) track.LoadResult
}

// Chain hands each query to the first resolver that accepts it.
type Chain struct {
	resolvers []Resolver
}

// NewChain creates a resolver chain.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// Resolve resolves the query with the first matching resolver.
func (c *Chain) Resolve(ctx context.Context, query string) track.LoadResult {
	for _, r := range c.resolvers {
		if !r.CanResolve(query) {
			continue
		}
		res := r.Resolve(ctx, query)
		zlog.Debug().Msgf("resolved query: resolver=%s query=%q type=%s tracks=%d", r.Name(), query, res.Type, len(res.Tracks))
		if res.Type == track.LoadFailed && res.Err != nil {
			zlog.Warn().Msgf("load failed: resolver=%s query=%q severity=%s error=%v", r.Name(), query, res.Err.Severity, res.Err)
		}
		return res
	}
	return NoMatch()
}

// NoMatch returns an empty result.
func NoMatch() track.LoadResult {
	return track.LoadResult{Type: track.LoadNoMatch, Selected: -1}
}

// Failed returns a failure result.
func Failed(severity track.Severity, message string, cause error) track.LoadResult {
	return track.LoadResult{
		Type:     track.LoadFailed,
		Selected: -1,
		Err:      &track.LoadError{Severity: severity, Message: message, Cause: cause},
	}
}

// Single returns a single track result.
func Single(t track.Track) track.LoadResult {
	return track.LoadResult{Type: track.LoadTrack, Tracks: []track.Track{t}, Selected: -1}
}

// SearchFallback sends free-text queries to a search resolver by prefixing
// them. Queries another resolver recognises are left alone.
type SearchFallback struct {
	prefix string
	search Resolver
	others []Resolver
}

// NewSearchFallback creates a fallback that turns plain text into prefix+query
// for search unless one of others accepts the query as is.
func NewSearchFallback(prefix string, search Resolver, others ...Resolver) *SearchFallback {
	return &SearchFallback{prefix: prefix, search: search, others: append([]Resolver{search}, others...)}
}

func (s *SearchFallback) Name() string {
	return "search:" + s.search.Name()
}

// CanResolve accepts any non-empty query no other resolver recognises.
func (s *SearchFallback) CanResolve(query string) bool {
	if strings.TrimSpace(query) == "" {
		return false
	}
	for _, r := range s.others {
		if r.CanResolve(query) {
			return false
		}
	}
	return true
}

func (s *SearchFallback) Resolve(ctx context.Context, query string) track.LoadResult {
	return s.search.Resolve(ctx, s.prefix+strings.TrimSpace(query))
}
