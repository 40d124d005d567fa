package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/track"
)

// Chain runs filters in the order they were added. The first rejection wins.
type Chain struct {
	filters []Filter
}

// NewChain creates an empty chain, which accepts everything.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends a filter.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute checks t against every filter that applies to the request source.
// A rejection carries the name of the filter that made it.
func (c *Chain) Execute(ctx context.Context, req TrackRequest, t track.Track) Result {
	for _, f := range c.filters {
		if !f.AppliesTo(req.Source) {
			continue
		}
		if result := f.Check(ctx, req, t); !result.Accepted {
			result.Filter = f.Name()
			zlog.Debug().Msgf("filter: rejected: guild=%s requester=%s filter=%s code=%s title=%q",
				req.GuildID, req.Requester, result.Filter, result.Code, t.Title)
			return result
		}
	}
	return Accept()
}

// Len returns the number of filters.
func (c *Chain) Len() int {
	return len(c.filters)
}
