package playback

import (
	"fmt"
	"math"

	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/domain/listener"
	"github.com/osa030/guildbox/internal/domain/track"
)

// VoteResult is the outcome of a skip vote.
type VoteResult struct {
	Track     track.Track // Track the vote was cast against
	Skipped   bool
	Immediate bool // Skipped without counting votes
	Already   bool // Voter had already voted for this track
	Votes     int  // Voters still in the channel
	Required  int
	Listeners int
}

// Tally renders the vote counter shown to the voter.
func (r VoteResult) Tally() string {
	return fmt.Sprintf("%d votes, %d/%d needed", r.Votes, r.Required, r.Listeners)
}

// requiredVotes is ceil(listeners * ratio), tolerant of float noise.
func requiredVotes(listeners int, ratio float64) int {
	return int(math.Ceil(float64(listeners)*ratio - 1e-9))
}

// RegisterSkipVote records voter's vote to skip the current track. members are
// the users in the bot's voice channel. The requester of the track and a zero
// skip ratio skip immediately. Tracks without an owner still need votes.
func (c *Controller) RegisterSkipVote(voter snowflake.ID, members []listener.Member) (VoteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return VoteResult{}, ErrNoTrack
	}

	res := VoteResult{Track: *c.current}
	ratio := c.settings.EffectiveSkipRatio(c.config.DefaultSkipRatio)
	if voter == c.current.Owner() || ratio == 0 {
		res.Skipped = true
		res.Immediate = true
		c.skipLocked()
		return res, nil
	}

	if _, ok := c.votes[voter]; ok {
		res.Already = true
	} else {
		c.votes[voter] = struct{}{}
	}

	res.Listeners = listener.CountEligible(members)
	res.Votes = listener.CountPresent(members, c.votes)
	res.Required = requiredVotes(res.Listeners, ratio)
	if res.Votes >= res.Required {
		res.Skipped = true
		c.skipLocked()
	}
	return res, nil
}

// VoteCount returns the number of votes cast against the current track.
func (c *Controller) VoteCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.votes)
}
