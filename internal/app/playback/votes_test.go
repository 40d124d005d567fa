package playback

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/domain/guild"
	"github.com/osa030/guildbox/internal/domain/listener"
)

// members returns n eligible listeners with IDs 1..n plus the bot itself.
func members(n int) []listener.Member {
	out := []listener.Member{{ID: 999, Bot: true}}
	for i := 1; i <= n; i++ {
		out = append(out, listener.Member{ID: snowflake.ID(i)})
	}
	return out
}

func TestRequiredVotes(t *testing.T) {
	tests := []struct {
		listeners int
		ratio     float64
		expected  int
	}{
		{10, 0.55, 6},
		{10, 0.5, 5},
		{10, 0.3, 3},
		{3, 0.55, 2},
		{1, 0.55, 1},
		{0, 0.55, 0},
		{7, 1, 7},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, requiredVotes(tt.listeners, tt.ratio), "listeners=%d ratio=%v", tt.listeners, tt.ratio)
	}
}

func TestRegisterSkipVote_Quorum(t *testing.T) {
	h := newHarness(t, func(s *guild.Settings) { s.SkipRatio = 0.55 })
	h.c.Enqueue(tr(100, "a"))
	room := members(10)

	for voter := 1; voter <= 5; voter++ {
		res, err := h.c.RegisterSkipVote(snowflake.ID(voter), room)
		require.NoError(t, err)
		assert.False(t, res.Skipped)
		assert.Equal(t, voter, res.Votes)
		assert.Equal(t, 6, res.Required)
		assert.Equal(t, 10, res.Listeners)
	}
	assert.Equal(t, 0, h.player.stopCount())

	res, err := h.c.RegisterSkipVote(6, room)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, res.Immediate)
	assert.Equal(t, "6 votes, 6/10 needed", res.Tally())
	assert.Equal(t, 1, h.player.stopCount())
}

func TestRegisterSkipVote_AlreadyVoted(t *testing.T) {
	h := newHarness(t, func(s *guild.Settings) { s.SkipRatio = 0.55 })
	h.c.Enqueue(tr(100, "a"))

	_, err := h.c.RegisterSkipVote(1, members(10))
	require.NoError(t, err)
	res, err := h.c.RegisterSkipVote(1, members(10))
	require.NoError(t, err)
	assert.True(t, res.Already)
	assert.Equal(t, 1, res.Votes)
}

func TestRegisterSkipVote_VotersWhoLeftDoNotCount(t *testing.T) {
	h := newHarness(t, func(s *guild.Settings) { s.SkipRatio = 0.5 })
	h.c.Enqueue(tr(100, "a"))

	_, err := h.c.RegisterSkipVote(1, members(4))
	require.NoError(t, err)

	room := members(4)[2:] // user 1 left the channel
	res, err := h.c.RegisterSkipVote(2, room)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Votes)
	assert.Equal(t, 2, res.Required)
	assert.False(t, res.Skipped)
}

func TestRegisterSkipVote_Immediate(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		owner snowflake.ID
		voter snowflake.ID
	}{
		{"requester", 0.55, 5, 5},
		{"zero ratio", 0, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(s *guild.Settings) { s.SkipRatio = tt.ratio })
			h.c.Enqueue(tr(tt.owner, "a"))

			res, err := h.c.RegisterSkipVote(tt.voter, members(10))
			require.NoError(t, err)
			assert.True(t, res.Skipped)
			assert.True(t, res.Immediate)
			assert.Equal(t, 1, h.player.stopCount())
		})
	}
}

func TestRegisterSkipVote_AutoplayNeedsVotes(t *testing.T) {
	h := newHarness(t, nil)
	h.c.Enqueue(tr(0, "autoplay"))

	res, err := h.c.RegisterSkipVote(1, members(10))
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 6, res.Required)
}
