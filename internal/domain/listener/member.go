// Package listener provides the voice channel member entity used for vote accounting.
package listener

import "github.com/disgoorg/snowflake/v2"

// Member is a user connected to the bot's voice channel.
type Member struct {
	ID       snowflake.ID
	Username string
	Bot      bool
	Deafened bool // Server or self deafened
}

// Eligible reports whether the member counts toward the skip quorum.
func (m Member) Eligible() bool {
	return !m.Bot && !m.Deafened
}

// CountEligible returns the number of members that count toward the skip quorum.
func CountEligible(members []Member) int {
	n := 0
	for _, m := range members {
		if m.Eligible() {
			n++
		}
	}
	return n
}

// CountPresent returns how many of the given voter IDs belong to members still in the channel.
func CountPresent(members []Member, voters map[snowflake.ID]struct{}) int {
	n := 0
	for _, m := range members {
		if _, ok := voters[m.ID]; ok {
			n++
		}
	}
	return n
}
