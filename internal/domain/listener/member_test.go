package listener

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
)

func TestMember_Eligible(t *testing.T) {
	tests := []struct {
		name     string
		member   Member
		expected bool
	}{
		{"listener", Member{ID: 1}, true},
		{"bot", Member{ID: 2, Bot: true}, false},
		{"deafened", Member{ID: 3, Deafened: true}, false},
		{"deafened bot", Member{ID: 4, Bot: true, Deafened: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.member.Eligible())
		})
	}
}

func TestCountEligible(t *testing.T) {
	members := []Member{
		{ID: 1},
		{ID: 2},
		{ID: 3, Bot: true},
		{ID: 4, Deafened: true},
	}
	assert.Equal(t, 2, CountEligible(members))
	assert.Equal(t, 0, CountEligible(nil))
}

func TestCountPresent(t *testing.T) {
	members := []Member{{ID: 1}, {ID: 2}, {ID: 3}}
	voters := map[snowflake.ID]struct{}{
		1:  {},
		3:  {},
		99: {}, // left the channel
	}
	assert.Equal(t, 2, CountPresent(members, voters))
	assert.Equal(t, 0, CountPresent(members, nil))
}
