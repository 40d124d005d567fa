package queue

import (
	"github.com/osa030/guildbox/internal/domain/guild"
	"github.com/osa030/guildbox/internal/domain/track"
)

// FIFO plays tracks in strict arrival order.
type FIFO struct {
	list
}

// Add appends item to the tail.
func (q *FIFO) Add(item track.QueuedTrack) int {
	q.items = append(q.items, item)
	return len(q.items) - 1
}

// Type returns guild.QueueLinear.
func (q *FIFO) Type() guild.QueueType {
	return guild.QueueLinear
}
