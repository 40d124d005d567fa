package queue

import (
	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/domain/guild"
	"github.com/osa030/guildbox/internal/domain/track"
)

// Fair rotates between owners so a single requester cannot dominate the queue.
type Fair struct {
	list
}

// Add inserts item after the owner's last entry, at the first slot where
// an owner already seen since then appears again. Entries of the same
// owner keep their relative order.
func (q *Fair) Add(item track.QueuedTrack) int {
	owner := item.Owner()

	index := len(q.items) - 1
	for ; index >= 0; index-- {
		if q.items[index].Owner() == owner {
			break
		}
	}
	index++

	seen := map[snowflake.ID]struct{}{owner: {}}
	for ; index < len(q.items); index++ {
		o := q.items[index].Owner()
		if _, ok := seen[o]; ok {
			break
		}
		seen[o] = struct{}{}
	}

	return q.AddAt(index, item)
}

// Type returns guild.QueueFair.
func (q *Fair) Type() guild.QueueType {
	return guild.QueueFair
}
