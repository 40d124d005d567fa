// Package queue provides the pending track queues used by a guild session.
//
// Queues are not safe for concurrent use. The owning playback controller
// serialises access per guild.
package queue

import (
	"math/rand/v2"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/domain/guild"
	"github.com/osa030/guildbox/internal/domain/track"
)

// ErrIndexOutOfRange is returned when a position does not exist in the queue.
var ErrIndexOutOfRange = errors.New("index out of range")

// Queue is an ordered, owner-tagged list of pending tracks.
type Queue interface {
	// Add inserts item according to the queue policy and returns its 0-based index.
	Add(item track.QueuedTrack) int
	// AddAt inserts item at index, appending when index is past the end.
	AddAt(index int, item track.QueuedTrack) int
	Size() int
	IsEmpty() bool
	Peek() (track.QueuedTrack, bool)
	Pull() (track.QueuedTrack, bool)
	Get(index int) (track.QueuedTrack, error)
	Remove(index int) (track.QueuedTrack, error)
	RemoveAll(owner snowflake.ID) int
	MoveItem(from, to int) (track.QueuedTrack, error)
	// Skip drops the first n entries.
	Skip(n int) error
	// Shuffle randomises the positions of owner's entries among themselves.
	Shuffle(owner snowflake.ID) int
	Clear()
	// List returns a snapshot in play order.
	List() []track.QueuedTrack
	Type() guild.QueueType
}

// New creates an empty queue of the given type, seeded with existing entries in order.
func New(t guild.QueueType, existing []track.QueuedTrack) Queue {
	items := make([]track.QueuedTrack, len(existing))
	copy(items, existing)
	switch t {
	case guild.QueueFair:
		return &Fair{list{items: items}}
	default:
		return &FIFO{list{items: items}}
	}
}

// list holds the operations shared by every queue policy.
type list struct {
	items []track.QueuedTrack
}

func (l *list) AddAt(index int, item track.QueuedTrack) int {
	if index < 0 {
		index = 0
	}
	if index >= len(l.items) {
		l.items = append(l.items, item)
		return len(l.items) - 1
	}
	l.insert(index, item)
	return index
}

func (l *list) insert(index int, item track.QueuedTrack) {
	l.items = append(l.items, track.QueuedTrack{})
	copy(l.items[index+1:], l.items[index:])
	l.items[index] = item
}

func (l *list) Size() int {
	return len(l.items)
}

func (l *list) IsEmpty() bool {
	return len(l.items) == 0
}

func (l *list) Peek() (track.QueuedTrack, bool) {
	if len(l.items) == 0 {
		return track.QueuedTrack{}, false
	}
	return l.items[0], true
}

func (l *list) Pull() (track.QueuedTrack, bool) {
	item, ok := l.Peek()
	if ok {
		l.items = l.items[1:]
	}
	return item, ok
}

func (l *list) Get(index int) (track.QueuedTrack, error) {
	if index < 0 || index >= len(l.items) {
		return track.QueuedTrack{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, size %d", index, len(l.items))
	}
	return l.items[index], nil
}

func (l *list) Remove(index int) (track.QueuedTrack, error) {
	item, err := l.Get(index)
	if err != nil {
		return item, err
	}
	l.items = append(l.items[:index], l.items[index+1:]...)
	return item, nil
}

func (l *list) RemoveAll(owner snowflake.ID) int {
	count := 0
	for i := len(l.items) - 1; i >= 0; i-- {
		if l.items[i].Owner() == owner {
			l.items = append(l.items[:i], l.items[i+1:]...)
			count++
		}
	}
	return count
}

func (l *list) MoveItem(from, to int) (track.QueuedTrack, error) {
	if to < 0 || to >= len(l.items) {
		return track.QueuedTrack{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, size %d", to, len(l.items))
	}
	item, err := l.Remove(from)
	if err != nil {
		return item, err
	}
	l.insert(to, item)
	return item, nil
}

func (l *list) Skip(n int) error {
	if n < 0 || n > len(l.items) {
		return errors.Wrapf(ErrIndexOutOfRange, "skip %d, size %d", n, len(l.items))
	}
	l.items = l.items[n:]
	return nil
}

func (l *list) Shuffle(owner snowflake.ID) int {
	var idx []int
	for i, item := range l.items {
		if item.Owner() == owner {
			idx = append(idx, i)
		}
	}
	for j := range idx {
		first := idx[j]
		second := idx[rand.IntN(len(idx))]
		l.items[first], l.items[second] = l.items[second], l.items[first]
	}
	return len(idx)
}

func (l *list) Clear() {
	l.items = nil
}

func (l *list) List() []track.QueuedTrack {
	out := make([]track.QueuedTrack, len(l.items))
	copy(out, l.items)
	return out
}
