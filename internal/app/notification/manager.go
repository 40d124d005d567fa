// Package notification provides the notification manager for broadcasting playback changes.
package notification

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/track"
)

// Type is the kind of a notification.
type Type int

const (
	TypeTrackStarted Type = iota // A track became current
	TypeIdle                     // Nothing is playing anymore
)

// String returns the string representation of the type.
func (t Type) String() string {
	switch t {
	case TypeTrackStarted:
		return "track_started"
	case TypeIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Notification is a playback change of one guild.
type Notification struct {
	SequenceNo uint64
	GuildID    snowflake.ID
	Type       Type
	Track      *track.Track
	Time       time.Time
}

const defaultBuffer = 16

// subscription represents a subscriber's subscription.
type subscription struct {
	id      string
	guildID snowflake.ID // 0 receives every guild
	ch      chan Notification
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns its ID and channel.
// A zero guildID subscribes to every guild.
func (m *Manager) Subscribe(guildID snowflake.ID) (string, <-chan Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	sub := &subscription{
		id:      id,
		guildID: guildID,
		ch:      make(chan Notification, defaultBuffer),
	}
	m.subscriptions[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subscriptions[subscriptionID]; ok {
		delete(m.subscriptions, subscriptionID)
		close(sub.ch)
	}
}

// OnTrackUpdate broadcasts the new current track of a guild, nil meaning idle.
func (m *Manager) OnTrackUpdate(guildID snowflake.ID, t *track.Track) {
	n := Notification{GuildID: guildID, Type: TypeIdle, Time: time.Now()}
	if t != nil {
		cp := *t
		n.Type = TypeTrackStarted
		n.Track = &cp
	}
	m.Broadcast(n)
}

// Broadcast sends a notification to all matching subscribers without blocking.
// Subscribers whose buffer is full miss the notification.
func (m *Manager) Broadcast(n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sequenceNo++
	n.SequenceNo = m.sequenceNo

	for _, sub := range m.subscriptions {
		if sub.guildID != 0 && sub.guildID != n.GuildID {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			zlog.Warn().Msgf("notification: subscriber buffer full, dropping: subscription=%s seq=%d", sub.id, n.SequenceNo)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subscriptions {
		close(sub.ch)
	}
	m.subscriptions = make(map[string]*subscription)
}
