package notification

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/domain/track"
)

func TestManager_SubscribeAndBroadcast(t *testing.T) {
	m := NewManager()
	allID, all := m.Subscribe(0)
	_, one := m.Subscribe(snowflake.ID(1))
	assert.Equal(t, 2, m.SubscriberCount())

	m.OnTrackUpdate(snowflake.ID(1), &track.Track{Title: "song"})
	m.OnTrackUpdate(snowflake.ID(2), nil)

	first := <-all
	assert.Equal(t, uint64(1), first.SequenceNo)
	assert.Equal(t, TypeTrackStarted, first.Type)
	require.NotNil(t, first.Track)
	assert.Equal(t, "song", first.Track.Title)

	second := <-all
	assert.Equal(t, uint64(2), second.SequenceNo)
	assert.Equal(t, TypeIdle, second.Type)
	assert.Nil(t, second.Track)

	got := <-one
	assert.Equal(t, snowflake.ID(1), got.GuildID)
	assert.Empty(t, one, "other guilds are filtered out")

	m.Unsubscribe(allID)
	_, open := <-all
	assert.False(t, open)
	assert.Equal(t, 1, m.SubscriberCount())

	m.Unsubscribe(allID)
}

func TestManager_FullBufferDoesNotBlock(t *testing.T) {
	m := NewManager()
	_, ch := m.Subscribe(0)

	for i := 0; i < defaultBuffer+5; i++ {
		m.OnTrackUpdate(snowflake.ID(1), nil)
	}
	assert.Len(t, ch, defaultBuffer)
}

func TestManager_Close(t *testing.T) {
	m := NewManager()
	_, a := m.Subscribe(0)
	_, b := m.Subscribe(snowflake.ID(3))
	m.Close()

	_, openA := <-a
	_, openB := <-b
	assert.False(t, openA)
	assert.False(t, openB)
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "track_started", TypeTrackStarted.String())
	assert.Equal(t, "idle", TypeIdle.String())
	assert.Equal(t, "unknown", Type(9).String())
}
