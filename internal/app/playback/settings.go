package playback

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/guildbox/internal/app/queue"
	"github.com/osa030/guildbox/internal/domain/guild"
)

// MaxVolume is the loudest volume the backend accepts.
const MaxVolume = 150

// Settings returns the guild settings.
func (c *Controller) Settings() guild.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetQueueType switches the queue policy, keeping pending entries in order.
func (c *Controller) SetQueueType(t guild.QueueType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue.Type() != t {
		c.queue = queue.New(t, c.queue.List())
	}
	c.settings.QueueType = t
	c.persistLocked()
}

// SetRepeatMode sets the repeat mode.
func (c *Controller) SetRepeatMode(m guild.RepeatMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings.RepeatMode = m
	c.persistLocked()
}

// SetSkipRatio sets the skip ratio from a percentage in 0..100.
func (c *Controller) SetSkipRatio(percent int) error {
	if percent < 0 || percent > 100 {
		return errors.Wrapf(ErrInvalidSkipRatio, "%d", percent)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings.SkipRatio = float64(percent) / 100
	c.persistLocked()
	return nil
}

// SetVolume sets and applies the playback volume.
func (c *Controller) SetVolume(volume int) error {
	if volume < 0 || volume > MaxVolume {
		return errors.Wrapf(ErrInvalidVolume, "%d", volume)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings.Volume = volume
	c.persistLocked()
	return c.deps.Player.SetVolume(volume)
}

// SetDefaultPlaylist sets the playlist played when the queue runs dry. An
// empty name disables the fallback.
func (c *Controller) SetDefaultPlaylist(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings.DefaultPlaylist = name
	c.persistLocked()
}

// SetStayConnected controls whether the voice connection survives an idle session.
func (c *Controller) SetStayConnected(stay bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings.StayConnected = stay
	c.persistLocked()
}
