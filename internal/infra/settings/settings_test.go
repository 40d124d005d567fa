package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/domain/guild"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := s.Load(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	want := guild.Defaults(80, true)
	want.DefaultPlaylist = "chill"
	require.NoError(t, s.Save(ctx, 1, want))

	got, ok, err := s.Load(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestEncodeDecode(t *testing.T) {
	want := guild.Settings{
		QueueType:       guild.QueueLinear,
		RepeatMode:      guild.RepeatSingle,
		SkipRatio:       0.3,
		DefaultPlaylist: "lofi",
		Volume:          42,
		StayConnected:   true,
	}

	raw := encode(want)
	data := make(map[string]string, len(raw))
	for k, v := range raw {
		data[k] = v.(string)
	}

	assert.Equal(t, want, decode(data, guild.Defaults(100, false)))
}

func TestDecode(t *testing.T) {
	defaults := guild.Defaults(100, false)

	tests := []struct {
		name string
		data map[string]string
		want func(s *guild.Settings)
	}{
		{
			name: "empty hash keeps defaults",
			data: map[string]string{},
			want: func(s *guild.Settings) {},
		},
		{
			name: "default skip ratio",
			data: map[string]string{fieldSkipRatio: "-1"},
			want: func(s *guild.Settings) { s.SkipRatio = guild.UseDefaultSkipRatio },
		},
		{
			name: "malformed fields ignored",
			data: map[string]string{
				fieldQueueType:  "random",
				fieldRepeatMode: "sometimes",
				fieldSkipRatio:  "lots",
				fieldVolume:     "900",
			},
			want: func(s *guild.Settings) {},
		},
		{
			name: "zero volume kept",
			data: map[string]string{fieldVolume: "0"},
			want: func(s *guild.Settings) { s.Volume = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := defaults
			tt.want(&want)
			assert.Equal(t, want, decode(tt.data, defaults))
		})
	}
}

func TestRedisStore_Key(t *testing.T) {
	s := NewRedisStore(nil, "", guild.Defaults(100, false))
	assert.Equal(t, "guildbox:settings:123", s.key(123))

	s = NewRedisStore(nil, "bot", guild.Defaults(100, false))
	assert.Equal(t, "bot:settings:123", s.key(123))
}
