package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/domain/track"
)

func TestDurationLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		minSeconds   int64
		maxSeconds   int64
		track        track.Track
		shouldReject bool
	}{
		{"within limits", 0, 600, track.Track{Duration: 3 * time.Minute}, false},
		{"too long", 0, 300, track.Track{Duration: 6 * time.Minute}, true},
		{"exact max", 0, 300, track.Track{Duration: 5 * time.Minute}, false},
		{"rounds to max", 0, 300, track.Track{Duration: 5*time.Minute + 400*time.Millisecond}, false},
		{"rounds past max", 0, 300, track.Track{Duration: 5*time.Minute + 600*time.Millisecond}, true},
		{"stream with limit", 0, 300, track.Track{Stream: true}, true},
		{"stream without limit", 0, 0, track.Track{Stream: true}, false},
		{"too short", 60, 0, track.Track{Duration: 30 * time.Second}, true},
		{"unknown length", 60, 0, track.Track{}, false},
		{"no limit", 0, 0, track.Track{Duration: 3 * time.Hour}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			f.config = &DurationLimitConfig{MinSeconds: tt.minSeconds, MaxSeconds: tt.maxSeconds}

			result := f.Check(context.Background(), TrackRequest{}, tt.track)
			if tt.shouldReject {
				assert.False(t, result.Accepted)
				assert.Equal(t, "duration_limit_exceeded", result.Code)
			} else {
				assert.True(t, result.Accepted)
			}
		})
	}
}

func TestDurationLimitFilter_Unconfigured(t *testing.T) {
	f := NewDurationLimitFilter()
	assert.True(t, f.Check(context.Background(), TrackRequest{}, track.Track{Duration: 10 * time.Hour}).Accepted)
	assert.Zero(t, f.MaxSeconds())
}

func TestDurationLimitFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
		wantMax  int64
	}{
		{"max only", map[string]any{"max_seconds": 420}, false, 420},
		{"string value", map[string]any{"max_seconds": "300"}, false, 300},
		{"empty", map[string]any{}, false, 0},
		{"negative", map[string]any{"max_seconds": -1}, true, 0},
		{"min above max", map[string]any{"min_seconds": 600, "max_seconds": 300}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			err := f.ValidateConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMax, f.MaxSeconds())
		})
	}
}

func TestChain_Execute(t *testing.T) {
	limit := NewDurationLimitFilter()
	require.NoError(t, limit.ValidateConfig(map[string]any{"max_seconds": 60}))
	dup := NewDuplicateTrackFilter(&mockTrackSource{})

	chain := NewChain()
	chain.Add(dup)
	chain.Add(limit)
	assert.Equal(t, 2, chain.Len())

	long := track.Track{URI: "u", Duration: 2 * time.Minute}

	result := chain.Execute(context.Background(), TrackRequest{Source: SourceUser}, long)
	assert.False(t, result.Accepted)
	assert.Equal(t, "duration_limit_exceeded", result.Code)
	assert.Equal(t, "duration_limit_filter", result.Filter)

	result = chain.Execute(context.Background(), TrackRequest{Source: SourceAutoplay}, long)
	assert.True(t, result.Accepted)
}

func TestRegistry(t *testing.T) {
	factory, ok := GetRegistered()["duration_limit_filter"]
	require.True(t, ok)
	assert.Equal(t, "duration_limit_filter", factory().Name())
}
