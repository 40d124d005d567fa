package message

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"unknown message", ErrUnknownMessage, true},
		{"unknown channel wrapped", errors.Wrap(ErrUnknownChannel, "edit failed"), true},
		{"missing access marked", errors.Mark(errors.New("HTTP 403"), ErrMissingAccess), true},
		{"missing permissions", ErrMissingPermissions, true},
		{"rate limited", errors.New("HTTP 429"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsPermanent(tt.err))
		})
	}
}

func TestFilterEveryone(t *testing.T) {
	assert.Equal(t, "hi @\u0435veryone and @h\u0435re", FilterEveryone("hi @everyone and @here"))
	assert.Equal(t, "plain", FilterEveryone("plain"))
}
