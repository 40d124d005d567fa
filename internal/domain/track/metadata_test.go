package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMetadata_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		meta RequestMetadata
	}{
		{
			name: "empty",
			meta: Empty,
		},
		{
			name: "user only",
			meta: NewRequestMetadata(&UserInfo{ID: 1234, Username: "alice", Discrim: "0", Avatar: "https://cdn/a.png"}, nil),
		},
		{
			name: "user and request",
			meta: NewRequestMetadata(
				&UserInfo{ID: 98765432101234567, Username: "bob", Discrim: "0420"},
				NewRequestInfo("never gonna", "https://example.com/a.mp3", 0),
			),
		},
		{
			name: "explicit timestamp",
			meta: NewRequestMetadata(nil, NewRequestInfo("https://youtu.be/abc?t=30", "https://youtu.be/abc", 5000)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseRequestMetadata(tt.meta.String())
			require.NoError(t, err)
			assert.Equal(t, tt.meta, parsed)
			assert.Equal(t, tt.meta.Owner(), parsed.Owner())
		})
	}
}

func TestRequestMetadata_EmptyEncoding(t *testing.T) {
	assert.Equal(t, `{"user":null,"requestInfo":null}`, Empty.String())
	assert.True(t, Empty.IsEmpty())
	assert.Zero(t, Empty.Owner())

	parsed, err := ParseRequestMetadata("")
	require.NoError(t, err)
	assert.True(t, parsed.IsEmpty())
}

func TestRequestMetadata_ParseInvalid(t *testing.T) {
	_, err := ParseRequestMetadata("{not json")
	assert.Error(t, err)
}

func TestNewRequestInfo_Timestamp(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		explicit int64
		expected int64
	}{
		{"short link seconds", "https://youtu.be/dQw4w9WgXcQ?t=42", 0, 42000},
		{"watch link unit time", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=1m30s", 0, 90000},
		{"hours", "https://youtu.be/abc?t=1h2m3s", 0, 3723000},
		{"list after timestamp", "https://www.youtube.com/watch?v=abc&t=30&list=PL123", 0, 0},
		{"list before timestamp", "https://www.youtube.com/watch?v=abc&list=PL123&t=30", 0, 30000},
		{"no timestamp", "https://youtu.be/abc", 0, 0},
		{"not youtube", "https://example.com/watch?t=30", 0, 0},
		{"plain search", "some song t=30", 0, 0},
		{"explicit wins", "https://youtu.be/abc?t=42", 7000, 7000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := NewRequestInfo(tt.query, "", tt.explicit)
			assert.Equal(t, tt.expected, info.StartTimestamp)
		})
	}
}

func TestRequestInfo_UnmarshalFillsTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"null timestamp", `{"user":null,"requestInfo":{"query":"https://youtu.be/x?t=10","url":"u","startTimestamp":null}}`, 10000},
		{"zero timestamp", `{"user":null,"requestInfo":{"query":"https://youtu.be/x?t=10","url":"u","startTimestamp":0}}`, 10000},
		{"missing timestamp", `{"user":null,"requestInfo":{"query":"https://youtu.be/x?t=10","url":"u"}}`, 10000},
		{"kept timestamp", `{"user":null,"requestInfo":{"query":"https://youtu.be/x?t=10","url":"u","startTimestamp":2500}}`, 2500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseRequestMetadata(tt.input)
			require.NoError(t, err)
			require.NotNil(t, m.RequestInfo)
			assert.Equal(t, tt.expected, m.StartTimestamp())
		})
	}
}
