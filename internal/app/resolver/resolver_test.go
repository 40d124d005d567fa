package resolver

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/osa030/guildbox/internal/domain/track"
)

type mockResolver struct {
	name   string
	prefix string
	result track.LoadResult
	calls  int
}

func (m *mockResolver) Name() string { return m.name }

func (m *mockResolver) CanResolve(query string) bool {
	return strings.HasPrefix(query, m.prefix)
}

func (m *mockResolver) Resolve(ctx context.Context, query string) track.LoadResult {
	m.calls++
	return m.result
}

func TestChain_Resolve(t *testing.T) {
	first := &mockResolver{name: "first", prefix: "a:", result: Single(track.Track{Identifier: "a"})}
	second := &mockResolver{name: "second", prefix: "", result: Failed(track.SeverityFault, "boom", errors.New("io"))}
	chain := NewChain(first, second)

	tests := []struct {
		name       string
		query      string
		wantType   track.LoadResultType
		wantFirst  int
		wantSecond int
	}{
		{"first resolver wins", "a:song", track.LoadTrack, 1, 0},
		{"falls through to catch-all", "b:song", track.LoadFailed, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := chain.Resolve(context.Background(), tt.query)
			assert.Equal(t, tt.wantType, res.Type)
			assert.Equal(t, tt.wantFirst, first.calls)
			assert.Equal(t, tt.wantSecond, second.calls)
		})
	}
}

func TestChain_NoResolver(t *testing.T) {
	res := NewChain(&mockResolver{name: "x", prefix: "x:"}).Resolve(context.Background(), "query")
	assert.Equal(t, track.LoadNoMatch, res.Type)
	assert.Empty(t, res.Tracks)
}

func TestFailed_UserMessage(t *testing.T) {
	common := Failed(track.SeverityCommon, "This video is unavailable", nil)
	fault := Failed(track.SeverityFault, "decoder crashed", errors.New("eof"))

	assert.Equal(t, "Error loading: This video is unavailable", common.Err.UserMessage())
	assert.Equal(t, "Error loading track.", fault.Err.UserMessage())
	assert.ErrorContains(t, fault.Err, "eof")
}

type recordingResolver struct {
	mockResolver
	queries []string
}

func (r *recordingResolver) Resolve(ctx context.Context, query string) track.LoadResult {
	r.queries = append(r.queries, query)
	return Single(track.Track{Identifier: query})
}

func TestSearchFallback(t *testing.T) {
	search := &recordingResolver{mockResolver: mockResolver{name: "spotify", prefix: "spsearch:"}}
	direct := &mockResolver{name: "direct", prefix: "https://"}
	fallback := NewSearchFallback("spsearch:", search, direct)

	tests := []struct {
		query    string
		expected bool
	}{
		{query: "daft punk", expected: true},
		{query: "spsearch:daft punk", expected: false},
		{query: "https://example.com/a.mp3", expected: false},
		{query: "   ", expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.expected, fallback.CanResolve(tt.query))
		})
	}

	res := NewChain(search, direct, fallback).Resolve(context.Background(), " get lucky ")
	assert.Equal(t, track.LoadTrack, res.Type)
	assert.Equal(t, []string{"spsearch:get lucky"}, search.queries)
	assert.Equal(t, "search:spotify", fallback.Name())
}
