package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/domain/message"
)

func openSQLite(t *testing.T) *LocationStore {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "locations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLocationStore_RoundTrip(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	locs, err := s.LoadLocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, locs)

	require.NoError(t, s.SaveLocation(ctx, 1, message.Location{ChannelID: 10, MessageID: 100}))
	require.NoError(t, s.SaveLocation(ctx, 2, message.Location{ChannelID: 20, MessageID: 200}))
	require.NoError(t, s.SaveLocation(ctx, 1, message.Location{ChannelID: 11, MessageID: 101}))

	locs, err = s.LoadLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[snowflake.ID]message.Location{
		1: {ChannelID: 11, MessageID: 101},
		2: {ChannelID: 20, MessageID: 200},
	}, locs)

	require.NoError(t, s.DeleteLocation(ctx, 1))
	require.NoError(t, s.DeleteLocation(ctx, 99))

	locs, err = s.LoadLocations(ctx)
	require.NoError(t, err)
	assert.Len(t, locs, 1)
	assert.Contains(t, locs, snowflake.ID(2))
}

func TestLocationStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locations.db")
	ctx := context.Background()

	s, err := Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, s.SaveLocation(ctx, 5, message.Location{ChannelID: 50, MessageID: 500}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	defer s.Close()

	locs, err := s.LoadLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, message.Location{ChannelID: 50, MessageID: 500}, locs[5])
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver   string
		query    string
		expected string
	}{
		{driver: DriverSQLite, query: "VALUES ($1, $2, $10)", expected: "VALUES (?, ?, ?)"},
		{driver: DriverSQLite, query: "price = '$'", expected: "price = '$'"},
		{driver: DriverPostgres, query: "VALUES ($1, $2)", expected: "VALUES ($1, $2)"},
	}

	for _, tt := range tests {
		t.Run(tt.driver+" "+tt.query, func(t *testing.T) {
			s := &LocationStore{driver: tt.driver}
			assert.Equal(t, tt.expected, s.rebind(tt.query))
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_journal_mode=WAL&_busy_timeout=5000", sqliteDSN("a.db"))
	assert.Equal(t, "a.db?cache=shared&_journal_mode=WAL&_busy_timeout=5000", sqliteDSN("a.db?cache=shared"))
	assert.Equal(t, "a.db?_journal_mode=DELETE", sqliteDSN("a.db?_journal_mode=DELETE"))
}
