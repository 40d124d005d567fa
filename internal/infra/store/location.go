// Package store persists tracked now playing messages in a SQL database.
package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/message"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS nowplaying_locations (
		guild_id   TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

// LocationStore stores one now playing location per guild.
type LocationStore struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and runs migrations.
func Open(ctx context.Context, driver, dsn string) (*LocationStore, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, errors.Newf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(initCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	s := &LocationStore{db: db, driver: driver}
	if err := s.migrate(initCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	zlog.Info().Msgf("location store ready: driver=%s", driver)
	return s, nil
}

func (s *LocationStore) migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return errors.Wrapf(err, "failed to execute migration: %s", m)
		}
	}
	return nil
}

// LoadLocations returns every stored location. Rows with malformed ids are skipped.
func (s *LocationStore) LoadLocations(ctx context.Context) (map[snowflake.ID]message.Location, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT guild_id, channel_id, message_id FROM nowplaying_locations`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query locations")
	}
	defer rows.Close()

	locs := make(map[snowflake.ID]message.Location)
	for rows.Next() {
		var guildRaw, channelRaw, messageRaw string
		if err := rows.Scan(&guildRaw, &channelRaw, &messageRaw); err != nil {
			return nil, errors.Wrap(err, "failed to scan location")
		}
		guildID, err1 := snowflake.Parse(guildRaw)
		channelID, err2 := snowflake.Parse(channelRaw)
		messageID, err3 := snowflake.Parse(messageRaw)
		if err := errors.CombineErrors(err1, errors.CombineErrors(err2, err3)); err != nil {
			zlog.Warn().Msgf("skipping malformed location row: guild=%s error=%v", guildRaw, err)
			continue
		}
		locs[guildID] = message.Location{ChannelID: channelID, MessageID: messageID}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read locations")
	}
	return locs, nil
}

// SaveLocation upserts the location of a guild.
func (s *LocationStore) SaveLocation(ctx context.Context, guildID snowflake.ID, loc message.Location) error {
	query := s.rebind(`
		INSERT INTO nowplaying_locations (guild_id, channel_id, message_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id)
		DO UPDATE SET
			channel_id = excluded.channel_id,
			message_id = excluded.message_id,
			updated_at = excluded.updated_at`)

	_, err := s.db.ExecContext(ctx, query, guildID.String(), loc.ChannelID.String(), loc.MessageID.String(), time.Now().UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to save location of guild %s", guildID)
	}
	return nil
}

// DeleteLocation removes the location of a guild.
func (s *LocationStore) DeleteLocation(ctx context.Context, guildID snowflake.ID) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM nowplaying_locations WHERE guild_id = $1`), guildID.String())
	if err != nil {
		return errors.Wrapf(err, "failed to delete location of guild %s", guildID)
	}
	return nil
}

// Close closes the database.
func (s *LocationStore) Close() error {
	return s.db.Close()
}

// rebind rewrites $n placeholders to ? for sqlite.
func (s *LocationStore) rebind(query string) string {
	if s.driver != DriverSQLite {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte('$')
			continue
		}
		b.WriteByte('?')
		i = j - 1
	}
	return b.String()
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_journal_mode") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_journal_mode=WAL&_busy_timeout=5000"
}
