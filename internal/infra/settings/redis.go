package settings

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/guild"
)

const (
	fieldQueueType       = "queue_type"
	fieldRepeatMode      = "repeat_mode"
	fieldSkipRatio       = "skip_ratio"
	fieldDefaultPlaylist = "default_playlist"
	fieldVolume          = "volume"
	fieldStayConnected   = "stay_connected"
)

// RedisConfig represents the redis connection settings.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps one hash per guild at <prefix>:settings:<guild>.
type RedisStore struct {
	client   redis.Cmdable
	prefix   string
	defaults guild.Settings
}

// DialRedis connects to redis, retrying the initial ping with backoff.
func DialRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	attempts := 5
	backoff := 200 * time.Millisecond
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			zlog.Info().Msgf("connected to redis: addr=%s db=%d", cfg.Addr, cfg.DB)
			return client, nil
		}
		if attempt < attempts {
			zlog.Warn().Msgf("redis ping failed, retrying: attempt=%d error=%v", attempt, err)
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, errors.Wrap(ctx.Err(), "redis connect cancelled")
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	_ = client.Close()
	return nil, errors.Wrapf(err, "failed to connect to redis at %s", cfg.Addr)
}

// NewRedisStore creates a store on client. defaults fills fields missing from
// stored hashes.
func NewRedisStore(client redis.Cmdable, prefix string, defaults guild.Settings) *RedisStore {
	if prefix == "" {
		prefix = "guildbox"
	}
	return &RedisStore{client: client, prefix: prefix, defaults: defaults}
}

// Load returns the settings of a guild.
func (s *RedisStore) Load(ctx context.Context, guildID snowflake.ID) (guild.Settings, bool, error) {
	data, err := s.client.HGetAll(ctx, s.key(guildID)).Result()
	if err != nil {
		return guild.Settings{}, false, errors.Wrapf(err, "failed to load settings of guild %s", guildID)
	}
	if len(data) == 0 {
		return guild.Settings{}, false, nil
	}
	return decode(data, s.defaults), true, nil
}

// Save stores the settings of a guild.
func (s *RedisStore) Save(ctx context.Context, guildID snowflake.ID, v guild.Settings) error {
	if err := s.client.HSet(ctx, s.key(guildID), encode(v)).Err(); err != nil {
		return errors.Wrapf(err, "failed to save settings of guild %s", guildID)
	}
	return nil
}

func (s *RedisStore) key(guildID snowflake.ID) string {
	return s.prefix + ":settings:" + guildID.String()
}

func encode(v guild.Settings) map[string]any {
	return map[string]any{
		fieldQueueType:       v.QueueType.String(),
		fieldRepeatMode:      v.RepeatMode.String(),
		fieldSkipRatio:       strconv.FormatFloat(v.SkipRatio, 'f', -1, 64),
		fieldDefaultPlaylist: v.DefaultPlaylist,
		fieldVolume:          strconv.Itoa(v.Volume),
		fieldStayConnected:   strconv.FormatBool(v.StayConnected),
	}
}

// decode reads a stored hash. Missing or malformed fields keep their default.
func decode(data map[string]string, defaults guild.Settings) guild.Settings {
	v := defaults
	if raw, ok := data[fieldQueueType]; ok {
		if qt, err := guild.ParseQueueType(raw); err == nil {
			v.QueueType = qt
		}
	}
	if raw, ok := data[fieldRepeatMode]; ok && raw != "" {
		if mode, err := guild.ParseRepeatMode(raw, defaults.RepeatMode); err == nil {
			v.RepeatMode = mode
		}
	}
	if raw, ok := data[fieldSkipRatio]; ok {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil && ratio <= 1 {
			v.SkipRatio = ratio
		}
	}
	if raw, ok := data[fieldDefaultPlaylist]; ok {
		v.DefaultPlaylist = raw
	}
	if raw, ok := data[fieldVolume]; ok {
		if vol, err := strconv.Atoi(raw); err == nil && vol >= 0 && vol <= 150 {
			v.Volume = vol
		}
	}
	if raw, ok := data[fieldStayConnected]; ok {
		if stay, err := strconv.ParseBool(raw); err == nil {
			v.StayConnected = stay
		}
	}
	return v
}
