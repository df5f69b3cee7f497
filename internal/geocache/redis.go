package geocache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rate-map/internal/model"
)

// RedisBackend stores one key per entry under a prefix, with a JSON
// {"lat":..,"lon":..} value and no expiry.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisBackend connects to addr and verifies the connection.
func NewRedisBackend(ctx context.Context, addr, prefix string) (*RedisBackend, error) {
	if addr == "" {
		return nil, eris.New("redis: address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "redis: ping")
	}
	return &RedisBackend{rdb: rdb, prefix: prefix}, nil
}

func (b *RedisBackend) Load(ctx context.Context) (map[string]model.Coordinate, error) {
	var keys []string
	iter := b.rdb.Scan(ctx, 0, b.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrap(err, "redis: scan cache keys")
	}

	entries := make(map[string]model.Coordinate, len(keys))
	if len(keys) == 0 {
		return entries, nil
	}

	vals, err := b.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "redis: MGET %d keys", len(keys))
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // deleted between SCAN and MGET
		}
		var c model.Coordinate
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			zap.L().Debug("redis: skipping malformed cache value",
				zap.String("key", keys[i]),
				zap.Error(err),
			)
			continue
		}
		entries[strings.TrimPrefix(keys[i], b.prefix)] = c
	}
	return entries, nil
}

func (b *RedisBackend) Save(ctx context.Context, key string, c model.Coordinate) error {
	val, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "redis: encode entry")
	}
	if err := b.rdb.Set(ctx, b.prefix+key, val, 0).Err(); err != nil {
		return eris.Wrapf(err, "redis: SET %q", key)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return eris.Wrap(b.rdb.Close(), "redis: close")
}
