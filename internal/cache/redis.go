package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/EduShopX/edushop/pkg/logger"
)

// LookupObserver is told about every Get outcome.
type LookupObserver func(hit bool)

// Redis is a Cache backed by a go-redis client.
type Redis struct {
	client   *redis.Client
	prefix   string
	log      *logger.Logger
	observer LookupObserver
}

var _ Cache = (*Redis)(nil)

// NewRedis wraps client. Keys are stored as "<prefix>:<key>".
func NewRedis(client *redis.Client, prefix string, log *logger.Logger) *Redis {
	if log == nil {
		log = logger.NewDefault("cache")
	}
	return &Redis{client: client, prefix: prefix, log: log}
}

// WithObserver registers a hit/miss callback, typically a metrics counter.
func (r *Redis) WithObserver(fn LookupObserver) *Redis {
	r.observer = fn
	return r
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Redis) observe(hit bool) {
	if r.observer != nil {
		r.observer(hit)
	}
}

func (r *Redis) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.observe(false)
		return false, nil
	}
	if err != nil {
		r.observe(false)
		r.log.WithError(err).WithField("key", key).Warn("cache get failed")
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		r.observe(false)
		r.log.WithError(err).WithField("key", key).Warn("cache value undecodable; dropping")
		_ = r.client.Del(ctx, r.key(key)).Err()
		return false, err
	}
	r.observe(true)
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), raw, ttl).Err(); err != nil {
		r.log.WithError(err).WithField("key", key).Warn("cache set failed")
		return err
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		r.log.WithError(err).WithField("keys", keys).Warn("cache delete failed")
		return err
	}
	return nil
}

// DeletePattern walks the keyspace with SCAN rather than KEYS so large
// databases are not blocked.
func (r *Redis) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.key(pattern), 200).Result()
		if err != nil {
			r.log.WithError(err).WithField("pattern", pattern).Warn("cache scan failed")
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
