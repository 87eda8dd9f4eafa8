package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/pkg/logger"
	"github.com/okian/aidfeed/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(o RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
}

// Redis is a Cache shared between replicas. Entries expire in Redis after
// the retention window; freshness is checked against FetchedAt. Backend
// errors are logged and reported as misses so callers fall through to the
// upstream sources.
type Redis struct {
	rdb *redis.Client
	cfg settings
}

var _ Cache = (*Redis)(nil)

type redisEntry struct {
	Key       model.Key       `json:"key"`
	Listings  []model.Listing `json:"listings"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// NewRedis creates a Redis-backed cache.
func NewRedis(rdb *redis.Client, opts ...Option) *Redis {
	return &Redis{rdb: rdb, cfg: apply(opts)}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) entryKey(key model.Key) string {
	return r.cfg.prefix + key.String()
}

func (r *Redis) indexKey() string {
	return r.cfg.prefix + "index"
}

func (r *Redis) load(ctx context.Context, key model.Key) (redisEntry, bool) {
	b, err := r.rdb.Get(ctx, r.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return redisEntry{}, false
	}
	if err != nil {
		metrics.RecordCacheError("get")
		r.cfg.logger.Warn(ctx, "redis cache read failed", logger.String("key", key.String()), logger.Error(err))
		return redisEntry{}, false
	}
	var e redisEntry
	if err := json.Unmarshal(b, &e); err != nil {
		metrics.RecordCacheError("decode")
		r.cfg.logger.Warn(ctx, "redis cache entry is corrupt", logger.String("key", key.String()), logger.Error(err))
		return redisEntry{}, false
	}
	return e, true
}

// Get returns the entry for key when it is younger than the TTL.
func (r *Redis) Get(ctx context.Context, key model.Key) (Entry, bool) {
	e, ok := r.load(ctx, key)
	if !ok || r.cfg.now().Sub(e.FetchedAt) >= r.cfg.ttl {
		metrics.RecordCacheMiss()
		return Entry{}, false
	}
	metrics.RecordCacheHit()
	return Entry{Listings: e.Listings, FetchedAt: e.FetchedAt}, true
}

// Stale returns the retained entry for key regardless of TTL.
func (r *Redis) Stale(ctx context.Context, key model.Key) (Entry, bool) {
	e, ok := r.load(ctx, key)
	if !ok {
		return Entry{}, false
	}
	return Entry{Listings: e.Listings, FetchedAt: e.FetchedAt}, true
}

// Set overwrites the entry for key.
func (r *Redis) Set(ctx context.Context, key model.Key, listings []model.Listing) {
	if listings == nil {
		listings = []model.Listing{}
	}
	b, err := json.Marshal(redisEntry{Key: key, Listings: listings, FetchedAt: r.cfg.now()})
	if err != nil {
		metrics.RecordCacheError("encode")
		r.cfg.logger.Error(ctx, "redis cache encode failed", logger.Error(err))
		return
	}
	idx, err := json.Marshal(key)
	if err != nil {
		metrics.RecordCacheError("encode")
		return
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.entryKey(key), b, r.cfg.maxStale)
	pipe.SAdd(ctx, r.indexKey(), idx)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordCacheError("set")
		r.cfg.logger.Warn(ctx, "redis cache write failed", logger.String("key", key.String()), logger.Error(err))
	}
}

// Keys returns the keys whose entries are still retained. Index members
// whose entries expired are pruned.
func (r *Redis) Keys(ctx context.Context) []model.Key {
	members, err := r.rdb.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		metrics.RecordCacheError("keys")
		r.cfg.logger.Warn(ctx, "redis cache index read failed", logger.Error(err))
		return nil
	}
	keys := make([]model.Key, 0, len(members))
	for _, m := range members {
		var k model.Key
		if err := json.Unmarshal([]byte(m), &k); err != nil {
			continue
		}
		n, err := r.rdb.Exists(ctx, r.entryKey(k)).Result()
		if err != nil {
			metrics.RecordCacheError("keys")
			continue
		}
		if n == 0 {
			r.rdb.SRem(ctx, r.indexKey(), m)
			metrics.RecordCacheEviction()
			continue
		}
		keys = append(keys, k)
	}
	metrics.UpdateCacheEntries(len(keys))
	return keys
}

// Len returns the number of retained entries.
func (r *Redis) Len(ctx context.Context) int {
	return len(r.Keys(ctx))
}

// TTL returns the freshness window.
func (r *Redis) TTL() time.Duration { return r.cfg.ttl }
