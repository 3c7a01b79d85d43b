package traveltime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/psds-microservice/installation-service/internal/metrics"
	"go.uber.org/zap"
)

var ErrMiss = errors.New("cache miss")

type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

// Cached memoizes successful estimates. Unavailable results are never cached so a
// later lookup can succeed once the key is configured.
type Cached struct {
	next    Estimator
	kv      KV
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewCached(next Estimator, kv KV, ttl time.Duration, logger *zap.Logger, m *metrics.Collector) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, kv: kv, ttl: ttl, logger: logger, metrics: m}
}

func (c *Cached) Estimate(ctx context.Context, origin, destination string) Result {
	key := cacheKey(origin, destination)
	if v, err := c.kv.Get(ctx, key); err == nil {
		if m, perr := strconv.Atoi(v); perr == nil {
			c.metrics.RecordTravelLookup("cached")
			return Available(m)
		}
	} else if !errors.Is(err, ErrMiss) {
		c.logger.Warn("travel cache read failed", zap.Error(err))
	}

	res := c.next.Estimate(ctx, origin, destination)
	if res.OK() {
		if err := c.kv.Set(ctx, key, strconv.Itoa(res.Minutes), c.ttl); err != nil {
			c.logger.Warn("travel cache write failed", zap.Error(err))
		}
	}
	return res
}

func cacheKey(origin, destination string) string {
	norm := func(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }
	sum := sha256.Sum256([]byte(norm(origin) + "\x00" + norm(destination)))
	return "traveltime:" + hex.EncodeToString(sum[:16])
}
