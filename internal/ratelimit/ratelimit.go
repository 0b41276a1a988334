// Package ratelimit guards high-frequency ingest endpoints with a Redis
// token bucket. With no Redis configured the limiter admits everything, so a
// single-node deployment needs no extra infrastructure.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smallbiznis/irriflow/internal/config"
)

// tokenBucketScript refills KEYS[1] at ARGV[1] tokens/sec up to ARGV[2] and
// spends one token per call. Runs atomically inside Redis.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'updated')
local tokens = tonumber(bucket[1])
local updated = tonumber(bucket[2])
if tokens == nil then
  tokens = burst
  updated = now
end

local delta = now - updated
if delta > 0 then
  tokens = math.min(burst, tokens + delta * rate)
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'updated', now)
redis.call('EXPIRE', key, math.ceil(burst / rate) * 2 + 1)
return allowed
`)

type Limiter struct {
	client *redis.Client
	log    *zap.Logger
	rate   float64
	burst  int
}

func New(cfg config.Config, log *zap.Logger) *Limiter {
	l := &Limiter{
		log:   log.Named("ratelimit"),
		rate:  cfg.RateLimit.SensorRate,
		burst: cfg.RateLimit.SensorBurst,
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RedisAddr == "" {
		return l
	}
	l.client = redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})
	return l
}

// Allow spends one token for the given subject. Redis outages fail open:
// dropping field telemetry is worse than briefly admitting a chatty device.
func (l *Limiter) Allow(ctx context.Context, subject string) bool {
	if l.client == nil {
		return true
	}

	key := fmt.Sprintf("ratelimit:%s", subject)
	now := float64(time.Now().UnixMicro()) / 1e6
	allowed, err := tokenBucketScript.Run(ctx, l.client, []string{key}, l.rate, l.burst, now).Int()
	if err != nil {
		l.log.Warn("token bucket unavailable, admitting request",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return true
	}
	return allowed == 1
}

func (l *Limiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
