// Package ratelimit implements a Redis-backed token-bucket limiter applied
// to per-interviewer ReserveNext calls, so one runaway dialer client can't
// starve others of the row locks the reservation algorithm takes.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether the caller identified by key may spend cost
// tokens right now.
type Limiter interface {
	Allow(ctx context.Context, key string, cost int64) (allowed bool, retryAfter time.Duration, err error)
}

// RedisLuaLimiter implements Limiter with a single atomic Lua script so
// the check-and-decrement is race-free across concurrent callers sharing
// the same Redis instance.
type RedisLuaLimiter struct {
	redis      *redis.Client
	capacity   int64
	refillRate float64
	script     *redis.Script
}

// NewRedisLuaLimiter builds a limiter where every key shares the same
// budget: perMinute tokens, refilled continuously. A nil client disables
// rate limiting; Allow then always succeeds.
func NewRedisLuaLimiter(rdb *redis.Client, perMinute int) *RedisLuaLimiter {
	if rdb == nil || perMinute <= 0 {
		return &RedisLuaLimiter{}
	}
	return &RedisLuaLimiter{
		redis:      rdb,
		capacity:   int64(perMinute),
		refillRate: float64(perMinute) / 60.0,
		script:     redis.NewScript(luaTokenBucketScript),
	}
}

const luaTokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] ~= false and data[1] ~= nil then
  tokens = tonumber(data[1])
end
if data[2] ~= false and data[2] ~= nil then
  last_refill = tonumber(data[2])
end

local delta = now - last_refill
if delta < 0 then delta = 0 end

tokens = math.min(capacity, tokens + delta * refill_rate)
last_refill = now

local allowed = 0
local retry_after = 0

if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  local shortage = cost - tokens
  if refill_rate > 0 then
    retry_after = shortage / refill_rate
  end
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 3600)

return { allowed, tokens, last_refill, retry_after }
`

// Allow checks and, if allowed, debits cost tokens from key's bucket. A
// disabled limiter (nil client or non-positive budget) always allows. A
// Redis error fails open so a cache outage never blocks reservations.
func (l *RedisLuaLimiter) Allow(ctx context.Context, key string, cost int64) (bool, time.Duration, error) {
	if l == nil || l.redis == nil {
		return true, 0, nil
	}
	if cost <= 0 {
		cost = 1
	}

	now := float64(time.Now().UnixNano()) / 1e9
	res, err := l.script.Run(ctx, l.redis, []string{"ratelimit:" + key}, l.capacity, l.refillRate, now, cost).Result()
	if err != nil {
		slog.Warn("ratelimit: script error, failing open", slog.String("key", key), slog.Any("error", err))
		return true, 0, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 4 {
		slog.Warn("ratelimit: unexpected script result, failing open", slog.String("key", key))
		return true, 0, nil
	}

	allowed := toInt64(vals[0]) == 1
	retryAfter := time.Duration(toFloat64(vals[3]) * float64(time.Second))
	return allowed, retryAfter, nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return math.NaN()
	}
}
