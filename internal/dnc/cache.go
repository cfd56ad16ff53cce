// Package dnc provides a read-through cache in front of the do-not-contact
// lookup. It backs the operator-facing DNC check endpoint; the reservation
// path does not go through it, since its sample claim query filters
// dnc_entries in SQL.
package dnc

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/surveypulse/dialer-core/internal/domain"
	"github.com/surveypulse/dialer-core/internal/observability"
)

const (
	blockedValue   = "1"
	clearValue     = "0"
	keyPrefix      = "dnc:"
	negativeFactor = 10
)

// Source is the authoritative backend the cache falls through to on a miss.
// It is satisfied by domain.DNCChecker, i.e. a store transaction's DNC
// lookup.
type Source interface {
	IsBlocked(ctx domain.Context, msisdn string) (bool, error)
}

// Cache wraps a Source with a Redis-backed cache keyed by msisdn. Positive
// ("blocked") entries are cached for ttl; negative entries are cached for a
// shorter window so a number freshly added to the do-not-contact list is
// picked up sooner.
//
// A nil Redis client or any Redis error fails open to the underlying
// Source rather than treating a cache outage as a blocked number.
type Cache struct {
	rdb *redis.Client
	src Source
	ttl time.Duration
}

func New(rdb *redis.Client, src Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{rdb: rdb, src: src, ttl: ttl}
}

// IsBlocked reports whether msisdn is on the do-not-contact list, serving
// from cache when possible.
func (c *Cache) IsBlocked(ctx domain.Context, msisdn string) (bool, error) {
	if c.rdb == nil {
		return c.src.IsBlocked(ctx, msisdn)
	}

	key := keyPrefix + msisdn
	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		observability.RecordDNCCacheLookup(true)
		return val == blockedValue, nil
	case err == redis.Nil:
		// cache miss, fall through to the source
	default:
		slog.Warn("dnc cache read failed, falling back to source", slog.String("error", err.Error()))
	}

	observability.RecordDNCCacheLookup(false)
	blocked, err := c.src.IsBlocked(ctx, msisdn)
	if err != nil {
		return false, err
	}

	c.store(ctx, key, blocked)
	return blocked, nil
}

func (c *Cache) store(ctx domain.Context, key string, blocked bool) {
	val, ttl := clearValue, c.ttl/negativeFactor
	if blocked {
		val, ttl = blockedValue, c.ttl
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := c.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		slog.Warn("dnc cache write failed", slog.String("error", err.Error()))
	}
}

// Invalidate drops a cached entry, used after a DNC list mutation so the
// next lookup re-reads the source of truth immediately.
func (c *Cache) Invalidate(ctx domain.Context, msisdn string) error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, keyPrefix+msisdn).Err(); err != nil {
		return err
	}
	return nil
}

// StoreSource adapts a domain.Store into a Source by opening a
// short-lived, read-only transaction per lookup. It lets callers outside
// the reservation path (an operator-facing check endpoint, a sample
// backfill) query the do-not-contact list through a Cache, without needing
// a Tx of their own already open.
type StoreSource struct {
	Store domain.Store
}

// IsBlocked implements Source by running the lookup in its own transaction.
func (s StoreSource) IsBlocked(ctx domain.Context, msisdn string) (bool, error) {
	var blocked bool
	err := s.Store.RunInTx(ctx, func(ctx domain.Context, tx domain.Tx) error {
		var err error
		blocked, err = tx.IsBlocked(ctx, msisdn)
		return err
	})
	return blocked, err
}
