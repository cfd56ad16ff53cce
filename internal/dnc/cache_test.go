package dnc

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveypulse/dialer-core/internal/domain"
)

type sourceStub struct {
	blocked map[string]bool
	calls   int
	err     error
}

func (s *sourceStub) IsBlocked(_ domain.Context, msisdn string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.blocked[msisdn], nil
}

func newTestCache(t *testing.T, src Source) (*Cache, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = rdb.Close()
		mr.Close()
	}
	return New(rdb, src, time.Hour), cleanup
}

func TestCache_IsBlocked_MissThenHit(t *testing.T) {
	src := &sourceStub{blocked: map[string]bool{"+15551234": true}}
	c, cleanup := newTestCache(t, src)
	defer cleanup()

	ctx := context.Background()
	blocked, err := c.IsBlocked(ctx, "+15551234")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, 1, src.calls)

	blocked, err = c.IsBlocked(ctx, "+15551234")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, 1, src.calls, "second lookup should be served from cache")
}

func TestCache_IsBlocked_NegativeCachedSeparately(t *testing.T) {
	src := &sourceStub{blocked: map[string]bool{}}
	c, cleanup := newTestCache(t, src)
	defer cleanup()

	ctx := context.Background()
	blocked, err := c.IsBlocked(ctx, "+15559999")
	require.NoError(t, err)
	assert.False(t, blocked)
	assert.Equal(t, 1, src.calls)

	blocked, err = c.IsBlocked(ctx, "+15559999")
	require.NoError(t, err)
	assert.False(t, blocked)
	assert.Equal(t, 1, src.calls)
}

func TestCache_IsBlocked_NilClientFallsThroughToSource(t *testing.T) {
	src := &sourceStub{blocked: map[string]bool{"+1": true}}
	c := New(nil, src, time.Hour)

	blocked, err := c.IsBlocked(context.Background(), "+1")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, 1, src.calls)
}

func TestCache_IsBlocked_SourceErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	src := &sourceStub{err: boom}
	c, cleanup := newTestCache(t, src)
	defer cleanup()

	_, err := c.IsBlocked(context.Background(), "+1")
	assert.ErrorIs(t, err, boom)
}

func TestCache_Invalidate_ClearsEntry(t *testing.T) {
	src := &sourceStub{blocked: map[string]bool{"+1": true}}
	c, cleanup := newTestCache(t, src)
	defer cleanup()

	ctx := context.Background()
	_, err := c.IsBlocked(ctx, "+1")
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)

	require.NoError(t, c.Invalidate(ctx, "+1"))

	_, err = c.IsBlocked(ctx, "+1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "invalidated entry should force a source lookup")
}
