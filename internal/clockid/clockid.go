// Package clockid provides the monotonic wall clock and unique identifier
// minting used across the dialer core (component C1).
package clockid

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/surveypulse/dialer-core/internal/domain"
)

// SystemClock is the production domain.Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

var _ domain.Clock = SystemClock{}

// ULIDGenerator mints ULIDs. ULIDs are lexicographically sortable by
// creation time, which matches the "ORDER BY id ASC" tie-breaks the
// reservation engine and TTL sweeper rely on (spec §4.6, §4.8) while still
// being globally unique without a round-trip to the store.
type ULIDGenerator struct {
	clock domain.Clock

	mu      sync.Mutex
	entropy *ulid.MonotonicReader
}

// NewULIDGenerator constructs a generator using clock for timestamps.
func NewULIDGenerator(clock domain.Clock) *ULIDGenerator {
	if clock == nil {
		clock = SystemClock{}
	}
	src := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // entropy source only, not security sensitive
	var reader ulid.MonotonicReader = ulid.Monotonic(src, 0)
	return &ULIDGenerator{clock: clock, entropy: &reader}
}

// NewID returns a new ULID string.
func (g *ULIDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(g.clock.Now()), *g.entropy)
	if err != nil {
		// ulid.New fails when the monotonic reader's increment overflows
		// within one millisecond; fall back to a fresh reader rather than
		// panicking in a hot path.
		src := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
		reader := ulid.Monotonic(src, 0)
		*g.entropy = reader
		id, _ = ulid.New(ulid.Timestamp(g.clock.Now()), *g.entropy)
	}
	return id.String()
}

var _ domain.IDGenerator = (*ULIDGenerator)(nil)
