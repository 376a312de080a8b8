package lockout

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock safe for concurrent readers.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGuard_LocksAfterThreshold(t *testing.T) {
	clock := newFakeClock()
	g := New(3, time.Minute, clock)
	key := LoginKey("alice")

	st := g.RecordFailure(key)
	assert.Equal(t, 1, st.FailureCount)
	assert.True(t, st.LockedUntil.IsZero())

	g.RecordFailure(key)
	locked, _ := g.Status(key)
	assert.False(t, locked)

	// third consecutive failure triggers the lock
	st = g.RecordFailure(key)
	assert.Equal(t, 3, st.FailureCount)
	assert.False(t, st.LockedUntil.IsZero())

	locked, remaining := g.Status(key)
	assert.True(t, locked)
	assert.Equal(t, time.Minute, remaining)
}

func TestGuard_SuccessResetsCount(t *testing.T) {
	clock := newFakeClock()
	g := New(3, time.Minute, clock)
	key := LoginKey("alice")

	g.RecordFailure(key)
	g.RecordFailure(key)
	g.RecordSuccess(key)
	assert.Equal(t, 0, g.FailureCount(key))

	// counting restarts from zero
	st := g.RecordFailure(key)
	assert.Equal(t, 1, st.FailureCount)
	locked, _ := g.Status(key)
	assert.False(t, locked)
}

func TestGuard_LazyExpiry(t *testing.T) {
	clock := newFakeClock()
	g := New(3, time.Minute, clock)
	key := TwoFactorKey("alice")

	for i := 0; i < 3; i++ {
		g.RecordFailure(key)
	}
	locked, _ := g.Status(key)
	require.True(t, locked)

	clock.Advance(time.Minute + time.Second)

	locked, remaining := g.Status(key)
	assert.False(t, locked)
	assert.Zero(t, remaining)
	assert.Equal(t, 0, g.FailureCount(key))
}

func TestGuard_FailureAfterExpiredLockStartsOver(t *testing.T) {
	clock := newFakeClock()
	g := New(3, time.Minute, clock)
	key := LoginKey("bob")

	for i := 0; i < 3; i++ {
		g.RecordFailure(key)
	}
	clock.Advance(2 * time.Minute)

	// the stale lock resets before the new failure is counted
	st := g.RecordFailure(key)
	assert.Equal(t, 1, st.FailureCount)
	assert.True(t, st.LockedUntil.IsZero())
}

func TestGuard_IndependentKeys(t *testing.T) {
	clock := newFakeClock()
	g := New(3, time.Minute, clock)

	for i := 0; i < 3; i++ {
		g.RecordFailure(LoginKey("alice"))
	}

	locked, _ := g.Status(LoginKey("alice"))
	assert.True(t, locked)
	locked, _ = g.Status(TwoFactorKey("alice"))
	assert.False(t, locked)
	locked, _ = g.Status(LoginKey("bob"))
	assert.False(t, locked)
}

func TestGuard_ConcurrentFailures(t *testing.T) {
	clock := newFakeClock()
	g := New(3, time.Minute, clock)
	key := LoginKey("alice")

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			st := g.RecordFailure(key)
			// once the count is at or past the threshold, the lock must
			// already be set in the same atomic step
			if st.FailureCount >= 3 {
				assert.False(t, st.LockedUntil.IsZero())
			}
		}()
	}
	wg.Wait()

	locked, _ := g.Status(key)
	assert.True(t, locked)
}
