// Package scheduler picks randomized delays for background refreshes.
package scheduler

import (
	"math/rand"
	"sync"
	"time"
)

// Jitter yields delays uniformly distributed in [lo, hi).
type Jitter struct {
	lo time.Duration
	hi time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitter creates a scheduler. If hi <= lo every delay equals lo.
func NewJitter(lo, hi time.Duration) *Jitter {
	return NewJitterWithSource(lo, hi, rand.NewSource(time.Now().UnixNano()))
}

// NewJitterWithSource uses src for randomness so tests are deterministic.
func NewJitterWithSource(lo, hi time.Duration, src rand.Source) *Jitter {
	if lo < 0 {
		lo = 0
	}
	return &Jitter{lo: lo, hi: hi, rng: rand.New(src)} //nolint:gosec // scheduling jitter, not security
}

// Delay returns the next delay.
func (j *Jitter) Delay() time.Duration {
	if j.hi <= j.lo {
		return j.lo
	}
	j.mu.Lock()
	n := j.rng.Int63n(int64(j.hi - j.lo))
	j.mu.Unlock()
	return j.lo + time.Duration(n)
}
