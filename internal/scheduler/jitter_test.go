package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestJitter_DelayWithinBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lo := time.Duration(rapid.Int64Range(0, int64(10*time.Second)).Draw(t, "min"))
		span := time.Duration(rapid.Int64Range(1, int64(10*time.Second)).Draw(t, "span"))
		j := NewJitterWithSource(lo, lo+span, rand.NewSource(rapid.Int64().Draw(t, "seed")))

		for i := 0; i < 20; i++ {
			d := j.Delay()
			if d < lo || d >= lo+span {
				t.Fatalf("delay %v outside [%v, %v)", d, lo, lo+span)
			}
		}
	})
}

func TestJitter_DegenerateRange(t *testing.T) {
	require.Equal(t, 2*time.Second, NewJitter(2*time.Second, 2*time.Second).Delay())
	require.Equal(t, 3*time.Second, NewJitter(3*time.Second, time.Second).Delay())
	require.Equal(t, time.Duration(0), NewJitter(-time.Second, 0).Delay())
}

func TestJitter_SameSeedSameSequence(t *testing.T) {
	a := NewJitterWithSource(time.Second, 5*time.Second, rand.NewSource(42))
	b := NewJitterWithSource(time.Second, 5*time.Second, rand.NewSource(42))
	for i := 0; i < 10; i++ {
		require.Equal(t, a.Delay(), b.Delay())
	}
}
