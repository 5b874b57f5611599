package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_PushBelowCapacity(t *testing.T) {
	r := NewRing[int](5)
	r.Push(1)
	r.Push(2)
	r.Push(3)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{1, 2, 3}, r.Values())
}

func TestRing_EvictsOldestBeyondCapacity(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Values())
}

func TestRing_Mean(t *testing.T) {
	r := NewRing[float64](4)
	assert.Zero(t, r.Mean())

	r.Push(1)
	r.Push(2)
	r.Push(3)
	assert.InDelta(t, 2.0, r.Mean(), 1e-9)

	// Evictions move the mean with the window.
	r.Push(4)
	r.Push(5)
	assert.InDelta(t, 3.5, r.Mean(), 1e-9)
}

func TestRing_ZeroCapacityClamped(t *testing.T) {
	r := NewRing[int](0)
	r.Push(7)
	assert.Equal(t, []int{7}, r.Values())
}
