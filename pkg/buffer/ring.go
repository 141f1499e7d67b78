package buffer

import (
	"sort"

	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// Ring is a time-indexed ring buffer sized to hold at least the caller's
// desired history at the nominal sample rate. Append is O(1) and silently
// overwrites the oldest sample when full; range queries use a binary
// search over the (invariant: strictly monotonic) timestamp sequence and
// never allocate. A query window that straddles the physical wrap point
// is returned as two slices in chronological order instead of copying.
type Ring[T any] struct {
	data     []T
	tsOf     func(T) timeline.Micros
	writeIdx uint64
	capacity int
}

// NewRing creates a ring of the given capacity. tsOf extracts the
// timestamp from a stored sample; callers must only Append samples with
// strictly increasing timestamps (spec.md DATA MODEL invariant 1).
func NewRing[T any](capacity int, tsOf func(T) timeline.Micros) *Ring[T] {
	return &Ring[T]{
		data:     make([]T, capacity),
		tsOf:     tsOf,
		capacity: capacity,
	}
}

// Append adds one sample, overwriting the oldest entry once the ring is
// full.
func (r *Ring[T]) Append(v T) {
	r.data[r.writeIdx%uint64(r.capacity)] = v
	r.writeIdx++
}

// Len returns the number of live samples currently retained.
func (r *Ring[T]) Len() int {
	if r.writeIdx < uint64(r.capacity) {
		return int(r.writeIdx)
	}
	return r.capacity
}

// Capacity returns the ring's fixed size.
func (r *Ring[T]) Capacity() int { return r.capacity }

func (r *Ring[T]) oldestPhys() int {
	if r.writeIdx < uint64(r.capacity) {
		return 0
	}
	return int(r.writeIdx % uint64(r.capacity))
}

func (r *Ring[T]) at(oldestPhys, logical int) T {
	return r.data[(oldestPhys+logical)%r.capacity]
}

// RangeQuery returns the samples whose timestamp falls in [startUs, endUs],
// clipped to whatever history the ring currently retains. The result is
// split into (head, tail) to avoid copying across the physical wrap point;
// tail is empty when the window doesn't wrap. Every returned sample has
// ts in [startUs, endUs], and no live sample with ts in that range is
// omitted.
func (r *Ring[T]) RangeQuery(startUs, endUs timeline.Micros) (head, tail []T) {
	n := r.Len()
	if n == 0 || startUs > endUs {
		return nil, nil
	}
	oldest := r.oldestPhys()

	lo := sort.Search(n, func(i int) bool {
		return r.tsOf(r.at(oldest, i)) >= startUs
	})
	hi := sort.Search(n, func(i int) bool {
		return r.tsOf(r.at(oldest, i)) > endUs
	})
	if lo >= hi {
		return nil, nil
	}

	startPhys := (oldest + lo) % r.capacity
	endPhys := (oldest + hi - 1) % r.capacity // inclusive

	if startPhys <= endPhys {
		return r.data[startPhys : endPhys+1], nil
	}
	return r.data[startPhys:r.capacity], r.data[0 : endPhys+1]
}
