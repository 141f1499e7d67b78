// Package buffer implements the lock-free single-producer/single-consumer
// hand-off (spec.md §4.3 "Ring & Double Buffer") used between the
// acquisition thread and the DSP/renderer consumers.
package buffer

import (
	"sync/atomic"

	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// DoubleBuffer is a two-arena, lock-free, single-producer/single-consumer
// publish/observe buffer of plain-old structs. The producer writes into
// the non-published arena, then atomically flips a packed control word
// that selects the published arena and bumps a version counter. The
// consumer reads the control word once and exposes the published arena as
// an immutable Snapshot. Multi-consumer or multi-producer use is
// unsupported: concurrent producers would race on Writable(), and a
// consumer that holds a Snapshot across more than one Publish cycle may
// observe it mutate underneath it (inherent to a two-arena design; keep
// consumer turnaround within one producer cycle).
type DoubleBuffer[T any] struct {
	arenas [2][]T
	tsUs   atomic.Int64
	length atomic.Uint32
	ctrl   atomic.Uint64 // bit 0: published arena index; bits 1..: version
}

// NewDoubleBuffer allocates both arenas up front; Publish never allocates.
func NewDoubleBuffer[T any](capacity int) *DoubleBuffer[T] {
	return &DoubleBuffer[T]{
		arenas: [2][]T{make([]T, capacity), make([]T, capacity)},
	}
}

// Writable returns the producer's current write target: the arena not
// currently published. The producer owns this slice exclusively until the
// next Publish call.
func (b *DoubleBuffer[T]) Writable() []T {
	ctrl := b.ctrl.Load()
	target := (ctrl & 1) ^ 1
	return b.arenas[target]
}

// Publish makes the n samples just written to Writable() visible to the
// consumer, along with the timestamp of the snapshot (typically the last
// sample's timestamp), and bumps the version counter.
func (b *DoubleBuffer[T]) Publish(n int, tsUs timeline.Micros) {
	ctrl := b.ctrl.Load()
	curIndex := ctrl & 1
	version := ctrl >> 1
	newIndex := curIndex ^ 1

	b.tsUs.Store(int64(tsUs))
	b.length.Store(uint32(n))
	b.ctrl.Store(newIndex | ((version + 1) << 1))
}

// Snapshot is an immutable, single-frame view of the published arena.
type Snapshot[T any] struct {
	Data    []T
	Len     int
	TsUs    timeline.Micros
	Version uint64
}

// Load reads the current control word once and returns the corresponding
// snapshot. Before the first Publish, Version is 0 and Data is empty.
func (b *DoubleBuffer[T]) Load() Snapshot[T] {
	ctrl := b.ctrl.Load()
	version := ctrl >> 1
	if version == 0 {
		return Snapshot[T]{}
	}
	idx := ctrl & 1
	n := b.length.Load()
	ts := timeline.Micros(b.tsUs.Load())
	return Snapshot[T]{
		Data:    b.arenas[idx][:n],
		Len:     int(n),
		TsUs:    ts,
		Version: version,
	}
}
