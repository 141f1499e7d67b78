package playback

import (
	"math"
	"sync"

	"github.com/dbehnke/neomonitor/pkg/buffer"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// MissingGapUs is the gap threshold above which an emitter synthesises a
// single Missing marker instead of staying silent (spec.md §4.8 "EEG
// emitter"). It is the only sanctioned source of synthetic samples.
const MissingGapUs timeline.Micros = 25_000

// emitterCore is the stream-agnostic half of an EEG or NIRS emitter: it
// walks a ring from the last-emitted timestamp up to the clock's current
// position, firing onSample for each buffered sample in range and for any
// synthetic gap marker. EEGEmitter and NIRSEmitter each supply the
// type-specific ring, timestamp accessor, and missing-sample constructor.
type emitterCore[T any] struct {
	mu            sync.Mutex
	ring          *buffer.Ring[T]
	tsOf          func(T) timeline.Micros
	makeMissing   func(ts timeline.Micros) T
	onSample      func(T)
	lastEmittedUs timeline.Micros
	haveEmitted   bool
}

func newEmitterCore[T any](ring *buffer.Ring[T], tsOf func(T) timeline.Micros, makeMissing func(timeline.Micros) T, onSample func(T)) *emitterCore[T] {
	return &emitterCore[T]{ring: ring, tsOf: tsOf, makeMissing: makeMissing, onSample: onSample}
}

// setRing swaps the ring an emitter reads from (used when filtfilt toggles
// between the raw and pre-filtered rings) without disturbing the emission
// cursor.
func (e *emitterCore[T]) setRing(ring *buffer.Ring[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ring = ring
}

// seek repositions the emission cursor so the next tick fires every
// buffered sample timestamped at or after us (not just strictly after),
// matching "reposition to us" rather than "mark us itself as emitted".
func (e *emitterCore[T]) seek(us timeline.Micros) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastEmittedUs = us - 1
	e.haveEmitted = true
}

// tick fires every buffered sample whose timestamp falls in
// (lastEmittedUs, currentUs], synthesising one Missing marker for any gap
// between consecutive emissions (or between the cursor and currentUs, if
// no samples are buffered at all) wider than MissingGapUs.
func (e *emitterCore[T]) tick(currentUs timeline.Micros) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.lastEmittedUs + 1
	if !e.haveEmitted {
		start = math.MinInt64
	}
	head, tail := e.ring.RangeQuery(start, currentUs)
	sawAny := false

	emit := func(s T) {
		ts := e.tsOf(s)
		if e.haveEmitted && ts-e.lastEmittedUs > MissingGapUs {
			e.onSample(e.makeMissing(e.lastEmittedUs + MissingGapUs/2))
		}
		e.onSample(s)
		e.lastEmittedUs = ts
		e.haveEmitted = true
		sawAny = true
	}
	for _, s := range head {
		emit(s)
	}
	for _, s := range tail {
		emit(s)
	}

	if !sawAny && e.haveEmitted && currentUs-e.lastEmittedUs > MissingGapUs {
		e.onSample(e.makeMissing(e.lastEmittedUs + MissingGapUs/2))
		e.lastEmittedUs = currentUs
	}
}
