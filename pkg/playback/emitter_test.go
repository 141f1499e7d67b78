package playback

import (
	"math"
	"testing"

	"github.com/dbehnke/neomonitor/pkg/buffer"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

type stamped struct {
	ts timeline.Micros
	v  int
}

func newTestCore(ring *buffer.Ring[stamped], got *[]stamped) *emitterCore[stamped] {
	return newEmitterCore(ring,
		func(s stamped) timeline.Micros { return s.ts },
		func(ts timeline.Micros) stamped { return stamped{ts: ts, v: -1} },
		func(s stamped) { *got = append(*got, s) },
	)
}

func TestEmitterCore_FiresInWindowNoGap(t *testing.T) {
	ring := buffer.NewRing(16, func(s stamped) timeline.Micros { return s.ts })
	for i, ts := range []timeline.Micros{1000, 2000, 3000, 4000} {
		ring.Append(stamped{ts: ts, v: i})
	}

	var got []stamped
	core := newTestCore(ring, &got)
	core.tick(2500)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples emitted by t=2500, got %d", len(got))
	}
	core.tick(4000)
	if len(got) != 4 {
		t.Fatalf("expected 4 samples total by t=4000, got %d", len(got))
	}
	for i, s := range got {
		if s.v != i {
			t.Errorf("expected samples emitted in order, got v=%d at index %d", s.v, i)
		}
	}
}

func TestEmitterCore_SynthesizesMissingOnWideGap(t *testing.T) {
	ring := buffer.NewRing(16, func(s stamped) timeline.Micros { return s.ts })
	ring.Append(stamped{ts: 0, v: 0})
	ring.Append(stamped{ts: 100_000, v: 1}) // 100ms gap, well over MissingGapUs

	var got []stamped
	core := newTestCore(ring, &got)
	core.tick(100_000)

	if len(got) != 3 {
		t.Fatalf("expected real, synthetic, real = 3 emissions, got %d", len(got))
	}
	if got[1].v != -1 {
		t.Errorf("expected middle emission to be the synthetic marker, got v=%d", got[1].v)
	}
	if got[1].ts <= got[0].ts || got[1].ts >= got[2].ts {
		t.Errorf("expected synthetic marker timestamp strictly between the two real samples, got %+v", got[1])
	}
}

func TestEmitterCore_NoMissingOnNarrowGap(t *testing.T) {
	ring := buffer.NewRing(16, func(s stamped) timeline.Micros { return s.ts })
	ring.Append(stamped{ts: 0, v: 0})
	ring.Append(stamped{ts: 6250, v: 1}) // nominal 160Hz spacing, well under 25ms

	var got []stamped
	core := newTestCore(ring, &got)
	core.tick(6250)
	if len(got) != 2 {
		t.Fatalf("expected no synthetic marker for a nominal gap, got %d emissions", len(got))
	}
}

func TestEmitterCore_SeekResetsCursorWithoutEmitting(t *testing.T) {
	ring := buffer.NewRing(16, func(s stamped) timeline.Micros { return s.ts })
	ring.Append(stamped{ts: 1000, v: 0})
	ring.Append(stamped{ts: 2000, v: 1})

	var got []stamped
	core := newTestCore(ring, &got)
	core.seek(1500)
	if len(got) != 0 {
		t.Fatalf("seek must not emit, got %d emissions", len(got))
	}
	core.tick(2000)
	if len(got) != 1 || got[0].v != 1 {
		t.Fatalf("expected only the sample after the seek position, got %+v", got)
	}
}

func TestEEGMissingSample_CarriesNaN(t *testing.T) {
	s := eegMissingSample(500)
	for c, v := range s.Channels {
		if !math.IsNaN(v) {
			t.Errorf("channel %d: expected NaN sentinel, got %v", c, v)
		}
	}
	if !s.Quality.Has(1) { // QMissing == 1<<0
		t.Error("expected Missing flag on synthetic EEG sample")
	}
}
