package playback

import (
	"math"

	"github.com/dbehnke/neomonitor/pkg/buffer"
	"github.com/dbehnke/neomonitor/pkg/dsp"
	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/timeline"
	"github.com/sourcegraph/conc/pool"
)

// EEGEmitter replays one session's EEG ring at the virtual clock's pace.
// When filtfilt is enabled it scans the raw ring once per Play, applies
// zero-phase filtering per channel per gap-free segment, and emits from a
// private pre-filtered ring instead (spec.md §4.8 "EEG emitter").
type EEGEmitter struct {
	core *emitterCore[signal.EEGSample]

	rawRing  *buffer.Ring[signal.EEGSample]
	filtRing *buffer.Ring[signal.EEGSample]

	useFiltFilt bool
	filterSet   dsp.FilterSet
	prescanned  bool
}

func eegMissingSample(ts timeline.Micros) signal.EEGSample {
	var s signal.EEGSample
	s.TsUs = ts
	for c := range s.Channels {
		s.Channels[c] = math.NaN()
	}
	s.Quality = signal.QMissing
	return s
}

// NewEEGEmitter wraps a session's live EEG ring. onSample is called from
// the coordinator's tick goroutine; it must not block.
func NewEEGEmitter(rawRing *buffer.Ring[signal.EEGSample], set dsp.FilterSet, onSample func(signal.EEGSample)) *EEGEmitter {
	e := &EEGEmitter{rawRing: rawRing, filterSet: set}
	e.core = newEmitterCore(rawRing, func(s signal.EEGSample) timeline.Micros { return s.TsUs }, eegMissingSample, onSample)
	return e
}

// SetFiltFilt toggles zero-phase playback filtering; it takes effect on the
// next Reset (called by the coordinator's Play).
func (e *EEGEmitter) SetFiltFilt(enabled bool) {
	e.useFiltFilt = enabled
	e.prescanned = false
}

// Reset rebuilds the pre-filtered ring (if enabled) and repositions the
// emission cursor to us, called once per Play.
func (e *EEGEmitter) Reset(us timeline.Micros) {
	if e.useFiltFilt && !e.prescanned {
		e.prescan()
	}
	if e.useFiltFilt {
		e.core.setRing(e.filtRing)
	} else {
		e.core.setRing(e.rawRing)
	}
	e.core.seek(us)
}

// Seek repositions the emission cursor without rebuilding the filtfilt
// pre-pass (spec.md §4.8 "seek_to": "EEG: reset emission cursor in its
// ring").
func (e *EEGEmitter) Seek(us timeline.Micros) {
	e.core.seek(us)
}

// Tick fires every sample due by currentUs.
func (e *EEGEmitter) Tick(currentUs timeline.Micros) {
	e.core.tick(currentUs)
}

// prescan splits the raw ring on Missing-flagged gaps, zero-phase filters
// each channel of each gap-free segment in parallel (one goroutine per
// channel, bounded by conc/pool), and rebuilds the private filtered ring.
func (e *EEGEmitter) prescan() {
	head, tail := e.rawRing.RangeQuery(math.MinInt64, math.MaxInt64)
	samples := make([]signal.EEGSample, 0, len(head)+len(tail))
	samples = append(samples, head...)
	samples = append(samples, tail...)

	e.filtRing = buffer.NewRing(e.rawRing.Capacity(), func(s signal.EEGSample) timeline.Micros { return s.TsUs })
	e.prescanned = true
	if len(samples) == 0 {
		return
	}

	missing := make([]bool, len(samples))
	var xs [signal.EEGChannels][]float64
	for c := range xs {
		xs[c] = make([]float64, len(samples))
	}
	for i, s := range samples {
		missing[i] = s.Quality.Has(signal.QMissing)
		for c := range xs {
			xs[c][i] = s.Channels[c]
		}
	}

	var filtered [signal.EEGChannels][]float64
	p := pool.New().WithMaxGoroutines(signal.EEGChannels)
	for c := 0; c < signal.EEGChannels; c++ {
		c := c
		p.Go(func() {
			filtered[c] = dsp.FiltFilt(e.filterSet, xs[c], missing)
		})
	}
	p.Wait()

	for i, s := range samples {
		if !missing[i] {
			for c := range s.Channels {
				s.Channels[c] = filtered[c][i]
			}
			// filtfilt output never carries Transient (spec.md §4.4).
			s.Quality = s.Quality &^ signal.QTransient
		}
		e.filtRing.Append(s)
	}
}
