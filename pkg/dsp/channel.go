package dsp

import "github.com/dbehnke/neomonitor/pkg/signal"

// maxGapPeriods is how many nominal sample periods may elapse between two
// consecutive samples before the live chain treats it as a dropout rather
// than ordinary jitter, per spec.md §4.4 "gap handling".
const maxGapPeriods = 4

// FilterSet names the three independently switchable live-path filters.
type FilterSet struct {
	Notch Cutoff
	HPF   Cutoff
	LPF   Cutoff
}

// LiveChannel holds one EEG channel's causal filter state: three
// independently resettable cascades plus the warm-up/gap bookkeeping that
// taints output quality while a cascade's delay line is still settling.
// One LiveChannel is owned by exactly one channel; cascades are never
// shared (spec.md §4.4 "Per-channel state").
type LiveChannel struct {
	set FilterSet

	notch *Cascade
	hpf   *Cascade
	lpf   *Cascade

	warmLeft    int
	lastTsUs    int64
	hasLastTs   bool
	sampleIvlUs int64
}

// NewLiveChannel builds a channel filter chain for the given fixed sample
// interval (spec.md EEG cadence is 6250us at 160Hz) and initial filter
// selection. The chain starts cold: its first warm-up-budget samples carry
// Transient.
func NewLiveChannel(sampleIntervalUs int64, set FilterSet) *LiveChannel {
	lc := &LiveChannel{sampleIvlUs: sampleIntervalUs}
	lc.SetFilters(set)
	return lc
}

// SetFilters rebuilds the cascades for a new filter selection and resets
// warm-up/gap state, since changing a filter's coefficients mid-stream
// would otherwise produce a discontinuity indistinguishable from a real
// transient.
func (lc *LiveChannel) SetFilters(set FilterSet) {
	lc.set = set
	lc.notch = NewCascade(CoeffsFor(set.Notch))
	lc.hpf = NewCascade(CoeffsFor(set.HPF))
	lc.lpf = NewCascade(CoeffsFor(set.LPF))
	lc.resetWarmup()
}

func (lc *LiveChannel) resetWarmup() {
	w := WarmupFor(lc.set.Notch)
	if v := WarmupFor(lc.set.HPF); v > w {
		w = v
	}
	if v := WarmupFor(lc.set.LPF); v > w {
		w = v
	}
	lc.warmLeft = w
	lc.hasLastTs = false
}

// ProcessSample filters one scaled microvolt sample arriving at tsUs,
// returning the filtered value and the quality flags to attach to it. A
// gap of more than maxGapPeriods nominal sample intervals since the last
// call resets the cascades (the old delay line is no longer a valid
// predictor) and reports Missing|Transient for this sample; otherwise the
// sample is Transient only while the cascades are still warming up.
func (lc *LiveChannel) ProcessSample(x float64, tsUs int64) (float64, signal.Quality) {
	var q signal.Quality

	if lc.hasLastTs {
		gap := tsUs - lc.lastTsUs
		if gap > maxGapPeriods*lc.sampleIvlUs {
			lc.notch.Reset()
			lc.hpf.Reset()
			lc.lpf.Reset()
			lc.resetWarmup()
			q = q.Merge(signal.QMissing).Merge(signal.QTransient)
		}
	}
	lc.lastTsUs = tsUs
	lc.hasLastTs = true

	y := lc.notch.Process(x)
	y = lc.hpf.Process(y)
	y = lc.lpf.Process(y)

	if lc.warmLeft > 0 {
		lc.warmLeft--
		q = q.Merge(signal.QTransient)
	}
	return y, q
}

// Filters returns the channel's current filter selection.
func (lc *LiveChannel) Filters() FilterSet { return lc.set }
