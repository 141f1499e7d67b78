package aeeg

import (
	"math"

	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// log10_200Minus1 is the width of the logarithmic region in decades. It is
// computed once with math.Log10 at package initialisation; MapBin also
// calls math.Log10 on each amplitude in that region.
var log10_200Minus1 = math.Log10(200) - 1

const gsBinSaturation = signal.GSBinSaturation

// GSCounterFlush and GSCounterIgnore are the two device counter values
// (data[16]) with special meaning; every other byte value 0..228 means
// "still accumulating".
const (
	GSCounterFlush  = 229
	GSCounterIgnore = 255
)

// MapBin maps a non-negative rectified microvolt amplitude to one of the
// 230 frozen histogram bins. ok is false for u < 0, which must be
// discarded rather than binned.
func MapBin(u float64) (bin int, ok bool) {
	if u < 0 {
		return 0, false
	}
	if u < 10 {
		return int(u * 10), true
	}
	if u >= 200 {
		return signal.GSBinCount - 1, true
	}
	b := 100 + int((math.Log10(u)-1)/log10_200Minus1*130)
	if b < 100 {
		b = 100
	}
	if b > signal.GSBinCount-1 {
		b = signal.GSBinCount - 1
	}
	return b, true
}

// Histogram accumulates one channel's 230-bin grey-scale density over
// successive 15s windows, gated entirely by the device's own counter
// rather than a local clock: emission happens only on a GSCounterFlush
// byte, and a GSCounterIgnore byte contributes nothing at all.
type Histogram struct {
	bins     [signal.GSBinCount]uint8
	startUs  timeline.Micros
	haveSpan bool
	endUs    timeline.Micros
	quality  signal.Quality
}

// NewHistogram returns a fresh, empty accumulator.
func NewHistogram() *Histogram { return &Histogram{} }

func (h *Histogram) bump(bin int) {
	if h.bins[bin] < gsBinSaturation {
		h.bins[bin]++
	}
}

// Accept folds one aEEG (min,max) pair into the accumulator according to
// the device counter byte. A Missing-flagged pair does not increment any
// bin but still contributes its quality bits. counter==GSCounterFlush
// returns the completed frame (a value copy, safe for the caller to keep)
// and resets internal state; counter==GSCounterIgnore is a no-op besides
// bookkeeping; any other value accumulates without emitting.
func (h *Histogram) Accept(win signal.AEEGWindow, counter uint8, tsUs timeline.Micros) (signal.GSFrame, bool) {
	if counter == GSCounterIgnore {
		return signal.GSFrame{}, false
	}

	if !h.haveSpan {
		h.startUs = tsUs
		h.haveSpan = true
	}
	h.endUs = tsUs
	h.quality = h.quality.Merge(win.Quality)

	if !win.Quality.Has(signal.QMissing) {
		if bin, ok := MapBin(win.MinUv); ok {
			h.bump(bin)
		}
		if bin, ok := MapBin(win.MaxUv); ok {
			h.bump(bin)
		}
	}

	if counter != GSCounterFlush {
		return signal.GSFrame{}, false
	}

	frame := signal.GSFrame{
		Bins:    h.bins,
		StartUs: h.startUs,
		EndUs:   h.endUs,
		Quality: h.quality,
	}
	h.bins = [signal.GSBinCount]uint8{}
	h.haveSpan = false
	h.quality = signal.QNormal
	return frame, true
}
