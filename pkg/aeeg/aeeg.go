// Package aeeg implements the amplitude-integrated EEG trend engine and its
// grey-scale density histogram (spec.md §4.5): rectify -> 0.5s peak-hold ->
// 15s moving average -> 1Hz min/max emission, plus the 230-bin semi-log
// histogram gated by the device's own flush counter.
package aeeg

import (
	"github.com/dbehnke/neomonitor/pkg/dsp"
	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

const (
	samplesPerHalfSecond = 80 // 0.5s @ 160Hz
	peakWindowSize       = 30 // 15s / 0.5s moving-average window
	warmupRawPeaks       = peakWindowSize
)

// Channel runs the aEEG pipeline for a single EEG channel: a fixed
// HPF2Hz+LPF15Hz band-pass, half-wave rectification, 0.5s peak-hold, a
// 30-peak (15s) trailing moving average, and 1Hz (min,max) emission of the
// two most recent smoothed peaks. One Channel is owned by exactly one EEG
// channel.
type Channel struct {
	band *dsp.Cascade

	blockN    int
	blockPeak float64
	blockQ    signal.Quality

	rawPeaks     [peakWindowSize]float64
	rawCount     int // total raw peaks ever seen
	ringFilled   int
	ringHead     int
	ringSum      float64
	smoothedBuf  [2]float64
	smoothedQ    [2]signal.Quality
	smoothedWarm [2]bool
	smoothedN    int

	windowStart timeline.Micros
	haveWindow  bool
}

// NewChannel builds a fresh, cold channel.
func NewChannel() *Channel {
	return &Channel{band: dsp.NewCascade(dsp.CoeffsFor(dsp.AEEGBand))}
}

// Process feeds one EEG sample (the raw scaled microvolt value, not yet
// band-passed) through the pipeline. It returns a completed
// AEEGWindow whenever a 1Hz output is ready; ok is false otherwise. A
// Missing-flagged sample does not move the peak-hold accumulator but its
// quality bits are still folded into whatever window it falls inside.
func (c *Channel) Process(x float64, tsUs timeline.Micros, q signal.Quality) (signal.AEEGWindow, bool) {
	if !c.haveWindow {
		c.windowStart = tsUs
		c.haveWindow = true
	}

	y := c.band.Process(x)
	rect := y
	if rect < 0 {
		rect = -rect
	}

	c.blockQ = c.blockQ.Merge(q)
	if !q.Has(signal.QMissing) && rect > c.blockPeak {
		c.blockPeak = rect
	}
	c.blockN++

	if c.blockN < samplesPerHalfSecond {
		return signal.AEEGWindow{}, false
	}

	smoothed, smoothedQ, ready := c.finishBlock()
	c.blockN = 0
	c.blockPeak = 0
	c.blockQ = signal.QNormal

	c.smoothedBuf[c.smoothedN] = smoothed
	c.smoothedQ[c.smoothedN] = smoothedQ
	c.smoothedWarm[c.smoothedN] = ready
	c.smoothedN++
	if c.smoothedN < 2 {
		return signal.AEEGWindow{}, false
	}

	lo, hi := c.smoothedBuf[0], c.smoothedBuf[1]
	if hi < lo {
		lo, hi = hi, lo
	}
	outQ := c.smoothedQ[0].Merge(c.smoothedQ[1])
	center := c.windowStart + 500_000

	out := signal.AEEGWindow{
		MinUv:    lo,
		MaxUv:    hi,
		CenterUs: center,
		Valid:    c.smoothedWarm[0] && c.smoothedWarm[1],
		Quality:  outQ,
	}
	c.smoothedN = 0
	c.haveWindow = false
	return out, true
}

// finishBlock rolls the just-completed 0.5s peak into the 30-peak moving
// average and returns the smoothed value plus whether warm-up has
// completed (both smoothed values composing the next 1Hz output must have
// passed warm-up for that output to be valid).
func (c *Channel) finishBlock() (smoothed float64, q signal.Quality, warm bool) {
	if c.ringFilled < peakWindowSize {
		c.ringFilled++
	} else {
		c.ringSum -= c.rawPeaks[c.ringHead]
	}
	c.rawPeaks[c.ringHead] = c.blockPeak
	c.ringSum += c.blockPeak
	c.ringHead = (c.ringHead + 1) % peakWindowSize
	c.rawCount++

	smoothed = c.ringSum / float64(c.ringFilled)
	warm = c.rawCount >= warmupRawPeaks
	return smoothed, c.blockQ, warm
}
