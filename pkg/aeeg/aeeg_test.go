package aeeg

import (
	"testing"

	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

const ivlUs = timeline.Micros(6250) // 160Hz

func feedConstant(c *Channel, x float64, samples int) []signal.AEEGWindow {
	var wins []signal.AEEGWindow
	ts := timeline.Micros(0)
	for i := 0; i < samples; i++ {
		if w, ok := c.Process(x, ts, signal.QNormal); ok {
			wins = append(wins, w)
		}
		ts += ivlUs
	}
	return wins
}

func TestChannel_EmitsOncePerSecond(t *testing.T) {
	c := NewChannel()
	wins := feedConstant(c, 1.0, samplesPerHalfSecond*2*5)
	if len(wins) != 5 {
		t.Fatalf("expected 5 one-second windows from 5s of input, got %d", len(wins))
	}
}

func TestChannel_InvalidBeforeWarmupValidAfter(t *testing.T) {
	c := NewChannel()
	// 16 one-second windows = 32 half-second blocks; a window is valid once
	// both of its blocks have 30 raw peaks behind them (blocks 31,32).
	wins := feedConstant(c, 1.0, samplesPerHalfSecond*2*16)
	if len(wins) != 16 {
		t.Fatalf("expected 16 windows, got %d", len(wins))
	}
	if wins[14].Valid {
		t.Error("expected window 15 (blocks 29,30) to still be invalid")
	}
	if !wins[15].Valid {
		t.Error("expected window 16 (blocks 31,32) to be valid")
	}
}

func TestChannel_CenterTimestampIsWindowMidpoint(t *testing.T) {
	c := NewChannel()
	wins := feedConstant(c, 1.0, samplesPerHalfSecond*2)
	if len(wins) != 1 {
		t.Fatalf("expected exactly one window, got %d", len(wins))
	}
	if wins[0].CenterUs != 500_000 {
		t.Errorf("expected center timestamp of 500000us for a window starting at t0=0, got %v", wins[0].CenterUs)
	}
}

func TestChannel_MissingDoesNotMovePeakButPropagatesQuality(t *testing.T) {
	c := NewChannel()
	ts := timeline.Micros(0)
	var last signal.AEEGWindow
	for i := 0; i < samplesPerHalfSecond*2; i++ {
		q := signal.QNormal
		if i == 5 {
			q = signal.QMissing
		}
		if w, ok := c.Process(1.0, ts, q); ok {
			last = w
		}
		ts += ivlUs
	}
	if !last.Quality.Has(signal.QMissing) {
		t.Error("expected Missing flag from a constituent sample to propagate to the emitted window")
	}
}

func TestChannel_MinMaxOrderedRegardlessOfTrend(t *testing.T) {
	c := NewChannel()
	ts := timeline.Micros(0)
	var win signal.AEEGWindow
	for i := 0; i < samplesPerHalfSecond; i++ {
		c.Process(2.0, ts, signal.QNormal)
		ts += ivlUs
	}
	for i := 0; i < samplesPerHalfSecond; i++ {
		w, ok := c.Process(0.1, ts, signal.QNormal)
		if ok {
			win = w
		}
		ts += ivlUs
	}
	if win.MinUv > win.MaxUv {
		t.Errorf("expected MinUv <= MaxUv, got min=%v max=%v", win.MinUv, win.MaxUv)
	}
}
