package shell

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// mockNIRSInterval matches the device's real 1Hz cadence.
const mockNIRSInterval = time.Second

// runMockNIRS synthesizes one plausible six-channel NIRS sample per second
// for bench testing without the cerebral-oximetry device attached
// (config.NIRSModeMock). Channels 5-6 stay permanently absent, matching
// the real device's wiring.
func runMockNIRS(ctx context.Context, stop <-chan struct{}, handle func(*signal.NIRSSample, timeline.Micros)) {
	ticker := time.NewTicker(mockNIRSInterval)
	defer ticker.Stop()

	t0 := time.Now()
	var tick int
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
		}
		tick++
		handle(mockNIRSSample(tick), timeline.Micros(time.Since(t0).Microseconds()))
	}
}

func mockNIRSSample(tick int) *signal.NIRSSample {
	var s signal.NIRSSample
	for c := 0; c < 4; c++ {
		base := 65.0 + 3*math.Sin(float64(tick)/37.0+float64(c))
		jitter := rand.NormFloat64() * 0.4
		s.Channels[c] = signal.Some(base + jitter)
		s.ChQuality[c] = signal.QNormal
	}
	s.Channels[4] = signal.None()
	s.Channels[5] = signal.None()
	s.ChQuality[4] = signal.QLeadOff
	s.ChQuality[5] = signal.QLeadOff
	return &s
}
