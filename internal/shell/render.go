package shell

import (
	"github.com/dbehnke/neomonitor/pkg/collab"
	"github.com/dbehnke/neomonitor/pkg/signal"
)

// renderDPI is the fixed display density a RenderSnapshot is computed for;
// the dashboard is the only consumer and always renders at this density.
const renderDPI = 96.0

const renderViewportWidthPx = 1024
const renderViewportHeightPx = 256

// primaryGain returns channel 0's display gain, the value carried by a
// RenderSnapshot's single shared Viewport (see ChangeGain's doc comment).
func (m *Monitor) primaryGain() float64 {
	m.gainMu.RLock()
	defer m.gainMu.RUnlock()
	return m.gains[0]
}

// eegSampleToSnapshot wraps one EEG sample as a single-sample
// RenderSnapshot. It is used both by the live acquisition path (pushed at
// arrival rate) and by review playback (pushed at the virtual clock's
// pace).
func eegSampleToSnapshot(s signal.EEGSample, gainUvPerPx float64) collab.RenderSnapshot {
	channels := make([][]float64, signal.EEGChannels)
	quality := make([][]uint8, signal.EEGChannels)
	for c := 0; c < signal.EEGChannels; c++ {
		channels[c] = []float64{s.Channels[c]}
		quality[c] = []uint8{uint8(s.Quality)}
	}
	return collab.RenderSnapshot{
		Channels:   channels,
		Quality:    quality,
		StartUs:    s.TsUs,
		IntervalUs: 0,
		Viewport: collab.Viewport{
			WidthPx:     renderViewportWidthPx,
			HeightPx:    renderViewportHeightPx,
			GainUvPerPx: gainUvPerPx,
		},
		DPI: renderDPI,
	}
}
