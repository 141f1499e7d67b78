package playback

import (
	"github.com/dbehnke/neomonitor/pkg/buffer"
	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// NIRSEmitter replays a session's NIRS ring at the virtual clock's pace.
// NIRS channels are device percentages, not a DSP output, so there is no
// filtfilt pre-pass: the emitter always reads straight from the live ring
// (spec.md §4.8 "seek_to": "NIRS: same").
type NIRSEmitter struct {
	core *emitterCore[signal.NIRSSample]
}

func nirsMissingSample(ts timeline.Micros) signal.NIRSSample {
	var s signal.NIRSSample
	s.TsUs = ts
	for c := range s.ChQuality {
		s.ChQuality[c] = signal.QMissing
	}
	s.FrameFlags = signal.QMissing
	return s
}

// NewNIRSEmitter wraps a session's live NIRS ring.
func NewNIRSEmitter(ring *buffer.Ring[signal.NIRSSample], onSample func(signal.NIRSSample)) *NIRSEmitter {
	return &NIRSEmitter{
		core: newEmitterCore(ring, func(s signal.NIRSSample) timeline.Micros { return s.TsUs }, nirsMissingSample, onSample),
	}
}

// Reset repositions the emission cursor to us, called once per Play.
func (e *NIRSEmitter) Reset(us timeline.Micros) { e.core.seek(us) }

// Seek repositions the emission cursor.
func (e *NIRSEmitter) Seek(us timeline.Micros) { e.core.seek(us) }

// Tick fires every sample due by currentUs.
func (e *NIRSEmitter) Tick(currentUs timeline.Micros) { e.core.tick(currentUs) }
