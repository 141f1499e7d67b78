package playback

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dbehnke/neomonitor/pkg/buffer"
	"github.com/dbehnke/neomonitor/pkg/dsp"
	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

func testLog() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

type fakeVideo struct {
	mu       sync.Mutex
	lastSeek timeline.Micros
	seeks    int
}

func (f *fakeVideo) SeekToTs(us timeline.Micros) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeek = us
	f.seeks++
	return true
}
func (f *fakeVideo) OnFrameReady(cb func(ts timeline.Micros)) {}

func newTestEEGEmitter(onSample func(signal.EEGSample)) *EEGEmitter {
	ring := buffer.NewRing(64, tsOfEEG)
	for i := 0; i < 40; i++ {
		var s signal.EEGSample
		s.TsUs = timeline.Micros(i * 6250)
		ring.Append(s)
	}
	return NewEEGEmitter(ring, dsp.FilterSet{Notch: dsp.NotchOff, HPF: dsp.HPFOff, LPF: dsp.LPFOff}, onSample)
}

func TestCoordinator_StartsPausedAndTransitionsOnPlay(t *testing.T) {
	clock := timeline.NewPlaybackClock()
	eeg := newTestEEGEmitter(func(signal.EEGSample) {})
	c := NewCoordinator(clock, eeg, nil, nil, testLog())

	if c.State() != StatePaused {
		t.Fatalf("expected initial state Paused, got %v", c.State())
	}
	c.Play()
	if c.State() != StatePlaying {
		t.Fatalf("expected Playing after Play, got %v", c.State())
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if c.State() != StatePaused {
		t.Fatalf("expected Paused after Stop, got %v", c.State())
	}
}

func TestCoordinator_SeekRepositionsEmittersAndVideo(t *testing.T) {
	clock := timeline.NewPlaybackClock()
	video := &fakeVideo{}
	var mu sync.Mutex
	var emitted []timeline.Micros
	eeg := newTestEEGEmitter(func(s signal.EEGSample) {
		mu.Lock()
		emitted = append(emitted, s.TsUs)
		mu.Unlock()
	})
	c := NewCoordinator(clock, eeg, nil, video, testLog())

	c.SeekTo(100_000)
	if video.seeks != 1 || video.lastSeek != 100_000 {
		t.Fatalf("expected video collaborator seeked to 100000, got %+v", video)
	}
	if c.State() != StatePaused {
		t.Fatalf("expected seek to restore the prior Paused state, got %v", c.State())
	}

	c.Play()
	time.Sleep(30 * time.Millisecond)
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	for _, ts := range emitted {
		if ts < 100_000 {
			t.Errorf("expected no emissions before the seek position, got ts=%d", ts)
		}
	}
}

func TestCoordinator_SetRateRejectsNonPositive(t *testing.T) {
	clock := timeline.NewPlaybackClock()
	c := NewCoordinator(clock, nil, nil, nil, testLog())
	if err := c.SetRate(0); err == nil {
		t.Error("expected error for rate=0")
	}
	if err := c.SetRate(-2); err == nil {
		t.Error("expected error for negative rate")
	}
	if err := c.SetRate(2.0); err != nil {
		t.Errorf("expected rate=2.0 to be accepted, got %v", err)
	}
}

func TestCoordinator_StopBoundedByTwoSeconds(t *testing.T) {
	clock := timeline.NewPlaybackClock()
	eeg := newTestEEGEmitter(func(signal.EEGSample) {})
	c := NewCoordinator(clock, eeg, nil, nil, testLog())
	c.Play()

	start := time.Now()
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected Stop to return well within the 2s cancellation bound, took %v", elapsed)
	}
}
