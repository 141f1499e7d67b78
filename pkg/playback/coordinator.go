// Package playback replays a recorded session through the same DSP/UI
// surfaces the live path uses, driven by a virtual clock rather than
// wall-clock serial arrival (spec.md §4.8). It is modeled on the
// teacher's goroutine-per-responsibility server lifecycle: one loop
// drives emission, a second watches for drift, both observe a shared
// stop channel and are bounded to a 2s join.
package playback

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbehnke/neomonitor/pkg/collab"
	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// State is one of the three playback coordinator states (spec.md §4.8).
type State int

const (
	StatePaused State = iota
	StatePlaying
	StateSeeking
)

func (s State) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateSeeking:
		return "seeking"
	default:
		return "unknown"
	}
}

// DriftToleranceUs is the fixed sync budget shared by the EEG drift
// monitor and video synchronisation (spec.md §4.8, §6).
const DriftToleranceUs timeline.Micros = 100_000

const driftTickInterval = 50 * time.Millisecond // ~20 Hz
const emitTickInterval = 6 * time.Millisecond

// cancelBound is the maximum time Pause/Stop may take to observe the stop
// flag (spec.md §5 "Cancellation").
const cancelBound = 2 * time.Second

// Coordinator drives one session's EEG and NIRS emitters from a single
// virtual clock. Paused is the initial state after construction.
type Coordinator struct {
	mu    sync.Mutex
	state State
	clock *timeline.PlaybackClock

	eeg   *EEGEmitter
	nirs  *NIRSEmitter
	video collab.VideoCollaborator

	lastEEGUs atomic.Int64
	haveEEGTs atomic.Bool

	log *logger.Logger

	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewCoordinator builds a Coordinator in the Paused state. eeg, nirs, and
// video may each be nil if that stream isn't attached to this session.
func NewCoordinator(clock *timeline.PlaybackClock, eeg *EEGEmitter, nirs *NIRSEmitter, video collab.VideoCollaborator, log *logger.Logger) *Coordinator {
	return &Coordinator{
		state: StatePaused,
		clock: clock,
		eeg:   eeg,
		nirs:  nirs,
		video: video,
		log:   log.WithComponent("playback.coordinator"),
	}
}

// State reports the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Play starts the virtual clock and every attached stream emitter. The
// emission and drift-monitor loops are started on first Play and persist
// across subsequent Pause/Play cycles.
func (c *Coordinator) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePlaying {
		return
	}

	pos := c.clock.CurrentUs()
	if c.eeg != nil {
		c.eeg.Reset(pos)
	}
	if c.nirs != nil {
		c.nirs.Reset(pos)
	}
	c.clock.Play()
	c.state = StatePlaying

	if !c.running {
		c.running = true
		c.stop = make(chan struct{})
		c.wg.Add(2)
		go c.emitLoop()
		go c.driftLoop()
	}
}

// Pause freezes the clock; the video collaborator is left alone so it
// keeps showing its last delivered frame.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock.Pause()
	c.state = StatePaused
}

// SeekTo transitions to Seeking, repositions every emitter and the video
// collaborator to us, then returns to whichever state preceded the seek.
func (c *Coordinator) SeekTo(us timeline.Micros) {
	c.mu.Lock()
	prev := c.state
	c.state = StateSeeking
	c.mu.Unlock()

	c.clock.SeekTo(us)
	if c.eeg != nil {
		c.eeg.Seek(us)
	}
	if c.nirs != nil {
		c.nirs.Seek(us)
	}
	if c.video != nil {
		c.video.SeekToTs(us)
	}
	c.haveEEGTs.Store(false)

	c.mu.Lock()
	c.state = prev
	c.mu.Unlock()
}

// SetRate changes the virtual clock's rate. Rejected with ErrInvalidRate
// for rate <= 0 (spec.md §4.1).
func (c *Coordinator) SetRate(rate float64) error {
	return c.clock.SetRate(rate)
}

// ObserveEEGTimestamp feeds the drift monitor with the most recent EEG
// sample timestamp delivered by the emitter's onSample callback. Callers
// wire this as (part of) the EEGEmitter's onSample.
func (c *Coordinator) ObserveEEGTimestamp(ts timeline.Micros) {
	c.lastEEGUs.Store(int64(ts))
	c.haveEEGTs.Store(true)
}

// Stop halts the emission and drift loops and blocks until they exit or
// the 2s cancellation bound elapses.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	close(c.stop)
	c.state = StatePaused
	c.clock.Pause()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(cancelBound):
		return errors.New("playback coordinator: emitters did not stop within cancellation bound")
	}
}

func (c *Coordinator) emitLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(emitTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}
		if c.State() != StatePlaying {
			continue
		}
		now := c.clock.CurrentUs()
		if c.eeg != nil {
			c.eeg.Tick(now)
		}
		if c.nirs != nil {
			c.nirs.Tick(now)
		}
	}
}

// driftLoop compares the clock's position to the last observed EEG
// timestamp roughly 20 times a second, logging a warning whenever the two
// diverge beyond DriftToleranceUs (spec.md §4.8 "Drift monitor").
func (c *Coordinator) driftLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(driftTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}
		if c.State() != StatePlaying || !c.haveEEGTs.Load() {
			continue
		}
		now := c.clock.CurrentUs()
		last := timeline.Micros(c.lastEEGUs.Load())
		drift := now - last
		if drift < 0 {
			drift = -drift
		}
		if drift > DriftToleranceUs {
			c.log.Warn("playback sync drift exceeded tolerance",
				logger.Int64("current_us", int64(now)),
				logger.Int64("last_eeg_us", int64(last)),
				logger.Int64("drift_us", int64(drift)))
		}
	}
}
