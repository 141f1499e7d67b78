// Package timeline provides the monotonic microsecond clock used to
// timestamp every sample, frame, event, and chunk boundary, plus the
// wall-clock anchor used to render those timestamps as civil time.
package timeline

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// Micros is a signed 64-bit microsecond timestamp on the monotonic source.
// It denotes sample-centre time, never packet-arrival time, whenever an
// explicit sample rate is known.
type Micros int64

// Clock is a monotonic microsecond source anchored to a wall-clock instant
// captured once at process start. A Clock is safe for concurrent use.
type Clock struct {
	start   time.Time // monotonic reference, captured with time.Now()
	wallUTC time.Time // civil-time anchor paired with start
}

// New captures the anchor pair for a new monitoring session.
func New() *Clock {
	now := time.Now()
	return &Clock{start: now, wallUTC: now.UTC()}
}

// NewAt builds a Clock anchored to an explicit instant. Used by tests and by
// playback to replay a session's original timeline.
func NewAt(start time.Time) *Clock {
	return &Clock{start: start, wallUTC: start.UTC()}
}

// NowUs returns microseconds elapsed since the clock's anchor.
func (c *Clock) NowUs() Micros {
	return Micros(time.Since(c.start).Microseconds())
}

// ToUTC maps a monotonic microsecond offset to civil (UTC) time using the
// single anchor pair captured at start.
func (c *Clock) ToUTC(us Micros) time.Time {
	return c.wallUTC.Add(time.Duration(us) * time.Microsecond)
}

// ErrInvalidRate is returned by SetRate when rate <= 0.
type ErrInvalidRate struct {
	Rate float64
}

func (e *ErrInvalidRate) Error() string {
	return fmt.Sprintf("invalid playback rate %g: must be > 0", e.Rate)
}

// PlaybackClock is a virtual monotonic clock parameterised by a rate
// (1.0 == real-time) and a pause/run flag. It is safe for concurrent use:
// set_rate/seek_to/pause/play are writers, current_us is a frequent reader.
type PlaybackClock struct {
	rate    atomic.Uint64 // math.Float64bits(rate)
	running atomic.Bool

	// wallAnchor is the real time at which the clock was last (re)started
	// or had its rate changed; posAnchor is the virtual position at that
	// instant. current_us() = posAnchor + (wall_elapsed * rate) while
	// running, else posAnchor alone.
	wallAnchor atomic.Int64 // unix nanos
	posAnchor  atomic.Int64 // Micros
}

// NewPlaybackClock creates a paused playback clock positioned at us=0 with
// rate 1.0.
func NewPlaybackClock() *PlaybackClock {
	pc := &PlaybackClock{}
	pc.rate.Store(math.Float64bits(1.0))
	pc.wallAnchor.Store(time.Now().UnixNano())
	return pc
}

// rateValue reads the current rate as a float64.
func (pc *PlaybackClock) rateValue() float64 {
	return math.Float64frombits(pc.rate.Load())
}

// current_us returns anchor + (wall_elapsed * rate) while running, else the
// last paused position.
func (pc *PlaybackClock) CurrentUs() Micros {
	pos := Micros(pc.posAnchor.Load())
	if !pc.running.Load() {
		return pos
	}
	wallThen := time.Unix(0, pc.wallAnchor.Load())
	elapsed := time.Since(wallThen)
	delta := Micros(float64(elapsed.Microseconds()) * pc.rateValue())
	return pos + delta
}

// Play starts the virtual clock running from its current position.
func (pc *PlaybackClock) Play() {
	pc.posAnchor.Store(int64(pc.CurrentUs()))
	pc.wallAnchor.Store(time.Now().UnixNano())
	pc.running.Store(true)
}

// Pause freezes the clock at its current position.
func (pc *PlaybackClock) Pause() {
	pos := pc.CurrentUs()
	pc.running.Store(false)
	pc.posAnchor.Store(int64(pos))
}

// IsRunning reports whether the clock is currently advancing.
func (pc *PlaybackClock) IsRunning() bool {
	return pc.running.Load()
}

// SeekTo sets position instantaneously, preserving the running state.
func (pc *PlaybackClock) SeekTo(us Micros) {
	pc.posAnchor.Store(int64(us))
	pc.wallAnchor.Store(time.Now().UnixNano())
}

// SetRate changes the virtual clock rate. Fails with ErrInvalidRate when
// rate <= 0; the clock's prior rate and position are left untouched.
func (pc *PlaybackClock) SetRate(rate float64) error {
	if rate <= 0 {
		return &ErrInvalidRate{Rate: rate}
	}
	// Re-anchor at the current position/time so the rate change takes
	// effect from "now" rather than retroactively.
	pos := pc.CurrentUs()
	pc.posAnchor.Store(int64(pos))
	pc.wallAnchor.Store(time.Now().UnixNano())
	pc.rate.Store(math.Float64bits(rate))
	return nil
}

// Rate returns the current playback rate.
func (pc *PlaybackClock) Rate() float64 {
	return pc.rateValue()
}
