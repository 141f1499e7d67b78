// Package collab declares the contracts external collaborators implement
// against the monitor (spec.md §6 "Collaborator contracts"). It holds
// interfaces only: a rendering surface that consumes push snapshots, a
// video subsystem kept in lock-step with playback, and the operations a
// UI or CLI may invoke. No implementation lives here; internal/shell and
// pkg/web implement and wire these contracts.
package collab

import "github.com/dbehnke/neomonitor/pkg/timeline"

// RenderSnapshot is handed to a Renderer at up to 60 Hz. It is valid for
// one frame only: no back-pointer into internal state, no retained
// reference past the call that delivered it.
type RenderSnapshot struct {
	Channels   [][]float64 // one slice per physical channel
	Quality    [][]uint8   // parallel per-sample quality bytes
	StartUs    timeline.Micros
	IntervalUs timeline.Micros
	Viewport   Viewport
	DPI        float64
}

// Viewport describes the visible window a Renderer is asked to draw.
type Viewport struct {
	WidthPx, HeightPx int
	GainUvPerPx       float64
}

// Renderer consumes RenderSnapshot pushes from the DSP/playback path. A
// Renderer implementation must not retain a snapshot's slices past the
// call; the coordinator is free to reuse or overwrite backing storage on
// the next push.
type Renderer interface {
	Render(snap RenderSnapshot)
}

// VideoCollaborator keeps a bedside camera feed in lock-step with
// playback. SeekToTs repositions to the nearest frame at or before us and
// reports whether a frame was found. OnFrameReady registers the callback
// invoked once per delivered frame; the playback drift monitor uses the
// same ±100ms budget against this stream as it does against EEG.
type VideoCollaborator interface {
	SeekToTs(us timeline.Micros) bool
	OnFrameReady(cb func(ts timeline.Micros))
}

// Controller is the set of operations a UI or CLI may invoke against a
// running monitor. StartSession, StopSession, ChangeFilter and ChangeGain
// each issue an audit record; SeekTo and SetRate issue none, as the audit
// event catalog has no seek or rate entry. Callers never reach into the
// monitor's internals directly.
type Controller interface {
	StartSession(patientID string) (sessionID string, err error)
	StopSession(sessionID string) error
	SeekTo(us timeline.Micros) error
	SetRate(rate float64) error
	ChangeFilter(kind string, cutoff string) error
	ChangeGain(channel int, gainUvPerPx float64) error
}
