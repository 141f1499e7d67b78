package shell

import (
	"errors"
	"fmt"

	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dbehnke/neomonitor/pkg/storage"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// StartSession begins a new recording episode for patientID, upserting a
// Patient row if this is the first session for that identity. Only one
// session may be active at a time; starting a second is refused.
func (m *Monitor) StartSession(patientID string) (string, error) {
	if patientID == "" {
		return "", errors.New("patient id is required")
	}
	if sid, _ := m.activeSessionID.Load().(string); sid != "" {
		return "", fmt.Errorf("session %s is already active", sid)
	}

	if err := m.db.GORM().FirstOrCreate(&storage.Patient{ID: patientID, Label: patientID}, "id = ?", patientID).Error; err != nil {
		return "", fmt.Errorf("upsert patient: %w", err)
	}

	now := int64(m.clock.NowUs())
	sess, err := m.writer.StartSession(patientID, now)
	if err != nil {
		return "", err
	}
	m.activeSessionID.Store(sess.ID)
	m.log.Info("session started",
		logger.String("session_id", sess.ID),
		logger.String("patient_id", patientID))
	return sess.ID, nil
}

// StopSession ends the given session, flushing any pending storage
// chunks, and loads it for immediate review so a subsequent SeekTo/SetRate
// has something to act on.
func (m *Monitor) StopSession(sessionID string) error {
	cur, _ := m.activeSessionID.Load().(string)
	if cur != sessionID {
		return fmt.Errorf("session %s is not the active session", sessionID)
	}
	now := int64(m.clock.NowUs())
	if err := m.writer.StopSession(sessionID, now); err != nil {
		return err
	}
	m.activeSessionID.Store("")
	m.log.Info("session stopped", logger.String("session_id", sessionID))

	if err := m.loadSessionForReview(sessionID); err != nil {
		m.log.Warn("could not load stopped session for review",
			logger.String("session_id", sessionID), logger.Error(err))
	}
	return nil
}

// SeekTo repositions the review coordinator. It is only meaningful once a
// session has been stopped and auto-loaded for review; there is nothing to
// seek within while a live acquisition is running. spec.md's audit event
// catalog has no SEEK entry, so this issues no journal record (see
// DESIGN.md).
func (m *Monitor) SeekTo(us timeline.Micros) error {
	m.reviewMu.Lock()
	defer m.reviewMu.Unlock()
	if m.review == nil {
		return errors.New("no session loaded for review")
	}
	m.review.SeekTo(us)
	return nil
}

// SetRate changes the review coordinator's playback rate. No audit event
// exists for rate changes (see DESIGN.md); the call is rejected outright
// for rate <= 0 by the underlying PlaybackClock.
func (m *Monitor) SetRate(rate float64) error {
	m.reviewMu.Lock()
	defer m.reviewMu.Unlock()
	if m.review == nil {
		return errors.New("no session loaded for review")
	}
	return m.review.SetRate(rate)
}

// ChangeFilter updates the live acquisition path's shared notch/HPF/LPF
// selection across every channel and records a FILTER_CHANGE audit event.
// A session does not need to be active; the new selection takes effect on
// the next filtered sample. Re-filtering a loaded review session requires
// reloading it (prescan is computed once at load time), a known
// limitation recorded in DESIGN.md.
func (m *Monitor) ChangeFilter(kind string, cutoff string) error {
	newCutoff, err := parseCutoff(kind, cutoff)
	if err != nil {
		return err
	}

	m.filterMu.Lock()
	old := m.filters
	m.filters = applyFilter(m.filters, kind, newCutoff)
	newSet := m.filters
	m.filterMu.Unlock()

	for c := range m.eegLive {
		m.eegLive[c].SetFilters(newSet)
	}

	oldVal := fmt.Sprintf("%s=%d", kind, cutoffOfKind(old, kind))
	newVal := fmt.Sprintf("%s=%d", kind, newCutoff)
	return m.recordAudit(storage.EventFilterChange, &oldVal, &newVal, "")
}

// ChangeGain updates one channel's display scale and records a
// GAIN_CHANGE audit event. collab.RenderSnapshot's Viewport models a
// single shared gain (not one per channel), so only channel 0's gain is
// reflected in the pushed Viewport; per-channel gains are tracked here for
// a future multi-viewport renderer (see DESIGN.md).
func (m *Monitor) ChangeGain(channel int, gainUvPerPx float64) error {
	if channel < 0 || channel >= len(m.gains) {
		return fmt.Errorf("channel %d out of range [0,%d)", channel, len(m.gains))
	}
	if gainUvPerPx <= 0 {
		return fmt.Errorf("gain must be positive, got %g", gainUvPerPx)
	}

	m.gainMu.Lock()
	old := m.gains[channel]
	m.gains[channel] = gainUvPerPx
	m.gainMu.Unlock()

	oldVal := fmt.Sprintf("ch%d=%g", channel, old)
	newVal := fmt.Sprintf("ch%d=%g", channel, gainUvPerPx)
	return m.recordAudit(storage.EventGainChange, &oldVal, &newVal, "")
}

// recordAudit appends one journal entry tagged with the active session, if
// any.
func (m *Monitor) recordAudit(et storage.EventType, oldValue, newValue *string, details string) error {
	var sid *string
	if id, _ := m.activeSessionID.Load().(string); id != "" {
		sid = &id
	}
	return m.journal.Append(et, sid, oldValue, newValue, details, int64(m.clock.NowUs()))
}
