// Package audit provides the append-only event journal of spec.md §4.7:
// every MONITORING_START/STOP, DEVICE_LOST/RESTORED, FILTER_CHANGE,
// GAIN_CHANGE, CRC_ERROR, SERIAL_ERROR, SCREENSHOT, PRINT, USB_EXPORT,
// STORAGE_CLEANUP, and CHANNEL_MAP_CHANGE passes through here. No method
// on Journal ever updates or deletes a row; the only mutation is Append.
package audit

import (
	"github.com/dbehnke/neomonitor/pkg/storage"
	"gorm.io/gorm"
)

// Journal is a read/append repository over the events table, following
// the teacher's repository pattern (construct once per *gorm.DB, one
// method per query shape) but with no delete or update surface at all.
type Journal struct {
	db *gorm.DB
}

// New wraps an already-migrated storage database.
func New(db *storage.DB) *Journal {
	return &Journal{db: db.GORM()}
}

// Append records one audit event. sessionID, oldValue, and newValue are
// optional context; detailsJSON is a caller-supplied opaque JSON blob for
// event-specific data (e.g. which filter cutoff changed to what).
func (j *Journal) Append(et storage.EventType, sessionID *string, oldValue, newValue *string, detailsJSON string, tsUs int64) error {
	ev := &storage.Event{
		TsUs:        tsUs,
		EventType:   et,
		SessionID:   sessionID,
		OldValue:    oldValue,
		NewValue:    newValue,
		DetailsJSON: detailsJSON,
	}
	return j.db.Create(ev).Error
}

// Recent returns the most recent N events across all sessions, newest
// first.
func (j *Journal) Recent(limit int) ([]storage.Event, error) {
	var events []storage.Event
	err := j.db.Order("ts_us DESC").Limit(limit).Find(&events).Error
	return events, err
}

// BySession returns every event tied to a session, oldest first.
func (j *Journal) BySession(sessionID string) ([]storage.Event, error) {
	var events []storage.Event
	err := j.db.Where("session_id = ?", sessionID).Order("ts_us ASC").Find(&events).Error
	return events, err
}

// ByType returns the most recent N events of a given type.
func (j *Journal) ByType(et storage.EventType, limit int) ([]storage.Event, error) {
	var events []storage.Event
	err := j.db.Where("event_type = ?", et).Order("ts_us DESC").Limit(limit).Find(&events).Error
	return events, err
}

// InRange returns every event with ts_us in [startUs, endUs], oldest
// first.
func (j *Journal) InRange(startUs, endUs int64) ([]storage.Event, error) {
	var events []storage.Event
	err := j.db.Where("ts_us BETWEEN ? AND ?", startUs, endUs).Order("ts_us ASC").Find(&events).Error
	return events, err
}
