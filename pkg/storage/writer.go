package storage

import (
	"fmt"
	"time"

	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChunkDuration is the nominal batching window; a chunk also flushes early
// once it reaches ChunkSizeCap bytes, whichever comes first.
const ChunkDuration = 10 * time.Minute

// ChunkSizeCap bounds a single chunk's blob size regardless of duration.
const ChunkSizeCap = 8 << 20 // 8 MiB

// StorageError wraps a failed storage operation: a chunk commit that
// failed past the writer's retry budget (spec.md §7), or a single failed
// session, event or reaper query. It always carries the underlying cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Writer is the single mutating-connection writer thread of spec.md §5:
// it owns the only path that widens a session's EndUs and batches samples
// into chunks. It does not detect a second concurrent Writer on the same
// database; see NewWriter.
type Writer struct {
	db     *gorm.DB
	log    *logger.Logger
	active bool // not set or read by any Writer method

	eeg  *pendingChunk[RawEEGSample]
	nirs *pendingChunk[RawNIRSSample]
}

type pendingChunk[T any] struct {
	sessionID string
	startUs   int64
	endUs     int64
	samples   []T
	approxLen int
}

// NewWriter builds a writer bound to db. Only one Writer per process
// should ever be constructed against a given database file; constructing
// a second is an InvariantViolation the caller must guard against
// externally (spec.md's writer connection is never shared).
func NewWriter(db *DB, log *logger.Logger) *Writer {
	return &Writer{db: db.gdb, log: log}
}

// StartSession opens a new active session for a patient and records a
// MONITORING_START audit event.
func (w *Writer) StartSession(patientID string, nowUs int64) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		PatientID: patientID,
		StartUs:   nowUs,
		EndUs:     nowUs,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := w.db.Create(s).Error; err != nil {
		return nil, &StorageError{Op: "start session", Err: err}
	}
	if err := w.recordEvent(EventMonitoringStart, &s.ID, nil, nil, nowUs); err != nil {
		return nil, err
	}
	return s, nil
}

// StopSession flushes any pending chunks, marks the session inactive, and
// records a MONITORING_STOP audit event.
func (w *Writer) StopSession(sessionID string, nowUs int64) error {
	if w.eeg != nil && w.eeg.sessionID == sessionID {
		if err := w.flushEEG(); err != nil {
			return err
		}
	}
	if w.nirs != nil && w.nirs.sessionID == sessionID {
		if err := w.flushNIRS(); err != nil {
			return err
		}
	}
	res := w.db.Model(&Session{}).Where("id = ?", sessionID).
		Updates(map[string]any{"active": false, "end_us": nowUs})
	if res.Error != nil {
		return &StorageError{Op: "stop session", Err: res.Error}
	}
	return w.recordEvent(EventMonitoringStop, &sessionID, nil, nil, nowUs)
}

// AppendEEG buffers one raw EEG sample for sessionID, flushing the pending
// chunk first if it belongs to a different session or has reached its
// duration/size cap.
func (w *Writer) AppendEEG(sessionID string, s RawEEGSample) error {
	if w.eeg != nil && w.eeg.sessionID != sessionID {
		if err := w.flushEEG(); err != nil {
			return err
		}
	}
	if w.eeg == nil {
		w.eeg = &pendingChunk[RawEEGSample]{sessionID: sessionID, startUs: s.TsUs}
	}
	w.eeg.samples = append(w.eeg.samples, s)
	w.eeg.endUs = s.TsUs
	w.eeg.approxLen += 8 + signal4ChLen
	if w.eeg.endUs-w.eeg.startUs >= ChunkDuration.Microseconds() || w.eeg.approxLen >= ChunkSizeCap {
		return w.flushEEG()
	}
	return nil
}

// AppendNIRS buffers one raw NIRS sample, with the same batching policy as
// AppendEEG.
func (w *Writer) AppendNIRS(sessionID string, s RawNIRSSample) error {
	if w.nirs != nil && w.nirs.sessionID != sessionID {
		if err := w.flushNIRS(); err != nil {
			return err
		}
	}
	if w.nirs == nil {
		w.nirs = &pendingChunk[RawNIRSSample]{sessionID: sessionID, startUs: s.TsUs}
	}
	w.nirs.samples = append(w.nirs.samples, s)
	w.nirs.endUs = s.TsUs
	w.nirs.approxLen += 8 + signal6ChLen
	if w.nirs.endUs-w.nirs.startUs >= ChunkDuration.Microseconds() || w.nirs.approxLen >= ChunkSizeCap {
		return w.flushNIRS()
	}
	return nil
}

const signal4ChLen = 4*8 + 1
const signal6ChLen = 6*(8+1+1) + 1

func (w *Writer) flushEEG() error {
	p := w.eeg
	w.eeg = nil
	if p == nil || len(p.samples) == 0 {
		return nil
	}
	blob := EncodeEEGChunk(p.startUs, p.endUs, 160.0, p.samples)
	return w.commitChunk(p.sessionID, DataTypeEEG, p.startUs, p.endUs, int64(len(p.samples)), blob)
}

func (w *Writer) flushNIRS() error {
	p := w.nirs
	w.nirs = nil
	if p == nil || len(p.samples) == 0 {
		return nil
	}
	blob := EncodeNIRSChunk(p.startUs, p.endUs, 1.0, p.samples)
	return w.commitChunk(p.sessionID, DataTypeNIRS, p.startUs, p.endUs, int64(len(p.samples)), blob)
}

// commitChunk opens a single (non-nested, per spec.md's InvariantViolation
// rule) transaction inserting both the chunk row and widening the owning
// session's EndUs, retrying transiently on failure before surfacing a
// StorageError.
func (w *Writer) commitChunk(sessionID string, dt DataType, startUs, endUs, sampleCount int64, blob []byte) error {
	chunk := &Chunk{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		DataType:    dt,
		StartUs:     startUs,
		EndUs:       endUs,
		BlobRef:     blob,
		Size:        int64(len(blob)),
		SampleCount: sampleCount,
		Checksum:    ChunkChecksum(blob),
		CreatedAt:   time.Now(),
	}

	var lastErr error
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		lastErr = w.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(chunk).Error; err != nil {
				return err
			}
			return tx.Model(&Session{}).Where("id = ? AND end_us < ?", sessionID, endUs).
				Update("end_us", endUs).Error
		})
		if lastErr == nil {
			return nil
		}
		w.log.Warn("chunk commit failed, retrying", logger.Int("attempt", attempt), logger.Error(lastErr))
		time.Sleep(backoff)
		backoff *= 2
	}
	return &StorageError{Op: "commit chunk", Err: lastErr}
}

func (w *Writer) recordEvent(et EventType, sessionID, oldValue, newValue *string, tsUs int64) error {
	ev := &Event{TsUs: tsUs, EventType: et, SessionID: sessionID, OldValue: oldValue, NewValue: newValue}
	if err := w.db.Create(ev).Error; err != nil {
		return &StorageError{Op: "record event " + string(et), Err: err}
	}
	return nil
}

// RecordEvent exposes audit-journal writes to the rest of the system
// (filter/gain changes, device-lost recovery, screenshot/print/export),
// matching the fixed event-type set of spec.md §4.7.
func (w *Writer) RecordEvent(et EventType, sessionID, oldValue, newValue *string, tsUs int64) error {
	return w.recordEvent(et, sessionID, oldValue, newValue, tsUs)
}
