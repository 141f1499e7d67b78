package storage

import "gorm.io/gorm"

// Reader is a read-only handle. Any number of Readers may be opened
// against the same database file concurrently with the Writer; WAL mode
// gives each its own snapshot (spec.md §4.6 "Reader").
type Reader struct {
	db *gorm.DB
}

// NewReader builds a read-only handle from an open DB.
func NewReader(db *DB) *Reader { return &Reader{db: db.gdb} }

// ChunkMeta is one range-query result. RangeQuery loads each chunk's blob
// together with its metadata, so a query holds every matching payload in
// memory at once; Blob does not fetch lazily.
type ChunkMeta struct {
	Chunk
}

// Blob returns this chunk's raw bytes, already loaded by RangeQuery.
func (r *Reader) Blob(c ChunkMeta) ([]byte, error) {
	return c.BlobRef, nil
}

// RangeQuery returns the metadata of every chunk of dataType in
// sessionID overlapping [startUs, endUs], oldest first.
func (r *Reader) RangeQuery(sessionID string, dataType DataType, startUs, endUs int64) ([]ChunkMeta, error) {
	var chunks []Chunk
	err := r.db.Where("session_id = ? AND data_type = ? AND start_us <= ? AND end_us >= ?",
		sessionID, dataType, endUs, startUs).
		Order("start_us ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	out := make([]ChunkMeta, len(chunks))
	for i, c := range chunks {
		out[i] = ChunkMeta{Chunk: c}
	}
	return out, nil
}

// AEEGTrendRange returns the stored 1Hz aEEG trend rows for one channel
// over a time range.
func (r *Reader) AEEGTrendRange(sessionID string, channel int, startUs, endUs int64) ([]AEEGTrend, error) {
	var rows []AEEGTrend
	err := r.db.Where("session_id = ? AND channel = ? AND ts_us BETWEEN ? AND ?",
		sessionID, channel, startUs, endUs).
		Order("ts_us ASC").
		Find(&rows).Error
	return rows, err
}

// Session looks up a session by ID.
func (r *Reader) Session(sessionID string) (*Session, error) {
	var s Session
	if err := r.db.First(&s, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ActiveSessions returns every session currently marked active, used by
// the reaper's active-session guard.
func (r *Reader) ActiveSessions() (map[string]bool, error) {
	var ids []string
	if err := r.db.Model(&Session{}).Where("active = ?", true).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
