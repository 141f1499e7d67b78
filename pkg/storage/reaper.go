package storage

import (
	"fmt"
	"time"

	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dustin/go-humanize"
	"gorm.io/gorm"
)

// DefaultCapBytes is the reaper's default total-size budget (300 GiB).
const DefaultCapBytes int64 = 300 << 30

// DefaultHighWaterFraction is the fraction of the cap that triggers
// eviction.
const DefaultHighWaterFraction = 0.80

// Reaper periodically evicts the oldest chunks once total storage exceeds
// its high-water mark, skipping any chunk whose session is still active.
// It never touches the writer's connection directly except through brief
// delete transactions, so it never blocks the writer path (spec.md §5).
type Reaper struct {
	db             *gorm.DB
	log            *logger.Logger
	capBytes       int64
	highWaterBytes int64
}

// NewReaper builds a reaper against db with the given total-size budget.
// A capBytes of 0 selects DefaultCapBytes.
func NewReaper(db *DB, log *logger.Logger, capBytes int64) *Reaper {
	if capBytes <= 0 {
		capBytes = DefaultCapBytes
	}
	return &Reaper{
		db:             db.gdb,
		log:            log,
		capBytes:       capBytes,
		highWaterBytes: int64(float64(capBytes) * DefaultHighWaterFraction),
	}
}

// totalBytes sums the Size column across every remaining chunk.
func (rp *Reaper) totalBytes() (int64, error) {
	var total int64
	err := rp.db.Model(&Chunk{}).Select("COALESCE(SUM(size), 0)").Scan(&total).Error
	return total, err
}

// RunOnce performs a single sweep: if total usage exceeds the high-water
// mark, deletes the oldest eligible chunks (oldest start_us first, skipping
// chunks belonging to an active session) until usage is back under the
// high-water mark or there is nothing left to reclaim. Returns the number
// of bytes freed.
func (rp *Reaper) RunOnce(nowUs int64) (int64, error) {
	total, err := rp.totalBytes()
	if err != nil {
		return 0, &StorageError{Op: "reaper: measure usage", Err: err}
	}
	if total <= rp.highWaterBytes {
		return 0, nil
	}

	active, err := rp.activeSessionSet()
	if err != nil {
		return 0, &StorageError{Op: "reaper: list active sessions", Err: err}
	}

	var freed int64
	for total > rp.highWaterBytes {
		var victim Chunk
		q := rp.db.Order("start_us ASC")
		if len(active) > 0 {
			q = q.Where("session_id NOT IN ?", active)
		}
		if err := q.First(&victim).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				break // nothing left to reclaim
			}
			return freed, &StorageError{Op: "reaper: select victim", Err: err}
		}

		var patientID string
		rp.db.Model(&Session{}).Select("patient_id").Where("id = ?", victim.SessionID).Scan(&patientID)

		err := rp.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&Chunk{}, "id = ?", victim.ID).Error; err != nil {
				return err
			}
			return tx.Create(&DeletionLog{
				DeletedAtUs: nowUs,
				SessionID:   victim.SessionID,
				PatientID:   patientID,
				Reason:      DeletionReasonStorageLimit,
				FreedBytes:  victim.Size,
			}).Error
		})
		if err != nil {
			return freed, &StorageError{Op: "reaper: delete chunk", Err: err}
		}

		freed += victim.Size
		total -= victim.Size
		rp.log.Info("reaper freed chunk",
			logger.String("session_id", victim.SessionID),
			logger.String("freed", humanize.IBytes(uint64(victim.Size))))
	}

	rp.db.Create(&Event{
		TsUs:        nowUs,
		EventType:   EventStorageCleanup,
		DetailsJSON: fmt.Sprintf(`{"freed_bytes":%d}`, freed),
	})
	return freed, nil
}

func (rp *Reaper) activeSessionSet() ([]string, error) {
	var ids []string
	err := rp.db.Model(&Session{}).Where("active = ?", true).Pluck("id", &ids).Error
	return ids, err
}

// Run loops RunOnce on the given interval until stop is closed, matching
// the teacher's periodic-sweep thread shape; the reaper's own delete
// transactions are always short so it never competes with the writer for
// more than one chunk at a time.
func (rp *Reaper) Run(interval time.Duration, stop <-chan struct{}, nowUs func() int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := rp.RunOnce(nowUs()); err != nil {
				rp.log.Error("reaper sweep failed", logger.Error(err))
			}
		}
	}
}
