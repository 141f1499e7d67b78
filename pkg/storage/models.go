package storage

import "time"

// DataType identifies which stream a chunk or trend row belongs to.
type DataType int

const (
	DataTypeEEG DataType = iota
	DataTypeNIRS
)

// Patient is the minimal identity record a session is attached to.
type Patient struct {
	ID        string `gorm:"primarykey"`
	Label     string `gorm:"size:128"`
	CreatedAt time.Time
}

func (Patient) TableName() string { return "patients" }

// Session represents one continuous monitoring episode. Only the storage
// writer thread ever widens EndUs; Active becomes false exactly once, when
// the episode is stopped.
type Session struct {
	ID        string `gorm:"primarykey"`
	PatientID string `gorm:"index;not null"`
	StartUs   int64  `gorm:"not null"`
	EndUs     int64  `gorm:"not null"`
	Active    bool   `gorm:"index;not null"`
	CreatedAt time.Time
}

func (Session) TableName() string { return "sessions" }

// Chunk indexes one immutable, append-only blob of consecutive samples
// from a single stream within a single session.
type Chunk struct {
	ID          string   `gorm:"primarykey"`
	SessionID   string   `gorm:"index;not null"`
	DataType    DataType `gorm:"index;not null"`
	StartUs     int64    `gorm:"index;not null"`
	EndUs       int64    `gorm:"not null"`
	BlobRef     []byte   `gorm:"not null"`
	Size        int64    `gorm:"not null"`
	SampleCount int64    `gorm:"not null"`
	Checksum    uint32   `gorm:"not null"`
	CreatedAt   time.Time
}

func (Chunk) TableName() string { return "chunks" }

// AEEGTrend is one channel's 1Hz (min,max) output, stored directly as a
// row rather than batched into chunks because of its low volume.
type AEEGTrend struct {
	ID        uint    `gorm:"primarykey"`
	SessionID string  `gorm:"index;not null"`
	TsUs      int64   `gorm:"index;not null"`
	Channel   int     `gorm:"not null"`
	MinUv     float64 `gorm:"not null"`
	MaxUv     float64 `gorm:"not null"`
	Bandwidth int     `gorm:"not null"` // quality bits of the window, as stored bits
}

func (AEEGTrend) TableName() string { return "aeeg_trends" }

// EventType enumerates the audit journal's fixed set of event kinds.
type EventType string

const (
	EventMonitoringStart  EventType = "MONITORING_START"
	EventMonitoringStop   EventType = "MONITORING_STOP"
	EventDeviceLost       EventType = "DEVICE_LOST"
	EventDeviceRestored   EventType = "DEVICE_RESTORED"
	EventFilterChange     EventType = "FILTER_CHANGE"
	EventGainChange       EventType = "GAIN_CHANGE"
	EventCRCError         EventType = "CRC_ERROR"
	EventSerialError      EventType = "SERIAL_ERROR"
	EventScreenshot       EventType = "SCREENSHOT"
	EventPrint            EventType = "PRINT"
	EventUSBExport        EventType = "USB_EXPORT"
	EventStorageCleanup   EventType = "STORAGE_CLEANUP"
	EventChannelMapChange EventType = "CHANNEL_MAP_CHANGE"
)

// Event is one append-only row in the audit journal. No update or delete
// is ever issued against this table (spec.md §4.7).
type Event struct {
	ID         uint      `gorm:"primarykey"`
	TsUs       int64     `gorm:"index;not null"`
	EventType  EventType `gorm:"index;not null"`
	SessionID  *string   `gorm:"index"`
	OldValue   *string
	NewValue   *string
	DetailsJSON string
}

func (Event) TableName() string { return "events" }

// DeletionReason names why the reaper (or an operator) removed a chunk.
type DeletionReason string

const (
	DeletionReasonStorageLimit DeletionReason = "storage_limit"
	DeletionReasonManual       DeletionReason = "manual"
)

// DeletionLog is one append-only row recording a chunk the reaper (or a
// manual operation) removed.
type DeletionLog struct {
	ID          uint           `gorm:"primarykey"`
	DeletedAtUs int64          `gorm:"index;not null"`
	SessionID   string         `gorm:"index;not null"`
	PatientID   string         `gorm:"index;not null"`
	Reason      DeletionReason `gorm:"not null"`
	FreedBytes  int64          `gorm:"not null"`
}

func (DeletionLog) TableName() string { return "deletion_log" }
