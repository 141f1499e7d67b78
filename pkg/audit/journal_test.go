package audit

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dbehnke/neomonitor/pkg/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "neomonitor.db")
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	db, err := storage.Open(storage.Config{Path: path}, log)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestJournal_AppendAndQueryByType(t *testing.T) {
	j := New(openTestDB(t))

	if err := j.Append(storage.EventCRCError, nil, nil, nil, `{"frame":"eeg"}`, 100); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Append(storage.EventCRCError, nil, nil, nil, `{"frame":"nirs"}`, 200); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Append(storage.EventSerialError, nil, nil, nil, "", 150); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := j.ByType(storage.EventCRCError, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 CRC_ERROR events, got %d", len(events))
	}
	if events[0].TsUs != 200 {
		t.Errorf("expected newest-first ordering, got ts_us=%d first", events[0].TsUs)
	}
}

func TestJournal_BySessionAndRange(t *testing.T) {
	j := New(openTestDB(t))
	sess := "sess-1"

	j.Append(storage.EventFilterChange, &sess, ptr("hpf0.5"), ptr("hpf1.5"), "", 1000)
	j.Append(storage.EventGainChange, &sess, nil, nil, "", 2000)
	j.Append(storage.EventFilterChange, nil, nil, nil, "", 3000)

	bySession, err := j.BySession(sess)
	if err != nil {
		t.Fatalf("by session: %v", err)
	}
	if len(bySession) != 2 {
		t.Fatalf("expected 2 events for session, got %d", len(bySession))
	}
	if bySession[0].TsUs != 1000 || bySession[1].TsUs != 2000 {
		t.Errorf("expected oldest-first ordering, got %+v", bySession)
	}

	inRange, err := j.InRange(1500, 3500)
	if err != nil {
		t.Fatalf("in range: %v", err)
	}
	if len(inRange) != 2 {
		t.Fatalf("expected 2 events in range, got %d", len(inRange))
	}
}

func ptr(s string) *string { return &s }
