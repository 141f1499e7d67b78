package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/dbehnke/neomonitor/pkg/audit"
	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dbehnke/neomonitor/pkg/storage"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// fakeController is a minimal collab.Controller double for exercising the
// API's request decoding and error propagation without a real playback
// coordinator.
type fakeController struct {
	startErr      error
	stopErr       error
	seekErr       error
	rateErr       error
	filterErr     error
	gainErr       error
	lastPatientID string
	lastSessionID string
	lastSeekUs    timeline.Micros
	lastRate      float64
	lastFilter    [2]string
	lastGain      [2]float64
}

func (f *fakeController) StartSession(patientID string) (string, error) {
	f.lastPatientID = patientID
	if f.startErr != nil {
		return "", f.startErr
	}
	return "sess-123", nil
}

func (f *fakeController) StopSession(sessionID string) error {
	f.lastSessionID = sessionID
	return f.stopErr
}

func (f *fakeController) SeekTo(us timeline.Micros) error {
	f.lastSeekUs = us
	return f.seekErr
}

func (f *fakeController) SetRate(rate float64) error {
	f.lastRate = rate
	return f.rateErr
}

func (f *fakeController) ChangeFilter(kind string, cutoff string) error {
	f.lastFilter = [2]string{kind, cutoff}
	return f.filterErr
}

func (f *fakeController) ChangeGain(channel int, gainUvPerPx float64) error {
	f.lastGain = [2]float64{float64(channel), gainUvPerPx}
	return f.gainErr
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	return NewAPI(log)
}

func TestHandleStatus_ReportsVersion(t *testing.T) {
	api := newTestAPI(t)
	SetVersionInfo("1.2.3", "abcd", "2026-01-01")

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	api.HandleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["version"] != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %v", resp["version"])
	}
}

func TestHandleStartSession_NoController(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest("POST", "/api/control/start_session", bytes.NewBufferString(`{"patient_id":"p1"}`))
	w := httptest.NewRecorder()
	api.HandleStartSession(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without controller, got %d", w.Code)
	}
}

func TestHandleStartSession_Success(t *testing.T) {
	api := newTestAPI(t)
	fc := &fakeController{}
	api.SetDeps(fc, nil)

	req := httptest.NewRequest("POST", "/api/control/start_session", bytes.NewBufferString(`{"patient_id":"p1"}`))
	w := httptest.NewRecorder()
	api.HandleStartSession(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if fc.lastPatientID != "p1" {
		t.Errorf("expected patient id p1 forwarded, got %q", fc.lastPatientID)
	}
	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["session_id"] != "sess-123" {
		t.Errorf("expected session_id sess-123, got %v", resp)
	}
}

func TestHandleStartSession_ControllerError(t *testing.T) {
	api := newTestAPI(t)
	fc := &fakeController{startErr: errors.New("device busy")}
	api.SetDeps(fc, nil)

	req := httptest.NewRequest("POST", "/api/control/start_session", bytes.NewBufferString(`{"patient_id":"p1"}`))
	w := httptest.NewRecorder()
	api.HandleStartSession(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestHandleSeek_ForwardsMicros(t *testing.T) {
	api := newTestAPI(t)
	fc := &fakeController{}
	api.SetDeps(fc, nil)

	req := httptest.NewRequest("POST", "/api/control/seek", bytes.NewBufferString(`{"us":450000}`))
	w := httptest.NewRecorder()
	api.HandleSeek(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fc.lastSeekUs != 450000 {
		t.Errorf("expected seek to 450000us, got %d", fc.lastSeekUs)
	}
}

func TestHandleSetRate_RejectsNonPositive(t *testing.T) {
	api := newTestAPI(t)
	fc := &fakeController{rateErr: errors.New("rate must be positive")}
	api.SetDeps(fc, nil)

	req := httptest.NewRequest("POST", "/api/control/set_rate", bytes.NewBufferString(`{"rate":0}`))
	w := httptest.NewRecorder()
	api.HandleSetRate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleChangeFilter_Forwards(t *testing.T) {
	api := newTestAPI(t)
	fc := &fakeController{}
	api.SetDeps(fc, nil)

	req := httptest.NewRequest("POST", "/api/control/change_filter", bytes.NewBufferString(`{"kind":"hpf","cutoff":"1.5hz"}`))
	w := httptest.NewRecorder()
	api.HandleChangeFilter(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fc.lastFilter != [2]string{"hpf", "1.5hz"} {
		t.Errorf("expected filter forwarded, got %v", fc.lastFilter)
	}
}

func TestHandleChangeGain_Forwards(t *testing.T) {
	api := newTestAPI(t)
	fc := &fakeController{}
	api.SetDeps(fc, nil)

	req := httptest.NewRequest("POST", "/api/control/change_gain", bytes.NewBufferString(`{"channel":2,"gain_uv_per_px":0.5}`))
	w := httptest.NewRecorder()
	api.HandleChangeGain(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fc.lastGain[0] != 2 || fc.lastGain[1] != 0.5 {
		t.Errorf("expected gain forwarded, got %v", fc.lastGain)
	}
}

func TestHandleControl_MethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest("GET", "/api/control/start_session", nil)
	w := httptest.NewRecorder()
	api.HandleStartSession(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestHandleControl_InvalidBody(t *testing.T) {
	api := newTestAPI(t)
	api.SetDeps(&fakeController{}, nil)

	req := httptest.NewRequest("POST", "/api/control/seek", bytes.NewBufferString(`not json`))
	w := httptest.NewRecorder()
	api.HandleSeek(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func openTestJournal(t *testing.T) *audit.Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "neomonitor.db")
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	db, err := storage.Open(storage.Config{Path: path}, log)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return audit.New(db)
}

func TestHandleAuditRecent_NoJournal(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest("GET", "/api/audit/recent", nil)
	w := httptest.NewRecorder()
	api.HandleAuditRecent(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var events []EventDTO
	json.NewDecoder(w.Body).Decode(&events)
	if len(events) != 0 {
		t.Errorf("expected empty list, got %d", len(events))
	}
}

func TestHandleAuditRecent_ReturnsNewestFirst(t *testing.T) {
	api := newTestAPI(t)
	j := openTestJournal(t)
	api.SetDeps(nil, j)

	j.Append(storage.EventCRCError, nil, nil, nil, "", 100)
	j.Append(storage.EventSerialError, nil, nil, nil, "", 200)

	req := httptest.NewRequest("GET", "/api/audit/recent?limit=10", nil)
	w := httptest.NewRecorder()
	api.HandleAuditRecent(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var events []EventDTO
	if err := json.NewDecoder(w.Body).Decode(&events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 2 || events[0].TsUs != 200 {
		t.Fatalf("expected newest-first pair, got %+v", events)
	}
}

func TestHandleAuditBySession(t *testing.T) {
	api := newTestAPI(t)
	j := openTestJournal(t)
	api.SetDeps(nil, j)

	sess := "sess-9"
	j.Append(storage.EventFilterChange, &sess, nil, nil, "", 1000)
	j.Append(storage.EventGainChange, nil, nil, nil, "", 2000)

	req := httptest.NewRequest("GET", "/api/audit/session/sess-9", nil)
	w := httptest.NewRecorder()
	api.HandleAuditBySession(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var events []EventDTO
	if err := json.NewDecoder(w.Body).Decode(&events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].TsUs != 1000 {
		t.Fatalf("expected 1 event for session, got %+v", events)
	}
}
