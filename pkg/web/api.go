package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dbehnke/neomonitor/pkg/audit"
	"github.com/dbehnke/neomonitor/pkg/collab"
	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// API handles REST API endpoints: session/playback control (§6
// "Collaborator contracts") and read access to the audit journal (§4.7).
type API struct {
	logger     *logger.Logger
	controller collab.Controller
	journal    *audit.Journal
}

// NewAPI creates a new API instance
func NewAPI(log *logger.Logger) *API {
	return &API{
		logger: log,
	}
}

// SetDeps provides runtime dependencies to the API after construction.
// Either may be nil: a Controller-less API answers control requests with
// 503, a journal-less API answers audit queries with an empty list.
func (a *API) SetDeps(controller collab.Controller, journal *audit.Journal) {
	a.controller = controller
	a.journal = journal
}

// EventDTO is the read-side shape of an audit journal row.
type EventDTO struct {
	TsUs      int64   `json:"ts_us"`
	EventType string  `json:"event_type"`
	SessionID *string `json:"session_id,omitempty"`
	OldValue  *string `json:"old_value,omitempty"`
	NewValue  *string `json:"new_value,omitempty"`
	Details   string  `json:"details,omitempty"`
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version, commit, buildTime := GetVersionInfo()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := map[string]interface{}{
		"status":     "running",
		"service":    "neomonitor",
		"version":    version,
		"commit":     commit,
		"build_time": buildTime,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		a.logger.Error("Failed to encode status response", logger.Error(err))
	}
}

// startSessionRequest/etc. are the JSON bodies for the control endpoints.
type startSessionRequest struct {
	PatientID string `json:"patient_id"`
}

type stopSessionRequest struct {
	SessionID string `json:"session_id"`
}

type seekRequest struct {
	Us int64 `json:"us"`
}

type setRateRequest struct {
	Rate float64 `json:"rate"`
}

type changeFilterRequest struct {
	Kind   string `json:"kind"`
	Cutoff string `json:"cutoff"`
}

type changeGainRequest struct {
	Channel     int     `json:"channel"`
	GainUvPerPx float64 `json:"gain_uv_per_px"`
}

func (a *API) controllerOrUnavailable(w http.ResponseWriter) collab.Controller {
	if a.controller == nil {
		http.Error(w, "controller not attached", http.StatusServiceUnavailable)
		return nil
	}
	return a.controller
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleStartSession handles POST /api/control/start_session
func (a *API) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctrl := a.controllerOrUnavailable(w)
	if ctrl == nil {
		return
	}
	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sessionID, err := ctrl.StartSession(req.PatientID)
	if err != nil {
		a.logger.Error("start session failed", logger.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"session_id": sessionID})
}

// HandleStopSession handles POST /api/control/stop_session
func (a *API) HandleStopSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctrl := a.controllerOrUnavailable(w)
	if ctrl == nil {
		return
	}
	var req stopSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := ctrl.StopSession(req.SessionID); err != nil {
		a.logger.Error("stop session failed", logger.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"ok": true})
}

// HandleSeek handles POST /api/control/seek
func (a *API) HandleSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctrl := a.controllerOrUnavailable(w)
	if ctrl == nil {
		return
	}
	var req seekRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := ctrl.SeekTo(timeline.Micros(req.Us)); err != nil {
		a.logger.Error("seek failed", logger.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"ok": true})
}

// HandleSetRate handles POST /api/control/set_rate
func (a *API) HandleSetRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctrl := a.controllerOrUnavailable(w)
	if ctrl == nil {
		return
	}
	var req setRateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := ctrl.SetRate(req.Rate); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"ok": true})
}

// HandleChangeFilter handles POST /api/control/change_filter
func (a *API) HandleChangeFilter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctrl := a.controllerOrUnavailable(w)
	if ctrl == nil {
		return
	}
	var req changeFilterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := ctrl.ChangeFilter(req.Kind, req.Cutoff); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"ok": true})
}

// HandleChangeGain handles POST /api/control/change_gain
func (a *API) HandleChangeGain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctrl := a.controllerOrUnavailable(w)
	if ctrl == nil {
		return
	}
	var req changeGainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := ctrl.ChangeGain(req.Channel, req.GainUvPerPx); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"ok": true})
}

// HandleAuditRecent handles GET /api/audit/recent?limit=N
func (a *API) HandleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.journal == nil {
		writeJSON(w, []EventDTO{})
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := a.journal.Recent(limit)
	if err != nil {
		a.logger.Error("failed to query audit journal", logger.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, EventDTO{
			TsUs:      ev.TsUs,
			EventType: string(ev.EventType),
			SessionID: ev.SessionID,
			OldValue:  ev.OldValue,
			NewValue:  ev.NewValue,
			Details:   ev.DetailsJSON,
		})
	}
	writeJSON(w, dtos)
}

// HandleAuditBySession handles GET /api/audit/session/{id}
func (a *API) HandleAuditBySession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/audit/session/")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	if a.journal == nil {
		writeJSON(w, []EventDTO{})
		return
	}

	events, err := a.journal.BySession(sessionID)
	if err != nil {
		a.logger.Error("failed to query audit journal", logger.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, EventDTO{
			TsUs:      ev.TsUs,
			EventType: string(ev.EventType),
			SessionID: ev.SessionID,
			OldValue:  ev.OldValue,
			NewValue:  ev.NewValue,
			Details:   ev.DetailsJSON,
		})
	}
	writeJSON(w, dtos)
}
