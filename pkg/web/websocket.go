package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dbehnke/neomonitor/pkg/collab"
	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/storage"
	"github.com/gorilla/websocket"
	"github.com/google/uuid"
)

// Event represents a WebSocket event to be broadcast to clients
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Marshal converts an event to JSON bytes
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	conn     *websocket.Conn
	messages chan []byte
}

// WebSocketHub manages WebSocket client connections and broadcasts. It
// also implements collab.Renderer, pushing RenderSnapshot frames to every
// connected dashboard at whatever rate the playback/acquisition path
// calls Render.
type WebSocketHub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	logger     *logger.Logger
	mu         sync.RWMutex

	onConnect    func(id string)
	onDisconnect func(id string)
}

var _ collab.Renderer = (*WebSocketHub)(nil)

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(log *logger.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

// OnClientConnect registers a hook invoked (with the new client's ID) each
// time a dashboard websocket connects, so the caller can keep a gauge
// metric in step without the hub importing pkg/metrics directly.
func (h *WebSocketHub) OnClientConnect(cb func(id string)) {
	h.onConnect = cb
}

// OnClientDisconnect registers the disconnect counterpart of OnClientConnect.
func (h *WebSocketHub) OnClientDisconnect(cb func(id string)) {
	h.onDisconnect = cb
}

// Run starts the WebSocket hub event loop
func (h *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("WebSocket client registered",
				logger.String("client_id", client.ID))
			if h.onConnect != nil {
				h.onConnect(client.ID)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.messages)
			}
			h.mu.Unlock()
			h.logger.Debug("WebSocket client unregistered",
				logger.String("client_id", client.ID))
			if h.onDisconnect != nil {
				h.onDisconnect(client.ID)
			}

		case event := <-h.broadcast:
			// Marshal event to JSON
			data, err := event.Marshal()
			if err != nil {
				h.logger.Error("Failed to marshal event",
					logger.Error(err))
				continue
			}

			// Broadcast to all clients
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.messages <- data:
				default:
					// Client buffer full, skip
					h.logger.Warn("Client message buffer full, skipping",
						logger.String("client_id", client.ID))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			// Close all client connections
			h.mu.Lock()
			for client := range h.clients {
				close(client.messages)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast sends an event to all connected clients
func (h *WebSocketHub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			logger.String("event_type", event.Type))
	}
}

// Handler returns an HTTP handler for WebSocket connections
func (h *WebSocketHub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		client := &Client{ID: uuid.NewString(), conn: conn, messages: make(chan []byte, 256)}
		h.register <- client

		// Reader goroutine: drain read to detect close
		go func() {
			defer func() {
				h.unregister <- client
				_ = client.conn.Close()
			}()
			client.conn.SetReadLimit(1024)
			for {
				if _, _, err := client.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		// Writer loop
		go func() {
			for msg := range client.messages {
				_ = client.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Render implements collab.Renderer: it flattens one push frame into a
// websocket event. Per the contract, the caller's slices are read here
// and nowhere retained past this call.
func (h *WebSocketHub) Render(snap collab.RenderSnapshot) {
	h.Broadcast(Event{
		Type: "render_snapshot",
		Data: map[string]interface{}{
			"channels":    snap.Channels,
			"quality":     snap.Quality,
			"start_us":    int64(snap.StartUs),
			"interval_us": int64(snap.IntervalUs),
			"viewport": map[string]interface{}{
				"width_px":       snap.Viewport.WidthPx,
				"height_px":      snap.Viewport.HeightPx,
				"gain_uv_per_px": snap.Viewport.GainUvPerPx,
			},
			"dpi": snap.DPI,
		},
	})
}

// BroadcastAuditEvent pushes one journal row to the audit feed as it is
// appended, so a connected dashboard doesn't have to poll /api/audit/recent.
func (h *WebSocketHub) BroadcastAuditEvent(ev storage.Event) {
	h.Broadcast(Event{
		Type: "audit_event",
		Data: map[string]interface{}{
			"ts_us":      ev.TsUs,
			"event_type": string(ev.EventType),
			"session_id": ev.SessionID,
			"old_value":  ev.OldValue,
			"new_value":  ev.NewValue,
			"details":    ev.DetailsJSON,
		},
	})
}

// BroadcastGSFrame pushes one completed 15s grey-scale histogram
// accumulation to the dashboard as it closes out, so the trend display
// doesn't have to poll for it.
func (h *WebSocketHub) BroadcastGSFrame(channel int, frame signal.GSFrame) {
	h.Broadcast(Event{
		Type: "gs_frame",
		Data: map[string]interface{}{
			"channel":  channel,
			"bins":     frame.Bins,
			"start_us": int64(frame.StartUs),
			"end_us":   int64(frame.EndUs),
			"quality":  frame.Quality,
		},
	})
}

// BroadcastStatusUpdate broadcasts a coarse status update to all clients.
func (h *WebSocketHub) BroadcastStatusUpdate(state string, version string) {
	h.Broadcast(Event{
		Type: "status_update",
		Data: map[string]interface{}{
			"state":   state,
			"version": version,
		},
	})
}
