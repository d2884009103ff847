// Package ws implements the WebSocket adapter that streams review status
// updates to watching clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Event is the envelope for all WebSocket messages. Type is one of
// "progress", "completed" or "error".
type Event struct {
	Type       string          `json:"type"`
	InstanceID string          `json:"instance_id"`
	Payload    json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection subscribed to one instance.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub manages WebSocket connections keyed by review instance ID and
// broadcasts status events to every watcher of that instance.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*conn]struct{}
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[*conn]struct{}),
	}
}

// HandleWS upgrades the request to a WebSocket subscribed to instanceID.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request, instanceID string) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	// The read loop outlives this handler; net/http cancels r.Context() as
	// soon as HandleWS returns, which would drop the connection immediately.
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{ws: ws, cancel: cancel}

	h.mu.Lock()
	if h.conns[instanceID] == nil {
		h.conns[instanceID] = make(map[*conn]struct{})
	}
	h.conns[instanceID][c] = struct{}{}
	h.mu.Unlock()

	slog.Info("websocket connected", "instance_id", instanceID, "remote", r.RemoteAddr)

	// Read loop (to detect disconnects and consume pings)
	go func() {
		defer func() {
			h.remove(instanceID, c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			_, _, err := ws.Read(ctx)
			if err != nil {
				return
			}
		}
	}()
}

// Broadcast sends an event to every watcher of the event's instance.
func (h *Hub) Broadcast(ctx context.Context, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.conns[evt.InstanceID] {
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "error", err)
			go h.remove(evt.InstanceID, c)
		}
	}
}

// WatcherCount returns the number of active connections for an instance.
func (h *Hub) WatcherCount(instanceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[instanceID])
}

func (h *Hub) remove(instanceID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	watchers, ok := h.conns[instanceID]
	if !ok {
		return
	}
	if _, ok := watchers[c]; ok {
		c.cancel()
		delete(watchers, c)
		slog.Info("websocket disconnected", "instance_id", instanceID)
	}
	if len(watchers) == 0 {
		delete(h.conns, instanceID)
	}
}
