package handlers

import (
	"net/http"
	"strings"

	"appguard-lab/internal/streaming"
	"appguard-lab/pkg/logger"
)

// StreamingHandler handles real-time streaming endpoints
type StreamingHandler struct {
	wsHub    *streaming.WebSocketHub
	eventBus *streaming.EventBus
	logger   *logger.Logger
}

// NewStreamingHandler creates a new streaming handler
func NewStreamingHandler(wsHub *streaming.WebSocketHub, eventBus *streaming.EventBus, log *logger.Logger) *StreamingHandler {
	return &StreamingHandler{
		wsHub:    wsHub,
		eventBus: eventBus,
		logger:   log.WithComponent("streaming-handler"),
	}
}

// HandleWebSocket handles GET /api/v1/stream. Query parameters device_id,
// scan_id and types (comma separated) narrow the feed.
func (h *StreamingHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		respondError(w, http.StatusServiceUnavailable, "WebSocket streaming not available")
		return
	}

	q := r.URL.Query()
	sub := &streaming.Subscription{
		DeviceID: q.Get("device_id"),
		ScanID:   q.Get("scan_id"),
	}
	if types := q.Get("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				sub.Types = append(sub.Types, streaming.EventType(t))
			}
		}
	}

	h.logger.Debug().
		Str("remote_addr", r.RemoteAddr).
		Str("device_id", sub.DeviceID).
		Msg("WebSocket connection request")

	h.wsHub.ServeWebSocket(w, r, sub, nil)
}

// GetStats returns streaming statistics
func (h *StreamingHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"websocket_clients":     0,
		"event_bus_subscribers": 0,
	}

	if h.wsHub != nil {
		stats["websocket_clients"] = h.wsHub.ClientCount()
	}

	if h.eventBus != nil {
		stats["event_bus_subscribers"] = h.eventBus.SubscriberCount()
	}

	respondJSON(w, http.StatusOK, stats)
}
