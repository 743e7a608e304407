package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
	"appguard-lab/internal/streaming"
	"appguard-lab/pkg/logger"
)

// ScansHandler starts, polls, cancels and streams full device scans
type ScansHandler struct {
	registry *services.ScanRegistry
	hub      *streaming.WebSocketHub
	logger   *logger.Logger
}

// NewScansHandler creates a new scans handler. hub may be nil.
func NewScansHandler(registry *services.ScanRegistry, hub *streaming.WebSocketHub, log *logger.Logger) *ScansHandler {
	return &ScansHandler{
		registry: registry,
		hub:      hub,
		logger:   log.WithComponent("scans-handler"),
	}
}

// ScanStatusResponse is the polling view of a scan
type ScanStatusResponse struct {
	ScanID   uuid.UUID            `json:"scan_id"`
	DeviceID string               `json:"device_id"`
	Status   models.ScanStatus    `json:"status"`
	Progress *models.ScanProgress `json:"progress,omitempty"`
	Summary  *models.ScanSummary  `json:"summary,omitempty"`
}

// Start handles POST /api/v1/devices/{device}/scans. It answers 202 for a new
// scan and 200 with the running scan when one is already in progress.
func (h *ScansHandler) Start(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device")

	task, started := h.registry.Start(deviceID)
	if !started {
		// the device already has a scan in progress
		respondJSON(w, http.StatusOK, statusOf(task))
		return
	}

	h.logger.Info().
		Str("scan_id", task.ID.String()).
		Str("device_id", deviceID).
		Msg("scan started")

	respondJSON(w, http.StatusAccepted, statusOf(task))
}

// Get handles GET /api/v1/scans/{id}
func (h *ScansHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, statusOf(task))
}

// Cancel handles DELETE /api/v1/scans/{id}. Cancelling a finished scan is a
// no-op that returns its final state.
func (h *ScansHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookup(w, r)
	if !ok {
		return
	}

	task.Cancel()
	h.logger.Info().Str("scan_id", task.ID.String()).Msg("scan cancellation requested")

	respondJSON(w, http.StatusAccepted, statusOf(task))
}

// Stream handles GET /api/v1/scans/{id}/ws. The connection receives the
// current state first, then live progress, and is closed after the summary.
func (h *ScansHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "WebSocket streaming not available")
		return
	}

	task, ok := h.lookup(w, r)
	if !ok {
		return
	}

	sub := &streaming.Subscription{ScanID: task.ID.String()}
	h.hub.ServeWebSocket(w, r, sub, func() []*streaming.ScanEvent {
		return replayEvents(task)
	})
}

func (h *ScansHandler) lookup(w http.ResponseWriter, r *http.Request) (*services.ScanTask, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid scan id")
		return nil, false
	}

	task, ok := h.registry.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "scan not found")
		return nil, false
	}
	return task, true
}

func statusOf(task *services.ScanTask) ScanStatusResponse {
	resp := ScanStatusResponse{
		ScanID:   task.ID,
		DeviceID: task.DeviceID,
		Status:   models.ScanStatusRunning,
		Progress: task.Progress(),
	}
	if done, _ := task.Finished(); done {
		summary, _ := task.Wait()
		resp.Summary = summary
		if summary != nil {
			resp.Status = summary.Status
		}
	}
	return resp
}

// replayEvents renders what a late subscriber has missed
func replayEvents(task *services.ScanTask) []*streaming.ScanEvent {
	if done, _ := task.Finished(); done {
		if summary, _ := task.Wait(); summary != nil {
			return []*streaming.ScanEvent{streaming.NewCompletedEvent(summary)}
		}
		return nil
	}
	if p := task.Progress(); p != nil {
		return []*streaming.ScanEvent{streaming.NewProgressEvent(task.DeviceID, *p)}
	}
	return nil
}
