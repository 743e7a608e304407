package handlers

import (
	"net/http"

	"appguard-lab/internal/sources"
	"appguard-lab/pkg/logger"
)

// AdaptersHandler reports which external lookups are usable
type AdaptersHandler struct {
	registry *sources.Registry
	logger   *logger.Logger
}

// NewAdaptersHandler creates a new adapters handler
func NewAdaptersHandler(registry *sources.Registry, log *logger.Logger) *AdaptersHandler {
	return &AdaptersHandler{
		registry: registry,
		logger:   log.WithComponent("adapters-handler"),
	}
}

// List handles GET /api/v1/adapters
func (h *AdaptersHandler) List(w http.ResponseWriter, r *http.Request) {
	status := []sources.AdapterStatus{}
	configured := 0
	if h.registry != nil {
		status = h.registry.Status()
		configured = h.registry.CountConfigured()
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"adapters":   status,
		"configured": configured,
		"total":      len(status),
	})
}
