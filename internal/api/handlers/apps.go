package handlers

import (
	"net/http"
	"strings"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
	"appguard-lab/pkg/logger"
)

// AppsHandler handles single-app analysis requests
type AppsHandler struct {
	analyzer  *services.RiskAnalyzer
	inventory services.InventoryStore
	logger    *logger.Logger
}

// NewAppsHandler creates a new apps handler
func NewAppsHandler(analyzer *services.RiskAnalyzer, inventory services.InventoryStore, log *logger.Logger) *AppsHandler {
	return &AppsHandler{
		analyzer:  analyzer,
		inventory: inventory,
		logger:    log.WithComponent("apps-handler"),
	}
}

// AnalyzeRequest names an app from an uploaded inventory, or carries the app
// inline together with its installer
type AnalyzeRequest struct {
	DeviceID    string               `json:"device_id"`
	PackageName string               `json:"package_name"`
	App         *models.InventoryApp `json:"app,omitempty"`
}

// Analyze handles POST /api/v1/apps/analyze
func (h *AppsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)

	analyzer := h.analyzer
	var app models.AppFacts

	switch {
	case req.App != nil:
		if strings.TrimSpace(req.App.PackageName) == "" {
			respondError(w, http.StatusBadRequest, "app.package_name is required")
			return
		}
		app = req.App.Facts(req.DeviceID)
		analyzer = analyzer.WithProvenance(services.StaticProvenance{
			Installer: strings.TrimSpace(req.App.Installer),
			Found:     true,
			IsSystem:  req.App.IsSystemApp,
		})

	case req.PackageName != "":
		if req.DeviceID == "" {
			respondError(w, http.StatusBadRequest, "device_id is required")
			return
		}
		found, err := h.inventory.GetApp(r.Context(), req.DeviceID, req.PackageName)
		if err != nil {
			h.logger.Error().Err(err).Str("device_id", req.DeviceID).Msg("failed to load app")
			respondError(w, http.StatusInternalServerError, "failed to load app")
			return
		}
		if found == nil {
			respondError(w, http.StatusNotFound, services.ErrAppNotFound.Error())
			return
		}
		app = *found

	default:
		respondError(w, http.StatusBadRequest, "package_name or app is required")
		return
	}

	result, err := analyzer.Analyze(r.Context(), app)
	if err != nil {
		if r.Context().Err() != nil {
			// client went away
			return
		}
		h.logger.Error().Err(err).Str("package", app.PackageName).Msg("failed to analyze app")
		respondError(w, http.StatusInternalServerError, "failed to analyze app")
		return
	}

	h.logger.Info().
		Str("package", app.PackageName).
		Str("risk_level", result.RiskLevel.String()).
		Msg("app analyzed")

	respondJSON(w, http.StatusOK, result)
}
