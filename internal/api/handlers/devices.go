package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
	"appguard-lab/pkg/logger"
)

// DevicesHandler handles device inventory uploads and listings
type DevicesHandler struct {
	inventory services.InventoryStore
	logger    *logger.Logger
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(inventory services.InventoryStore, log *logger.Logger) *DevicesHandler {
	return &DevicesHandler{
		inventory: inventory,
		logger:    log.WithComponent("devices-handler"),
	}
}

// InventoryUploadResponse acknowledges an inventory upload
type InventoryUploadResponse struct {
	DeviceID   string    `json:"device_id"`
	Apps       int       `json:"apps"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UploadInventory handles POST /api/v1/devices/{device}/inventory. The
// upload replaces whatever was stored for the device.
func (h *DevicesHandler) UploadInventory(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device")

	var inv models.Inventory
	if err := decodeJSON(w, r, &inv); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	inv.DeviceID = deviceID
	inv.UploadedAt = time.Now().UTC()

	if err := validateInventory(&inv); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.inventory.SaveInventory(r.Context(), &inv); err != nil {
		h.logger.Error().Err(err).Str("device_id", deviceID).Msg("failed to save inventory")
		respondError(w, http.StatusInternalServerError, "failed to save inventory")
		return
	}

	h.logger.Info().Str("device_id", deviceID).Int("apps", len(inv.Apps)).Msg("inventory uploaded")

	respondJSON(w, http.StatusCreated, InventoryUploadResponse{
		DeviceID:   deviceID,
		Apps:       len(inv.Apps),
		UploadedAt: inv.UploadedAt,
	})
}

// ListApps handles GET /api/v1/devices/{device}/apps
func (h *DevicesHandler) ListApps(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device")

	apps, err := h.inventory.ListApps(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, services.ErrDeviceNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("device_id", deviceID).Msg("failed to list apps")
		respondError(w, http.StatusInternalServerError, "failed to list apps")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"device_id": deviceID,
		"apps":      apps,
		"count":     len(apps),
	})
}

func validateInventory(inv *models.Inventory) error {
	if strings.TrimSpace(inv.DeviceID) == "" {
		return errors.New("device id is required")
	}
	if inv.Apps == nil {
		inv.Apps = []models.InventoryApp{}
	}
	seen := make(map[string]struct{}, len(inv.Apps))
	for i := range inv.Apps {
		app := &inv.Apps[i]
		app.PackageName = strings.TrimSpace(app.PackageName)
		if app.PackageName == "" {
			return fmt.Errorf("apps[%d]: package_name is required", i)
		}
		if _, dup := seen[app.PackageName]; dup {
			return fmt.Errorf("apps[%d]: duplicate package %s", i, app.PackageName)
		}
		seen[app.PackageName] = struct{}{}
	}
	return nil
}
