package handlers

import (
	"encoding/json"
	"net/http"

	"appguard-lab/internal/domain/services"
	"appguard-lab/internal/infrastructure/cache"
	"appguard-lab/internal/sources"
	"appguard-lab/internal/streaming"
	"appguard-lab/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health    *HealthHandler
	Apps      *AppsHandler
	Devices   *DevicesHandler
	Scans     *ScansHandler
	Files     *FilesHandler
	URL       *URLHandler
	Email     *EmailHandler
	Assistant *AssistantHandler
	Adapters  *AdaptersHandler
	Streaming *StreamingHandler
}

// Dependencies holds dependencies for handlers. Optional collaborators are
// left nil when the backing service is not configured.
type Dependencies struct {
	Version     string
	Inventory   services.InventoryStore
	Analyzer    *services.RiskAnalyzer
	Scans       *services.ScanRegistry
	FileScanner *services.FileScanner
	Phishing    *services.PhishingDetector
	URLs        services.URLReputation
	Assistant   services.ChatAssistant
	Registry    *sources.Registry
	Cache       *cache.RedisCache
	Pinger      Pinger
	EventBus    *streaming.EventBus
	WSHub       *streaming.WebSocketHub
	Logger      *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Cache, deps.Pinger, deps.Registry, deps.Logger),
		Apps:      NewAppsHandler(deps.Analyzer, deps.Inventory, deps.Logger),
		Devices:   NewDevicesHandler(deps.Inventory, deps.Logger),
		Scans:     NewScansHandler(deps.Scans, deps.WSHub, deps.Logger),
		Files:     NewFilesHandler(deps.FileScanner, deps.Analyzer, deps.Logger),
		URL:       NewURLHandler(deps.URLs, deps.Logger),
		Email:     NewEmailHandler(deps.Phishing, deps.Logger),
		Assistant: NewAssistantHandler(deps.Assistant, deps.Logger),
		Adapters:  NewAdaptersHandler(deps.Registry, deps.Logger),
		Streaming: NewStreamingHandler(deps.WSHub, deps.EventBus, deps.Logger),
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

const maxBodyBytes = 4 << 20

// decodeJSON reads a bounded JSON request body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}
