package handlers

import (
	"context"
	"net/http"
	"time"

	"appguard-lab/internal/infrastructure/cache"
	"appguard-lab/internal/sources"
	"appguard-lab/pkg/logger"
)

// Pinger is implemented by the inventory database backends
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	version   string
	cache     *cache.RedisCache
	db        Pinger
	registry  *sources.Registry
	logger    *logger.Logger
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler. c, db and registry may be nil.
func NewHealthHandler(version string, c *cache.RedisCache, db Pinger, registry *sources.Registry, log *logger.Logger) *HealthHandler {
	if version == "" {
		version = "dev"
	}
	return &HealthHandler{
		version:   version,
		cache:     c,
		db:        db,
		registry:  registry,
		logger:    log.WithComponent("health"),
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.response("healthy", nil))
}

// Ready handles GET /ready. Redis and the inventory database must answer;
// external adapters are reported but never fail readiness.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := http.StatusOK
	overall := "ready"

	probe := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
			overall = "not ready"
			h.logger.Warn().Err(err).Str("check", name).Msg("readiness check failed")
			return
		}
		checks[name] = "healthy"
	}

	if h.cache != nil {
		probe("redis", h.cache.Ping)
	} else {
		checks["redis"] = "not configured"
	}

	if h.db != nil {
		probe("inventory", h.db.Ping)
	} else {
		checks["inventory"] = "not configured"
	}

	if h.registry != nil {
		for _, s := range h.registry.Status() {
			if s.Configured {
				checks["adapter:"+s.Slug] = "configured"
			} else {
				checks["adapter:"+s.Slug] = "not configured"
			}
		}
	}

	respondJSON(w, status, h.response(overall, checks))
}

func (h *HealthHandler) response(status string, checks map[string]string) HealthResponse {
	return HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
}
