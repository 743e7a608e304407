package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"appguard-lab/internal/domain/services"
	"appguard-lab/internal/sources"
	"appguard-lab/pkg/logger"
)

// URLHandler handles URL protection API requests
type URLHandler struct {
	checker services.URLReputation
	logger  *logger.Logger
}

// NewURLHandler creates a new URL handler. checker may be nil.
func NewURLHandler(checker services.URLReputation, log *logger.Logger) *URLHandler {
	return &URLHandler{
		checker: checker,
		logger:  log.WithComponent("url-handler"),
	}
}

// URLCheckRequest is the body of a URL check
type URLCheckRequest struct {
	URL string `json:"url"`
}

// CheckURL handles POST /api/v1/urls/check
func (h *URLHandler) CheckURL(w http.ResponseWriter, r *http.Request) {
	var req URLCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if u, err := url.Parse(req.URL); err != nil || u.Host == "" {
		respondError(w, http.StatusBadRequest, "url must be absolute")
		return
	}

	if h.checker == nil || !h.checker.IsConfigured() {
		respondError(w, http.StatusServiceUnavailable, "URL reputation not configured")
		return
	}

	verdict, err := h.checker.CheckURL(r.Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, sources.ErrNotConfigured):
			respondError(w, http.StatusServiceUnavailable, "URL reputation not configured")
		case errors.Is(err, sources.ErrUnauthorized), errors.Is(err, sources.ErrUnavailable):
			h.logger.Warn().Err(err).Msg("URL reputation lookup failed")
			respondError(w, http.StatusBadGateway, "URL reputation lookup failed")
		default:
			h.logger.Error().Err(err).Msg("failed to check URL")
			respondError(w, http.StatusInternalServerError, "failed to check URL")
		}
		return
	}

	respondJSON(w, http.StatusOK, verdict)
}
