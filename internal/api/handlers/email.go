package handlers

import (
	"net/http"
	"strings"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
	"appguard-lab/pkg/logger"
)

// EmailHandler handles phishing checks of single messages
type EmailHandler struct {
	detector *services.PhishingDetector
	logger   *logger.Logger
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(detector *services.PhishingDetector, log *logger.Logger) *EmailHandler {
	return &EmailHandler{
		detector: detector,
		logger:   log.WithComponent("email-handler"),
	}
}

// Check handles POST /api/v1/email/check
func (h *EmailHandler) Check(w http.ResponseWriter, r *http.Request) {
	var msg models.EmailMessage
	if err := decodeJSON(w, r, &msg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(msg.Sender) == "" && strings.TrimSpace(msg.Subject) == "" && strings.TrimSpace(msg.Body) == "" {
		respondError(w, http.StatusBadRequest, "sender, subject or body is required")
		return
	}

	result := h.detector.Detect(msg)
	if result.IsPhishing {
		h.logger.Info().
			Str("threat_level", result.ThreatLevel).
			Int("reasons", len(result.Reasons)).
			Msg("phishing message detected")
	}

	respondJSON(w, http.StatusOK, result)
}
