package handlers

import (
	"net/http"
	"strings"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
	"appguard-lab/pkg/logger"
)

const maxChatHistory = 20

// AssistantHandler serves the security assistant chat
type AssistantHandler struct {
	assistant services.ChatAssistant
	logger    *logger.Logger
}

// NewAssistantHandler creates a new assistant handler. assistant may be nil.
func NewAssistantHandler(assistant services.ChatAssistant, log *logger.Logger) *AssistantHandler {
	return &AssistantHandler{
		assistant: assistant,
		logger:    log.WithComponent("assistant-handler"),
	}
}

// ChatRequest is one question plus the prior turns of the conversation
type ChatRequest struct {
	Message string               `json:"message"`
	History []models.ChatMessage `json:"history,omitempty"`
}

// Chat handles POST /api/v1/assistant/chat
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	if h.assistant == nil || !h.assistant.IsConfigured() {
		respondError(w, http.StatusServiceUnavailable, "assistant not configured")
		return
	}

	history := req.History
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}

	reply, err := h.assistant.Chat(r.Context(), history, req.Message)
	if err != nil {
		h.logger.Warn().Err(err).Msg("assistant request failed")
		respondError(w, http.StatusBadGateway, "assistant request failed")
		return
	}

	respondJSON(w, http.StatusOK, reply)
}
