package handlers

import (
	"encoding/hex"
	"net/http"
	"strings"

	"appguard-lab/internal/domain/services"
	"appguard-lab/pkg/logger"
)

// FilesHandler handles file reputation and the suspicious-file sweep
type FilesHandler struct {
	scanner  *services.FileScanner
	analyzer *services.RiskAnalyzer
	logger   *logger.Logger
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(scanner *services.FileScanner, analyzer *services.RiskAnalyzer, log *logger.Logger) *FilesHandler {
	return &FilesHandler{
		scanner:  scanner,
		analyzer: analyzer,
		logger:   log.WithComponent("files-handler"),
	}
}

// FileScanRequest carries a file hashed on the device
type FileScanRequest struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	SHA256   string `json:"sha256"`
}

// Scan handles POST /api/v1/files/scan. Reputation failures are reported in
// the result's scan details, never as an error status.
func (h *FilesHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req FileScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.SHA256 = strings.ToLower(strings.TrimSpace(req.SHA256))
	if !isSHA256(req.SHA256) {
		respondError(w, http.StatusBadRequest, "sha256 must be 64 hex characters")
		return
	}
	if req.FileSize < 0 {
		respondError(w, http.StatusBadRequest, "file_size must not be negative")
		return
	}
	if req.FileName == "" {
		req.FileName = req.SHA256
	}

	result := h.scanner.ScanHash(r.Context(), req.FileName, req.FileSize, req.SHA256)
	respondJSON(w, http.StatusOK, result)
}

// Suspicious handles GET /api/v1/files/suspicious
func (h *FilesHandler) Suspicious(w http.ResponseWriter, r *http.Request) {
	report := h.analyzer.Files().Report(h.analyzer.ScanDir())
	respondJSON(w, http.StatusOK, report)
}

// Cleanup handles POST /api/v1/files/cleanup
func (h *FilesHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	report := h.analyzer.Files().Cleanup(h.analyzer.ScanDir())
	respondJSON(w, http.StatusOK, report)
}

func isSHA256(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
