package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"appguard-lab/internal/domain/models"
	"appguard-lab/pkg/logger"
)

// FileScanner checks individual files by hash reputation
type FileScanner struct {
	reputation FileReputation
	timeout    time.Duration
	logger     *logger.Logger
}

// NewFileScanner creates a new file scanner. reputation may be nil.
func NewFileScanner(reputation FileReputation, timeout time.Duration, log *logger.Logger) *FileScanner {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &FileScanner{
		reputation: reputation,
		timeout:    timeout,
		logger:     log.WithComponent("file-scanner"),
	}
}

// HashFile computes the hex sha256 over the full file contents
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ScanFile hashes a local file and looks it up
func (s *FileScanner) ScanFile(ctx context.Context, path string) (*models.FileScanResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	hash, err := HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash file: %w", err)
	}

	result := s.ScanHash(ctx, info.Name(), info.Size(), hash)
	result.FilePath = path
	return result, nil
}

// ScanHash builds the result for a file already hashed by the caller. Adapter
// failures are reported in ScanDetails rather than returned.
func (s *FileScanner) ScanHash(ctx context.Context, name string, size int64, sha string) *models.FileScanResult {
	result := &models.FileScanResult{
		FileName:      name,
		FileSize:      size,
		FileExtension: strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
		SHA256:        strings.ToLower(sha),
		ThreatLevel:   models.FileThreatLevelSafe,
		ScanDetails:   models.FileScanLocalComplete,
	}

	if s.reputation == nil || !s.reputation.IsConfigured() || result.SHA256 == "" {
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.reputation.LookupHash(callCtx, result.SHA256)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", name).Msg("file reputation lookup failed")
		result.ScanDetails = "VirusTotal scan failed: " + err.Error()
		return result
	}

	result.Reputation = v
	result.ThreatDetected = v.IsThreat()
	result.ThreatLevel = v.Verdict
	result.ScanDetails = v.DetectionRatio()
	return result
}
