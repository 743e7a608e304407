package services

import (
	"os"
	"path/filepath"
	"strings"

	"appguard-lab/internal/domain/models"
	"appguard-lab/pkg/logger"
)

// SuspiciousExtensions are executable or installable file types
var SuspiciousExtensions = []string{
	".apk", ".exe", ".bat", ".cmd", ".scr", ".pif", ".com",
	".jar", ".js", ".vbs", ".wsf", ".hta", ".ps1",
}

var (
	suspiciousExtSet = toSet(SuspiciousExtensions)
	// only these subdirectories are descended into
	scannedSubdirs = toSet([]string{"temp", "cache", "downloads"})
)

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

// FileHeuristic sweeps a directory for suspicious file types
type FileHeuristic struct {
	logger *logger.Logger
}

// NewFileHeuristic creates a new file heuristic
func NewFileHeuristic(log *logger.Logger) *FileHeuristic {
	return &FileHeuristic{logger: log.WithComponent("file-heuristic")}
}

// IsSuspiciousFile reports whether name has a suspicious extension
func IsSuspiciousFile(name string) bool {
	_, ok := suspiciousExtSet[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Scan returns the suspicious files under dir. Unreadable or missing
// directories contribute nothing.
func (h *FileHeuristic) Scan(dir string) []string {
	matches := []string{}
	h.scan(dir, &matches)
	return matches
}

func (h *FileHeuristic) scan(dir string, matches *[]string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		h.logger.Debug().Err(err).Str("dir", dir).Msg("skipping unreadable directory")
		return
	}

	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			if _, ok := scannedSubdirs[strings.ToLower(e.Name())]; ok {
				h.scan(path, matches)
			}
		case e.Type().IsRegular():
			if IsSuspiciousFile(e.Name()) {
				*matches = append(*matches, path)
			}
		}
	}
}

// ClassifyFileCount maps the number of matched files onto a risk tier
func ClassifyFileCount(n int) models.RiskLevel {
	switch {
	case n <= 0:
		return models.RiskLevelSafe
	case n <= 2:
		return models.RiskLevelRisky
	default:
		return models.RiskLevelMalware
	}
}

// Report scans dir and classifies the result
func (h *FileHeuristic) Report(dir string) *models.SuspiciousFilesReport {
	files := h.Scan(dir)
	return &models.SuspiciousFilesReport{
		Directory: dir,
		Files:     files,
		Level:     ClassifyFileCount(len(files)),
	}
}

// Cleanup is a dry run over the suspicious files in dir: writable files are
// counted as cleaned, the rest as quarantined. Nothing is deleted.
func (h *FileHeuristic) Cleanup(dir string) *models.CleanupReport {
	files := h.Scan(dir)
	report := &models.CleanupReport{Files: files}
	for _, f := range files {
		if isWritable(f) {
			report.Cleaned++
		} else {
			report.Quarantined++
		}
	}
	h.logger.Info().
		Str("dir", dir).
		Int("cleaned", report.Cleaned).
		Int("quarantined", report.Quarantined).
		Msg("cleanup dry run complete")
	return report
}

func isWritable(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
