package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanStatus is the lifecycle state of a full scan
type ScanStatus string

const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusCancelled ScanStatus = "cancelled"
	ScanStatusFailed    ScanStatus = "failed"
)

// ScanSummary is the outcome of a full device scan
type ScanSummary struct {
	ScanID           uuid.UUID  `json:"scan_id"`
	DeviceID         string     `json:"device_id"`
	Status           ScanStatus `json:"status"`
	SafeApps         int        `json:"safe_apps"`
	RiskyApps        int        `json:"risky_apps"`
	MalwareApps      int        `json:"malware_apps"`
	TotalAppsScanned int        `json:"total_apps_scanned"`
	SkippedApps      int        `json:"skipped_apps"`
	SuspiciousFiles  int        `json:"suspicious_files"`
	Cancelled        bool       `json:"cancelled"`
	Error            string     `json:"error,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      time.Time  `json:"completed_at,omitempty"`
}

// Record counts one analysed app
func (s *ScanSummary) Record(level RiskLevel) {
	switch level {
	case RiskLevelMalware:
		s.MalwareApps++
	case RiskLevelRisky:
		s.RiskyApps++
	default:
		s.SafeApps++
	}
	s.TotalAppsScanned++
}

// ScanProgress is emitted once per processed app
type ScanProgress struct {
	ScanID  uuid.UUID `json:"scan_id"`
	Index   int       `json:"index"`
	Total   int       `json:"total"`
	Label   string    `json:"label"`
	Percent int       `json:"percent"`
}

// NewScanProgress computes the percentage for item index (1-based) of total
func NewScanProgress(scanID uuid.UUID, index, total int, label string) ScanProgress {
	pct := 100
	if total > 0 {
		pct = index * 100 / total
	}
	return ScanProgress{ScanID: scanID, Index: index, Total: total, Label: label, Percent: pct}
}
