package models

// Default single-file scan outcome
const (
	FileThreatLevelSafe   = "Safe"
	FileScanLocalComplete = "Local scan completed"
)

// FileScanResult describes one file checked by hash reputation
type FileScanResult struct {
	FileName       string             `json:"file_name"`
	FilePath       string             `json:"file_path,omitempty"`
	FileSize       int64              `json:"file_size"`
	FileExtension  string             `json:"file_extension"`
	SHA256         string             `json:"sha256,omitempty"`
	ThreatDetected bool               `json:"threat_detected"`
	ThreatLevel    string             `json:"threat_level"`
	ScanDetails    string             `json:"scan_details"`
	Reputation     *ReputationVerdict `json:"reputation,omitempty"`
}

// SuspiciousFilesReport is the heuristic sweep of a directory
type SuspiciousFilesReport struct {
	Directory string    `json:"directory"`
	Files     []string  `json:"files"`
	Level     RiskLevel `json:"level"`
}

// CleanupReport is the dry-run outcome of acting on suspicious files
type CleanupReport struct {
	Cleaned     int      `json:"cleaned"`
	Quarantined int      `json:"quarantined"`
	Files       []string `json:"files"`
}
