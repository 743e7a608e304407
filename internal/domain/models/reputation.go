package models

import "fmt"

// Reputation verdict texts
const (
	VerdictMalware    = "MALWARE DETECTED"
	VerdictSuspicious = "SUSPICIOUS"
	VerdictClean      = "CLEAN"
	VerdictNotFound   = "Not found in database"
)

// ReputationVerdict holds the multi-engine scan statistics for a file hash.
// A nil *ReputationVerdict means no lookup was performed.
type ReputationVerdict struct {
	Malicious  int    `json:"malicious"`
	Suspicious int    `json:"suspicious"`
	Harmless   int    `json:"harmless"`
	Undetected int    `json:"undetected"`
	Verdict    string `json:"verdict"`
	Found      bool   `json:"found"`
}

// NewReputationVerdict derives the verdict text from engine counts
func NewReputationVerdict(malicious, suspicious, harmless, undetected int) *ReputationVerdict {
	v := &ReputationVerdict{
		Malicious:  malicious,
		Suspicious: suspicious,
		Harmless:   harmless,
		Undetected: undetected,
		Found:      true,
	}
	switch {
	case malicious > 0:
		v.Verdict = VerdictMalware
	case suspicious > 0:
		v.Verdict = VerdictSuspicious
	default:
		v.Verdict = VerdictClean
	}
	return v
}

// NotFoundVerdict is returned when the hash is unknown to the service
func NotFoundVerdict() *ReputationVerdict {
	return &ReputationVerdict{Verdict: VerdictNotFound}
}

// IsThreat reports whether any engine flagged the file
func (v *ReputationVerdict) IsThreat() bool {
	return v != nil && (v.Malicious > 0 || v.Suspicious > 0)
}

// TotalEngines is the number of engines that reported
func (v *ReputationVerdict) TotalEngines() int {
	if v == nil {
		return 0
	}
	return v.Malicious + v.Suspicious + v.Harmless + v.Undetected
}

// DetectionRatio renders "X / Y engines detected threats"
func (v *ReputationVerdict) DetectionRatio() string {
	if v == nil || !v.Found {
		return "No data available"
	}
	return fmt.Sprintf("%d / %d engines detected threats", v.Malicious+v.Suspicious, v.TotalEngines())
}

// Level maps engine counts onto the three tiers
func (v *ReputationVerdict) Level() RiskLevel {
	switch {
	case v == nil:
		return RiskLevelSafe
	case v.Malicious > 5:
		return RiskLevelMalware
	case v.Malicious > 0 || v.Suspicious > 3:
		return RiskLevelRisky
	default:
		return RiskLevelSafe
	}
}

// Safe Browsing clean-result markers
const (
	ThreatTypeSafe   = "SAFE"
	PlatformTypeNone = "N/A"
)

// URLVerdict is the result of a URL reputation lookup
type URLVerdict struct {
	URL          string `json:"url,omitempty"`
	IsThreat     bool   `json:"is_threat"`
	ThreatType   string `json:"threat_type"`
	PlatformType string `json:"platform_type"`
}

// SafeURLVerdict is the clean result for url
func SafeURLVerdict(url string) *URLVerdict {
	return &URLVerdict{URL: url, ThreatType: ThreatTypeSafe, PlatformType: PlatformTypeNone}
}
