package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the coarse three-tier classification. Levels are ordered so
// that Safe < Risky < Malware.
type RiskLevel int

const (
	RiskLevelSafe RiskLevel = iota
	RiskLevelRisky
	RiskLevelMalware
)

// String returns the display form of the level
func (l RiskLevel) String() string {
	switch l {
	case RiskLevelRisky:
		return "Risky"
	case RiskLevelMalware:
		return "Malware"
	default:
		return "Safe"
	}
}

// Max returns the more severe of two levels
func (l RiskLevel) Max(other RiskLevel) RiskLevel {
	if other > l {
		return other
	}
	return l
}

// MarshalText encodes the level as its lower-case name
func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(l.String())), nil
}

// UnmarshalText decodes a level name. Unknown names are rejected so that API
// payloads with typos fail loudly.
func (l *RiskLevel) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "safe":
		*l = RiskLevelSafe
	case "risky":
		*l = RiskLevelRisky
	case "malware":
		*l = RiskLevelMalware
	default:
		return fmt.Errorf("unknown risk level %q", string(b))
	}
	return nil
}

// ParseRiskLevel maps free-form text (advisor output, CLI flags) to a level.
// Matching is case-insensitive and anything unrecognised is Safe.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "risky":
		return RiskLevelRisky
	case "malware":
		return RiskLevelMalware
	default:
		return RiskLevelSafe
	}
}

// Confidence returns the fixed confidence attached to a verdict of this level
func (l RiskLevel) Confidence() float64 {
	switch l {
	case RiskLevelRisky:
		return 0.75
	case RiskLevelMalware:
		return 0.90
	default:
		return 0.85
	}
}

const (
	RecommendationSafe    = "This app appears safe to use. All security checks passed."
	RecommendationRisky   = "This app shows some risky behavior. Review permissions and consider limiting access."
	RecommendationMalware = "HIGH RISK: This app exhibits malicious behavior. Uninstall immediately and run a full system scan."
)

// Recommendation returns the user-facing advice for this level
func (l RiskLevel) Recommendation() string {
	switch l {
	case RiskLevelRisky:
		return RecommendationRisky
	case RiskLevelMalware:
		return RecommendationMalware
	default:
		return RecommendationSafe
	}
}

// Component names used in ComponentVerdict
const (
	ComponentPermissions = "permissions"
	ComponentProvenance  = "provenance"
	ComponentFiles       = "files"
	ComponentReputation  = "reputation"
	ComponentAdvisor     = "advisor"
)

// ComponentVerdict records what a single classifier concluded
type ComponentVerdict struct {
	Component string    `json:"component"`
	Level     RiskLevel `json:"level"`
}

// AnalysisResult is the final verdict for one application
type AnalysisResult struct {
	ID                   uuid.UUID          `json:"id"`
	App                  AppFacts           `json:"app"`
	RiskLevel            RiskLevel          `json:"risk_level"`
	Confidence           float64            `json:"confidence"`
	DangerousPermissions []string           `json:"dangerous_permissions"`
	Recommendation       string             `json:"recommendation"`
	InstallationSource   string             `json:"installation_source,omitempty"`
	Reputation           *ReputationVerdict `json:"reputation,omitempty"`
	Advisor              *AdvisorOpinion    `json:"advisor,omitempty"`
	Components           []ComponentVerdict `json:"components"`
	AnalyzedAt           time.Time          `json:"analyzed_at"`
}
