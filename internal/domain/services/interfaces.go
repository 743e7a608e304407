package services

import (
	"context"
	"errors"

	"appguard-lab/internal/domain/models"
)

var (
	// ErrNoComponentVerdicts guards Combine against an empty input
	ErrNoComponentVerdicts = errors.New("no component verdicts to combine")
	// ErrEnumerateApps marks a full scan whose app listing failed
	ErrEnumerateApps = errors.New("failed to enumerate installed apps")
	// ErrAppNotFound is returned when a package is not in the device inventory
	ErrAppNotFound = errors.New("app not found")
	// ErrDeviceNotFound is returned by AppSource when no inventory exists
	ErrDeviceNotFound = errors.New("device inventory not found")
)

// AppSource enumerates the installed applications of a device
type AppSource interface {
	ListApps(ctx context.Context, deviceID string) ([]models.AppFacts, error)
	// GetApp returns nil, nil when the package is not installed
	GetApp(ctx context.Context, deviceID, packageName string) (*models.AppFacts, error)
}

// ProvenanceSource reports the installer of a package
type ProvenanceSource interface {
	InstallInfo(ctx context.Context, deviceID, packageName string) (models.InstallInfo, error)
}

// InventoryStore persists uploaded device inventories and serves them back
// as app and provenance facts
type InventoryStore interface {
	AppSource
	ProvenanceSource
	SaveInventory(ctx context.Context, inv *models.Inventory) error
}

// FileReputation looks up a sha256 hash with a multi-engine scanner
type FileReputation interface {
	IsConfigured() bool
	LookupHash(ctx context.Context, sha256 string) (*models.ReputationVerdict, error)
}

// URLReputation checks a URL against threat lists
type URLReputation interface {
	IsConfigured() bool
	CheckURL(ctx context.Context, url string) (*models.URLVerdict, error)
}

// AppAdvisor gives a generative second opinion on an app
type AppAdvisor interface {
	IsConfigured() bool
	AnalyzeApp(ctx context.Context, app models.AppFacts) (*models.AdvisorOpinion, error)
}

// ChatAssistant answers free-form security questions
type ChatAssistant interface {
	IsConfigured() bool
	Chat(ctx context.Context, history []models.ChatMessage, question string) (*models.ChatReply, error)
}
