package sources

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"appguard-lab/internal/config"
)

// Adapter failure classes. Callers reduce all of them to "no evidence"
// except interactive single-item scans, which surface the text.
var (
	ErrNotConfigured = errors.New("adapter not configured")
	ErrUnauthorized  = errors.New("adapter rejected credentials")
	ErrUnavailable   = errors.New("adapter unavailable")
)

// Unavailable wraps cause so that errors.Is(err, ErrUnavailable) holds
func Unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

// Adapter defines the common surface of the external lookup clients
type Adapter interface {
	// Slug returns the unique identifier for this adapter
	Slug() string

	// Name returns the human-readable name of this adapter
	Name() string

	// IsConfigured reports whether the adapter is enabled and has a credential
	IsConfigured() bool
}

// BaseAdapter provides common functionality for adapters
type BaseAdapter struct {
	slug   string
	name   string
	config config.AdapterConfig
}

// NewBaseAdapter creates a new base adapter
func NewBaseAdapter(slug, name string, cfg config.AdapterConfig) *BaseAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &BaseAdapter{
		slug:   slug,
		name:   name,
		config: cfg,
	}
}

// Slug returns the unique identifier for this adapter
func (a *BaseAdapter) Slug() string {
	return a.slug
}

// Name returns the human-readable name of this adapter
func (a *BaseAdapter) Name() string {
	return a.name
}

// IsConfigured requires both the enable flag and a non-blank key
func (a *BaseAdapter) IsConfigured() bool {
	return a.config.Enabled && strings.TrimSpace(a.config.APIKey) != ""
}

// Config returns the current configuration
func (a *BaseAdapter) Config() config.AdapterConfig {
	return a.config
}

// APIKey returns the trimmed credential
func (a *BaseAdapter) APIKey() string {
	return strings.TrimSpace(a.config.APIKey)
}
