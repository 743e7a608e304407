package sources

import (
	"fmt"
	"sort"
	"sync"

	"appguard-lab/pkg/logger"
)

// Registry tracks the external lookup adapters wired into a process
type Registry struct {
	adapters map[string]Adapter
	mu       sync.RWMutex
	logger   *logger.Logger
}

// NewRegistry creates a new adapter registry
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		logger:   log.WithComponent("adapter-registry"),
	}
}

// Register registers an adapter
func (r *Registry) Register(adapter Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slug := adapter.Slug()
	if _, exists := r.adapters[slug]; exists {
		return fmt.Errorf("adapter already registered: %s", slug)
	}

	r.adapters[slug] = adapter
	r.logger.Info().
		Str("slug", slug).
		Str("name", adapter.Name()).
		Bool("configured", adapter.IsConfigured()).
		Msg("registered adapter")

	return nil
}

// Get returns an adapter by slug
func (r *Registry) Get(slug string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[slug]
	return a, ok
}

// AdapterStatus is the readiness view of one adapter
type AdapterStatus struct {
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// Status lists all adapters sorted by slug
func (r *Registry) Status() []AdapterStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AdapterStatus, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, AdapterStatus{
			Slug:       a.Slug(),
			Name:       a.Name(),
			Configured: a.IsConfigured(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// CountConfigured returns the number of usable adapters
func (r *Registry) CountConfigured() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, a := range r.adapters {
		if a.IsConfigured() {
			count++
		}
	}
	return count
}
