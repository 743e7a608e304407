package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"appguard-lab/pkg/logger"
)

// ScanRegistry keeps running and recently finished scans in memory so the
// API can poll and cancel them. Finished scans are evicted after ttl.
type ScanRegistry struct {
	orchestrator *Orchestrator
	ttl          time.Duration
	baseCtx      context.Context
	stop         context.CancelFunc

	mu    sync.Mutex
	tasks map[uuid.UUID]*ScanTask

	logger *logger.Logger
}

// NewScanRegistry creates a new registry
func NewScanRegistry(orchestrator *Orchestrator, ttl time.Duration, log *logger.Logger) *ScanRegistry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ScanRegistry{
		orchestrator: orchestrator,
		ttl:          ttl,
		baseCtx:      ctx,
		stop:         cancel,
		tasks:        make(map[uuid.UUID]*ScanTask),
		logger:       log.WithComponent("scan-registry"),
	}
}

// Start launches a scan that outlives the calling request. A device has at
// most one running scan: while one is in progress it is returned and started
// is false.
func (r *ScanRegistry) Start(deviceID string) (task *ScanTask, started bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked(time.Now())
	for _, t := range r.tasks {
		if done, _ := t.Finished(); !done && t.DeviceID == deviceID {
			r.logger.Debug().Str("scan_id", t.ID.String()).Str("device_id", deviceID).Msg("scan already running")
			return t, false
		}
	}

	task = r.orchestrator.Start(r.baseCtx, deviceID)
	r.tasks[task.ID] = task

	r.logger.Info().Str("scan_id", task.ID.String()).Str("device_id", deviceID).Msg("scan registered")
	return task, true
}

// Get returns a scan by id
func (r *ScanRegistry) Get(id uuid.UUID) (*ScanTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(time.Now())
	t, ok := r.tasks[id]
	return t, ok
}

// Cancel stops a scan; it reports false for unknown ids
func (r *ScanRegistry) Cancel(id uuid.UUID) bool {
	t, ok := r.Get(id)
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// Running returns the number of scans still in progress
func (r *ScanRegistry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tasks {
		if done, _ := t.Finished(); !done {
			n++
		}
	}
	return n
}

// Shutdown cancels every running scan
func (r *ScanRegistry) Shutdown() {
	r.stop()
}

func (r *ScanRegistry) evictLocked(now time.Time) {
	for id, t := range r.tasks {
		if done, at := t.Finished(); done && now.Sub(at) > r.ttl {
			delete(r.tasks, id)
		}
	}
}
