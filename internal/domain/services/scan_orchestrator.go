package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"appguard-lab/internal/domain/models"
	"appguard-lab/pkg/logger"
)

// DefaultMaxApps caps how many apps a full scan analyses
const DefaultMaxApps = 20

// ScanEventPublisher fans scan events out to other consumers. Failures are
// logged and never affect the scan.
type ScanEventPublisher interface {
	PublishScanProgress(ctx context.Context, deviceID string, p models.ScanProgress) error
	PublishScanCompleted(ctx context.Context, s *models.ScanSummary) error
}

// Orchestrator runs full-device scans
type Orchestrator struct {
	apps      AppSource
	analyzer  *RiskAnalyzer
	maxApps   int
	publisher ScanEventPublisher
	logger    *logger.Logger
}

// NewOrchestrator creates a new orchestrator. publisher may be nil.
func NewOrchestrator(apps AppSource, analyzer *RiskAnalyzer, maxApps int, publisher ScanEventPublisher, log *logger.Logger) *Orchestrator {
	if maxApps <= 0 {
		maxApps = DefaultMaxApps
	}
	return &Orchestrator{
		apps:      apps,
		analyzer:  analyzer,
		maxApps:   maxApps,
		publisher: publisher,
		logger:    log.WithComponent("scan-orchestrator"),
	}
}

// ScanTask is a running full scan. Events is single-consumer and is closed
// when the scan finishes.
type ScanTask struct {
	ID       uuid.UUID
	DeviceID string

	events chan models.ScanProgress
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.RWMutex
	last     *models.ScanProgress
	summary  *models.ScanSummary
	err      error
	finished time.Time
}

// Events streams one progress event per processed app, in order
func (t *ScanTask) Events() <-chan models.ScanProgress {
	return t.events
}

// Cancel stops the scan before the next app. The app in flight still finishes
// and is counted.
func (t *ScanTask) Cancel() {
	t.cancel()
}

// Done is closed once the summary is available
func (t *ScanTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the scan finishes
func (t *ScanTask) Wait() (*models.ScanSummary, error) {
	<-t.done
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.summary, t.err
}

// Progress returns the latest progress event, or nil before the first app
func (t *ScanTask) Progress() *models.ScanProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Finished reports whether the scan is over and when it ended
func (t *ScanTask) Finished() (bool, time.Time) {
	select {
	case <-t.done:
		t.mu.RLock()
		defer t.mu.RUnlock()
		return true, t.finished
	default:
		return false, time.Time{}
	}
}

// Run scans a device and blocks until done
func (o *Orchestrator) Run(ctx context.Context, deviceID string) (*models.ScanSummary, error) {
	return o.Start(ctx, deviceID).Wait()
}

// Start launches a scan on its own goroutine
func (o *Orchestrator) Start(ctx context.Context, deviceID string) *ScanTask {
	ctx, cancel := context.WithCancel(ctx)
	task := &ScanTask{
		ID:       uuid.New(),
		DeviceID: deviceID,
		// at most maxApps events are ever sent, so sends never block
		events: make(chan models.ScanProgress, o.maxApps),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer cancel()
		summary, err := o.run(ctx, task)

		task.mu.Lock()
		task.summary = summary
		task.err = err
		task.finished = time.Now()
		task.mu.Unlock()

		close(task.events)
		close(task.done)
	}()

	return task
}

func (o *Orchestrator) run(ctx context.Context, task *ScanTask) (*models.ScanSummary, error) {
	log := o.logger.WithScan(task.ID.String(), task.DeviceID)
	summary := &models.ScanSummary{
		ScanID:    task.ID,
		DeviceID:  task.DeviceID,
		Status:    models.ScanStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	log.Info().Int("max_apps", o.maxApps).Msg("scan started")

	apps, err := o.apps.ListApps(ctx, task.DeviceID)
	if err != nil {
		summary.Status = models.ScanStatusFailed
		summary.Error = err.Error()
		summary.CompletedAt = time.Now().UTC()
		log.Error().Err(err).Msg("scan failed: could not enumerate apps")
		o.publishCompleted(summary, log)
		return summary, fmt.Errorf("%w: %v", ErrEnumerateApps, err)
	}

	files := o.analyzer.Files().Scan(o.analyzer.ScanDir())
	summary.SuspiciousFiles = len(files)
	fileLevel := ClassifyFileCount(len(files))

	if len(apps) > o.maxApps {
		apps = apps[:o.maxApps]
	}

	// an app that has started always runs to completion; adapter calls keep
	// their own timeouts
	appCtx := context.WithoutCancel(ctx)

	for i, app := range apps {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		result, err := o.analyzeSafely(appCtx, app, fileLevel)
		if err != nil {
			summary.SkippedApps++
			log.Warn().Err(err).Str("package", app.PackageName).Msg("skipping app")
		} else {
			summary.Record(result.RiskLevel)
		}

		label := app.AppName
		if label == "" {
			label = app.PackageName
		}
		o.emit(task, models.NewScanProgress(task.ID, i+1, len(apps), label), log)
	}

	summary.CompletedAt = time.Now().UTC()
	if summary.Cancelled {
		summary.Status = models.ScanStatusCancelled
	} else {
		summary.Status = models.ScanStatusCompleted
	}

	log.Info().
		Int("safe", summary.SafeApps).
		Int("risky", summary.RiskyApps).
		Int("malware", summary.MalwareApps).
		Int("skipped", summary.SkippedApps).
		Int("suspicious_files", summary.SuspiciousFiles).
		Bool("cancelled", summary.Cancelled).
		Msg("scan finished")

	o.publishCompleted(summary, log)
	return summary, nil
}

// analyzeSafely converts a panic in any classifier into a per-app error
func (o *Orchestrator) analyzeSafely(ctx context.Context, app models.AppFacts, fileLevel models.RiskLevel) (result *models.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic analysing %s: %v", app.PackageName, r)
		}
	}()
	return o.analyzer.AnalyzeWithFileLevel(ctx, app, fileLevel)
}

func (o *Orchestrator) emit(task *ScanTask, p models.ScanProgress, log *logger.Logger) {
	task.mu.Lock()
	task.last = &p
	task.mu.Unlock()

	task.events <- p

	if o.publisher != nil {
		if err := o.publisher.PublishScanProgress(context.Background(), task.DeviceID, p); err != nil {
			log.Debug().Err(err).Msg("failed to publish scan progress")
		}
	}
}

func (o *Orchestrator) publishCompleted(s *models.ScanSummary, log *logger.Logger) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishScanCompleted(context.Background(), s); err != nil {
		log.Debug().Err(err).Msg("failed to publish scan completion")
	}
}
