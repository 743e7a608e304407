package services

import (
	"context"
	"sync"
	"sync/atomic"

	"appguard-lab/internal/domain/models"
)

type fakeAppSource struct {
	apps []models.AppFacts
	err  error
}

func (f *fakeAppSource) ListApps(_ context.Context, _ string) ([]models.AppFacts, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.apps, nil
}

func (f *fakeAppSource) GetApp(_ context.Context, _ string, pkg string) (*models.AppFacts, error) {
	for i := range f.apps {
		if f.apps[i].PackageName == pkg {
			return &f.apps[i], nil
		}
	}
	return nil, nil
}

// fakeProvenance returns a fixed installer per package, optionally failing or
// panicking for selected ones
type fakeProvenance struct {
	installers map[string]string
	system     map[string]bool
	failFor    map[string]error
	panicFor   map[string]bool
	hook       func(pkg string)
}

func (f *fakeProvenance) InstallInfo(_ context.Context, _ string, pkg string) (models.InstallInfo, error) {
	if f.hook != nil {
		f.hook(pkg)
	}
	if f.panicFor[pkg] {
		panic("installer service crashed")
	}
	if err := f.failFor[pkg]; err != nil {
		return models.InstallInfo{}, err
	}
	installer, ok := f.installers[pkg]
	return models.InstallInfo{Installer: installer, Found: ok && installer != "", IsSystem: f.system[pkg]}, nil
}

type fakeReputation struct {
	configured bool
	verdict    *models.ReputationVerdict
	err        error
	calls      atomic.Int32
}

func (f *fakeReputation) IsConfigured() bool { return f.configured }

func (f *fakeReputation) LookupHash(_ context.Context, _ string) (*models.ReputationVerdict, error) {
	f.calls.Add(1)
	return f.verdict, f.err
}

type fakeAdvisor struct {
	configured bool
	opinion    *models.AdvisorOpinion
	err        error

	mu       sync.Mutex
	packages []string
}

func (f *fakeAdvisor) IsConfigured() bool { return f.configured }

func (f *fakeAdvisor) AnalyzeApp(_ context.Context, app models.AppFacts) (*models.AdvisorOpinion, error) {
	f.mu.Lock()
	f.packages = append(f.packages, app.PackageName)
	f.mu.Unlock()
	return f.opinion, f.err
}

func (f *fakeAdvisor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.packages)
}

// stalledAdapter never answers; it returns only once the call deadline fires
type stalledAdapter struct {
	reputationCalls atomic.Int32
	advisorCalls    atomic.Int32
}

func (s *stalledAdapter) IsConfigured() bool { return true }

func (s *stalledAdapter) LookupHash(ctx context.Context, _ string) (*models.ReputationVerdict, error) {
	s.reputationCalls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stalledAdapter) AnalyzeApp(ctx context.Context, _ models.AppFacts) (*models.AdvisorOpinion, error) {
	s.advisorCalls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingPublisher struct {
	mu        sync.Mutex
	progress  []models.ScanProgress
	completed []*models.ScanSummary
}

func (p *recordingPublisher) PublishScanProgress(_ context.Context, _ string, ev models.ScanProgress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, ev)
	return nil
}

func (p *recordingPublisher) PublishScanCompleted(_ context.Context, s *models.ScanSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, s)
	return nil
}

func perm(name string) string {
	return models.PermissionPrefix + name
}

func storeApp(pkg string, perms ...string) models.AppFacts {
	return models.NewAppFacts("dev-1", pkg, pkg, perms, false, "")
}
