package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"appguard-lab/internal/config"
	"appguard-lab/internal/domain/models"
	"appguard-lab/pkg/logger"
)

// Combine reduces the available component verdicts to one tier:
// any Malware wins, then Risky when risky >= len/2 (integer division),
// then Risky when any component is Risky, otherwise Safe.
func Combine(levels []models.RiskLevel) (models.RiskLevel, error) {
	if len(levels) == 0 {
		return models.RiskLevelSafe, ErrNoComponentVerdicts
	}

	risky := 0
	for _, l := range levels {
		switch l {
		case models.RiskLevelMalware:
			return models.RiskLevelMalware, nil
		case models.RiskLevelRisky:
			risky++
		}
	}

	if risky >= len(levels)/2 {
		return models.RiskLevelRisky, nil
	}
	if risky > 0 {
		return models.RiskLevelRisky, nil
	}
	return models.RiskLevelSafe, nil
}

// AnalyzerConfig tunes the RiskAnalyzer
type AnalyzerConfig struct {
	ScanDir        string
	AdvisorGate    string
	AdapterTimeout time.Duration
}

// AnalyzerConfigFrom builds an AnalyzerConfig from the loaded config
func AnalyzerConfigFrom(cfg *config.Config) AnalyzerConfig {
	return AnalyzerConfig{
		ScanDir:        cfg.Scan.ScanDir,
		AdvisorGate:    cfg.Advisor.Gate,
		AdapterTimeout: cfg.Scan.AdapterTimeout,
	}
}

// RiskAnalyzer runs every classifier over one app and aggregates the result
type RiskAnalyzer struct {
	provenance *ProvenanceChecker
	files      *FileHeuristic
	reputation FileReputation
	advisor    AppAdvisor
	cfg        AnalyzerConfig
	logger     *logger.Logger
}

// NewRiskAnalyzer creates a new analyzer. reputation and advisor may be nil.
func NewRiskAnalyzer(
	provenance ProvenanceSource,
	reputation FileReputation,
	advisor AppAdvisor,
	cfg AnalyzerConfig,
	log *logger.Logger,
) *RiskAnalyzer {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = 15 * time.Second
	}
	if cfg.AdvisorGate == "" {
		cfg.AdvisorGate = config.AdvisorGateSuspicious
	}
	return &RiskAnalyzer{
		provenance: NewProvenanceChecker(provenance, log),
		files:      NewFileHeuristic(log),
		reputation: reputation,
		advisor:    advisor,
		cfg:        cfg,
		logger:     log.WithComponent("risk-analyzer"),
	}
}

// WithProvenance returns a copy of the analyzer that reads installer facts
// from source
func (a *RiskAnalyzer) WithProvenance(source ProvenanceSource) *RiskAnalyzer {
	cp := *a
	cp.provenance = &ProvenanceChecker{source: source, logger: a.provenance.logger}
	return &cp
}

// Files exposes the heuristic used for the system-location sweep
func (a *RiskAnalyzer) Files() *FileHeuristic {
	return a.files
}

// ScanDir is the fixed location swept by the file heuristic
func (a *RiskAnalyzer) ScanDir() string {
	return a.cfg.ScanDir
}

// Analyze classifies one app, sweeping the system location itself
func (a *RiskAnalyzer) Analyze(ctx context.Context, app models.AppFacts) (*models.AnalysisResult, error) {
	fileLevel := ClassifyFileCount(len(a.files.Scan(a.cfg.ScanDir)))
	return a.AnalyzeWithFileLevel(ctx, app, fileLevel)
}

// AnalyzeWithFileLevel classifies one app using a precomputed file-heuristic
// tier, so that a full scan sweeps the directory once.
func (a *RiskAnalyzer) AnalyzeWithFileLevel(ctx context.Context, app models.AppFacts, fileLevel models.RiskLevel) (*models.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prov := a.provenance.Check(ctx, app)
	components := []models.ComponentVerdict{
		{Component: models.ComponentPermissions, Level: ClassifyPermissions(app)},
		{Component: models.ComponentProvenance, Level: prov.Level},
		{Component: models.ComponentFiles, Level: fileLevel},
	}

	rep := a.lookupReputation(ctx, app)
	if rep != nil {
		components = append(components, models.ComponentVerdict{Component: models.ComponentReputation, Level: rep.Level()})
	}

	var opinion *models.AdvisorOpinion
	if a.shouldConsultAdvisor(components) {
		opinion = a.consultAdvisor(ctx, app)
		if opinion != nil {
			components = append(components, models.ComponentVerdict{Component: models.ComponentAdvisor, Level: opinion.Level()})
		}
	}

	levels := make([]models.RiskLevel, len(components))
	for i, c := range components {
		levels[i] = c.Level
	}
	overall, err := Combine(levels)
	if err != nil {
		return nil, err
	}

	return &models.AnalysisResult{
		ID:                   uuid.New(),
		App:                  app,
		RiskLevel:            overall,
		Confidence:           overall.Confidence(),
		DangerousPermissions: app.DangerousPermissions,
		Recommendation:       overall.Recommendation(),
		InstallationSource:   prov.Label,
		Reputation:           rep,
		Advisor:              opinion,
		Components:           components,
		AnalyzedAt:           time.Now().UTC(),
	}, nil
}

func (a *RiskAnalyzer) lookupReputation(ctx context.Context, app models.AppFacts) *models.ReputationVerdict {
	if a.reputation == nil || app.APKHash == "" || !a.reputation.IsConfigured() {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.AdapterTimeout)
	defer cancel()

	v, err := a.reputation.LookupHash(callCtx, app.APKHash)
	if err != nil {
		a.logger.Warn().Err(err).Str("package", app.PackageName).Msg("reputation lookup failed, continuing without it")
		return nil
	}
	return v
}

// shouldConsultAdvisor applies the gate policy: with the "suspicious" gate
// the advisor is only asked when some local classifier is not Safe.
func (a *RiskAnalyzer) shouldConsultAdvisor(components []models.ComponentVerdict) bool {
	if a.advisor == nil || !a.advisor.IsConfigured() {
		return false
	}
	if a.cfg.AdvisorGate == config.AdvisorGateAlways {
		return true
	}
	for _, c := range components {
		if c.Level != models.RiskLevelSafe {
			return true
		}
	}
	return false
}

func (a *RiskAnalyzer) consultAdvisor(ctx context.Context, app models.AppFacts) *models.AdvisorOpinion {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.AdapterTimeout)
	defer cancel()

	opinion, err := a.advisor.AnalyzeApp(callCtx, app)
	if err != nil {
		a.logger.Warn().Err(err).Str("package", app.PackageName).Msg("advisor unavailable, continuing without it")
		return nil
	}
	return opinion
}
