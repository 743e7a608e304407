package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appguard-lab/internal/config"
	"appguard-lab/internal/domain/models"
	"appguard-lab/pkg/logger"
)

const (
	safe    = models.RiskLevelSafe
	risky   = models.RiskLevelRisky
	malware = models.RiskLevelMalware
)

func TestCombine(t *testing.T) {
	tests := []struct {
		name   string
		levels []models.RiskLevel
		want   models.RiskLevel
	}{
		{"all safe", []models.RiskLevel{safe, safe, safe}, safe},
		{"two safe", []models.RiskLevel{safe, safe}, safe},
		{"single safe follows the majority rule", []models.RiskLevel{safe}, risky},
		{"one risky of three", []models.RiskLevel{safe, risky, safe}, risky},
		{"even split", []models.RiskLevel{safe, risky, safe, risky}, risky},
		{"one risky of four", []models.RiskLevel{safe, safe, risky, safe}, risky},
		{"malware wins", []models.RiskLevel{safe, safe, malware}, malware},
		{"malware beats risky majority", []models.RiskLevel{risky, risky, malware}, malware},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Combine(tt.levels)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCombineEmpty(t *testing.T) {
	_, err := Combine(nil)
	assert.ErrorIs(t, err, ErrNoComponentVerdicts)
}

// every combination of up to four components
func allCombinations(maxLen int) [][]models.RiskLevel {
	var out [][]models.RiskLevel
	var build func(prefix []models.RiskLevel)
	build = func(prefix []models.RiskLevel) {
		if len(prefix) > 0 {
			out = append(out, append([]models.RiskLevel{}, prefix...))
		}
		if len(prefix) == maxLen {
			return
		}
		for _, l := range []models.RiskLevel{safe, risky, malware} {
			build(append(prefix, l))
		}
	}
	build(nil)
	return out
}

func TestCombineMonotonic(t *testing.T) {
	for _, levels := range allCombinations(4) {
		base, err := Combine(levels)
		require.NoError(t, err)

		for i := range levels {
			for raised := levels[i] + 1; raised <= malware; raised++ {
				bumped := append([]models.RiskLevel{}, levels...)
				bumped[i] = raised
				got, err := Combine(bumped)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got, base, "raising %v to %v", levels, bumped)
			}
		}
	}
}

func TestCombineIdempotent(t *testing.T) {
	for _, levels := range allCombinations(3) {
		first, err := Combine(levels)
		require.NoError(t, err)
		second, err := Combine(levels)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func newTestAnalyzer(t *testing.T, prov ProvenanceSource, rep FileReputation, adv AppAdvisor, gate string) *RiskAnalyzer {
	t.Helper()
	return NewRiskAnalyzer(prov, rep, adv, AnalyzerConfig{
		ScanDir:     t.TempDir(),
		AdvisorGate: gate,
	}, logger.NewNop())
}

func playStore(pkgs ...string) *fakeProvenance {
	installers := make(map[string]string, len(pkgs))
	for _, p := range pkgs {
		installers[p] = PlayStoreInstaller
	}
	return &fakeProvenance{installers: installers}
}

func TestAnalyzeDeviceAdminIsMalware(t *testing.T) {
	app := storeApp("com.example.locker", perm("BIND_DEVICE_ADMIN"))
	a := newTestAnalyzer(t, playStore(app.PackageName), nil, nil, "")

	res, err := a.Analyze(context.Background(), app)
	require.NoError(t, err)

	assert.Equal(t, models.RiskLevelMalware, res.RiskLevel)
	assert.InDelta(t, 0.90, res.Confidence, 1e-9)
	assert.Equal(t, models.RecommendationMalware, res.Recommendation)
	assert.Equal(t, SourcePlayStore, res.InstallationSource)
	assert.Nil(t, res.Reputation)
	assert.Nil(t, res.Advisor)
	assert.Len(t, res.Components, 3)
}

func TestAnalyzeStoreInstalledIsSafe(t *testing.T) {
	app := storeApp("com.example.notes", perm("INTERNET"), perm("VIBRATE"))
	a := newTestAnalyzer(t, playStore(app.PackageName), nil, nil, "")

	res, err := a.Analyze(context.Background(), app)
	require.NoError(t, err)

	assert.Equal(t, models.RiskLevelSafe, res.RiskLevel)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	assert.Equal(t, models.RecommendationSafe, res.Recommendation)
	assert.Empty(t, res.DangerousPermissions)
}

func TestAnalyzeSideloadedIsRisky(t *testing.T) {
	app := storeApp("com.example.apk", perm("CAMERA"))
	a := newTestAnalyzer(t, &fakeProvenance{}, nil, nil, "")

	res, err := a.Analyze(context.Background(), app)
	require.NoError(t, err)

	assert.Equal(t, models.RiskLevelRisky, res.RiskLevel)
	assert.InDelta(t, 0.75, res.Confidence, 1e-9)
	assert.Equal(t, SourceUnknownAPK, res.InstallationSource)
}

func TestAnalyzeSuspiciousFilesRaiseLevel(t *testing.T) {
	app := storeApp("com.example.notes")
	a := newTestAnalyzer(t, playStore(app.PackageName), nil, nil, "")
	for _, name := range []string{"a.exe", "b.apk", "c.bat"} {
		touch(t, filepath.Join(a.ScanDir(), name))
	}

	res, err := a.Analyze(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelMalware, res.RiskLevel)
}

func TestAnalyzeReputation(t *testing.T) {
	hashed := models.NewAppFacts("dev-1", "com.example.game", "Game", nil, false, "abc123")

	tests := []struct {
		name      string
		rep       *fakeReputation
		app       models.AppFacts
		wantLevel models.RiskLevel
		wantRep   bool
		wantCalls int32
	}{
		{
			name:      "many detections",
			rep:       &fakeReputation{configured: true, verdict: models.NewReputationVerdict(12, 0, 40, 10)},
			app:       hashed,
			wantLevel: malware,
			wantRep:   true,
			wantCalls: 1,
		},
		{
			name:      "clean",
			rep:       &fakeReputation{configured: true, verdict: models.NewReputationVerdict(0, 0, 60, 10)},
			app:       hashed,
			wantLevel: safe,
			wantRep:   true,
			wantCalls: 1,
		},
		{
			name:      "lookup failure is dropped",
			rep:       &fakeReputation{configured: true, err: errors.New("timeout")},
			app:       hashed,
			wantLevel: safe,
			wantCalls: 1,
		},
		{
			name:      "not configured",
			rep:       &fakeReputation{verdict: models.NewReputationVerdict(12, 0, 40, 10)},
			app:       hashed,
			wantLevel: safe,
		},
		{
			name:      "no hash",
			rep:       &fakeReputation{configured: true, verdict: models.NewReputationVerdict(12, 0, 40, 10)},
			app:       storeApp("com.example.game"),
			wantLevel: safe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyzer(t, playStore(tt.app.PackageName), tt.rep, nil, "")
			res, err := a.Analyze(context.Background(), tt.app)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLevel, res.RiskLevel)
			assert.Equal(t, tt.wantRep, res.Reputation != nil)
			assert.Equal(t, tt.wantCalls, tt.rep.calls.Load())
		})
	}
}

func TestAnalyzeAdvisorGate(t *testing.T) {
	tests := []struct {
		name      string
		gate      string
		app       models.AppFacts
		sideload  bool
		opinion   string
		advErr    error
		wantCalls int
		wantLevel models.RiskLevel
	}{
		{
			name:      "suspicious gate skips clean apps",
			gate:      config.AdvisorGateSuspicious,
			app:       storeApp("com.example.clean"),
			opinion:   "Malware",
			wantCalls: 0,
			wantLevel: safe,
		},
		{
			name:      "always gate asks for clean apps",
			gate:      config.AdvisorGateAlways,
			app:       storeApp("com.example.clean"),
			opinion:   "Malware",
			wantCalls: 1,
			wantLevel: malware,
		},
		{
			name:      "suspicious gate asks when something is off",
			gate:      config.AdvisorGateSuspicious,
			app:       storeApp("com.example.apk"),
			sideload:  true,
			opinion:   "malware",
			wantCalls: 1,
			wantLevel: malware,
		},
		{
			name:      "advisor failure keeps local verdict",
			gate:      config.AdvisorGateAlways,
			app:       storeApp("com.example.apk"),
			sideload:  true,
			advErr:    errors.New("rate limited"),
			wantCalls: 1,
			wantLevel: risky,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := playStore(tt.app.PackageName)
			if tt.sideload {
				prov = &fakeProvenance{}
			}
			adv := &fakeAdvisor{configured: true, err: tt.advErr}
			if tt.advErr == nil {
				adv.opinion = &models.AdvisorOpinion{RiskLevel: tt.opinion, SecurityScore: 10}
			}

			a := newTestAnalyzer(t, prov, nil, adv, tt.gate)
			res, err := a.Analyze(context.Background(), tt.app)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCalls, adv.calls())
			assert.Equal(t, tt.wantLevel, res.RiskLevel)
			assert.Equal(t, tt.wantCalls == 1 && tt.advErr == nil, res.Advisor != nil)
		})
	}
}

func TestAnalyzeUnconfiguredAdvisorIsIgnored(t *testing.T) {
	adv := &fakeAdvisor{opinion: &models.AdvisorOpinion{RiskLevel: "Malware"}}
	a := newTestAnalyzer(t, &fakeProvenance{}, nil, adv, config.AdvisorGateAlways)

	res, err := a.Analyze(context.Background(), storeApp("com.example.apk"))
	require.NoError(t, err)
	assert.Zero(t, adv.calls())
	assert.Equal(t, risky, res.RiskLevel)
}

func TestAnalyzeCancelledContext(t *testing.T) {
	a := newTestAnalyzer(t, &fakeProvenance{}, nil, nil, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, storeApp("com.example.apk"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeAdapterTimeout(t *testing.T) {
	app := models.NewAppFacts("dev-1", "com.example.game", "Game", nil, false, "abc123")
	stalled := &stalledAdapter{}
	a := NewRiskAnalyzer(playStore(app.PackageName), stalled, stalled, AnalyzerConfig{
		ScanDir:        t.TempDir(),
		AdvisorGate:    config.AdvisorGateAlways,
		AdapterTimeout: 20 * time.Millisecond,
	}, logger.NewNop())

	done := make(chan struct{})
	var (
		res *models.AnalysisResult
		err error
	)
	go func() {
		defer close(done)
		res, err = a.Analyze(context.Background(), app)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("analysis did not return after the adapter timeout")
	}

	require.NoError(t, err)
	assert.Nil(t, res.Reputation)
	assert.Nil(t, res.Advisor)
	assert.Equal(t, safe, res.RiskLevel)
	assert.Equal(t, int32(1), stalled.reputationCalls.Load())
	assert.Equal(t, int32(1), stalled.advisorCalls.Load())

	names := make([]string, len(res.Components))
	for i, c := range res.Components {
		names[i] = c.Component
	}
	assert.Equal(t, []string{models.ComponentPermissions, models.ComponentProvenance, models.ComponentFiles}, names)
}
