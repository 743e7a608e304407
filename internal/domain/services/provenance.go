package services

import (
	"context"
	"strings"

	"appguard-lab/internal/domain/models"
	"appguard-lab/pkg/logger"
)

const (
	// PlayStoreInstaller is the package name of the first-party store
	PlayStoreInstaller = "com.android.vending"
	// VendorPackagePrefix marks first-party vendor packages
	VendorPackagePrefix = "com.google."
)

// Installation source labels
const (
	SourceUnknownAPK = "Unknown/APK"
	SourcePlayStore  = "Google Play Store"
	SourceAmazon     = "Amazon Appstore"
	SourceSamsung    = "Samsung Galaxy Store"
	SourceUnknown    = "Unknown"
)

// ProvenanceResult is the outcome of a provenance check
type ProvenanceResult struct {
	Level      models.RiskLevel
	Info       models.InstallInfo
	Label      string
	Sideloaded bool
}

// ProvenanceChecker classifies where an app was installed from
type ProvenanceChecker struct {
	source ProvenanceSource
	logger *logger.Logger
}

// NewProvenanceChecker creates a new provenance checker
func NewProvenanceChecker(source ProvenanceSource, log *logger.Logger) *ProvenanceChecker {
	return &ProvenanceChecker{
		source: source,
		logger: log.WithComponent("provenance"),
	}
}

// Check returns Safe for store-installed, system and vendor apps and Risky
// for everything installed from elsewhere. An unreadable installer record is
// treated as an unknown source.
func (p *ProvenanceChecker) Check(ctx context.Context, app models.AppFacts) ProvenanceResult {
	info, err := p.source.InstallInfo(ctx, app.DeviceID, app.PackageName)
	if err != nil {
		p.logger.Warn().Err(err).Str("package", app.PackageName).Msg("installer lookup failed, assuming unknown source")
		if app.IsSystemApp || strings.HasPrefix(app.PackageName, VendorPackagePrefix) {
			return ProvenanceResult{Level: models.RiskLevelSafe, Label: SourceUnknown}
		}
		return ProvenanceResult{Level: models.RiskLevelRisky, Label: SourceUnknown, Sideloaded: true}
	}
	return ClassifyProvenance(app, info)
}

// StaticProvenance answers every lookup with the same installer record. It
// serves apps submitted inline rather than read from an inventory.
type StaticProvenance models.InstallInfo

// InstallInfo implements ProvenanceSource
func (s StaticProvenance) InstallInfo(_ context.Context, _, _ string) (models.InstallInfo, error) {
	return models.InstallInfo(s), nil
}

// ClassifyProvenance applies the provenance rules to already-fetched metadata
func ClassifyProvenance(app models.AppFacts, info models.InstallInfo) ProvenanceResult {
	res := ProvenanceResult{
		Info:  info,
		Label: InstallationSource(info),
	}

	installer := strings.TrimSpace(info.Installer)
	switch {
	case info.IsSystem || app.IsSystemApp || strings.HasPrefix(app.PackageName, VendorPackagePrefix):
		res.Level = models.RiskLevelSafe
	case installer == PlayStoreInstaller:
		res.Level = models.RiskLevelSafe
	default:
		// absent or unrecognised installer
		res.Sideloaded = true
		res.Level = models.RiskLevelRisky
	}

	// sideloaded with >= 2 dangerous permissions is Risky as well; the tier
	// does not escalate further here
	if res.Sideloaded && len(app.DangerousPermissions) >= 2 {
		res.Level = models.RiskLevelRisky
	}
	return res
}

// InstallationSource renders a human-readable installer label
func InstallationSource(info models.InstallInfo) string {
	installer := strings.TrimSpace(info.Installer)
	lower := strings.ToLower(installer)
	switch {
	case installer == "":
		return SourceUnknownAPK
	case installer == PlayStoreInstaller:
		return SourcePlayStore
	case strings.Contains(lower, "amazon"):
		return SourceAmazon
	case strings.Contains(lower, "samsung"):
		return SourceSamsung
	default:
		return "Third-party (" + installer + ")"
	}
}
