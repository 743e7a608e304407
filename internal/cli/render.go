package cli

import (
	"fmt"
	"io"
	"strings"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/sources"
	"appguard-lab/internal/streaming"
)

func levelIcon(l models.RiskLevel) string {
	switch l {
	case models.RiskLevelMalware:
		return "✖"
	case models.RiskLevelRisky:
		return "!"
	default:
		return "✔"
	}
}

func renderAnalysis(w io.Writer, r *models.AnalysisResult) {
	fmt.Fprintf(w, "%s %s (%s)\n", levelIcon(r.RiskLevel), r.App.AppName, r.App.PackageName)
	fmt.Fprintf(w, "  Risk level:    %s (confidence %.0f%%)\n", r.RiskLevel, r.Confidence*100)
	if r.InstallationSource != "" {
		fmt.Fprintf(w, "  Installed via: %s\n", r.InstallationSource)
	}
	if len(r.DangerousPermissions) > 0 {
		fmt.Fprintf(w, "  Dangerous permissions (%d):\n", len(r.DangerousPermissions))
		for _, p := range r.DangerousPermissions {
			fmt.Fprintf(w, "    - %s\n", strings.TrimPrefix(p, models.PermissionPrefix))
		}
	}
	if r.Reputation != nil {
		fmt.Fprintf(w, "  Reputation:    %s (%s)\n", r.Reputation.Verdict, r.Reputation.DetectionRatio())
	}
	if r.Advisor != nil {
		fmt.Fprintf(w, "  Advisor:       %s, score %.0f/100\n", r.Advisor.RiskLevel, r.Advisor.SecurityScore)
		for _, c := range r.Advisor.Concerns {
			fmt.Fprintf(w, "    - %s\n", c)
		}
	}
	fmt.Fprintf(w, "  %s\n", r.Recommendation)
}

func renderApps(w io.Writer, apps []models.AppFacts) {
	if len(apps) == 0 {
		fmt.Fprintln(w, "No apps in inventory.")
		return
	}
	for _, a := range apps {
		kind := "user"
		if a.IsSystemApp {
			kind = "system"
		}
		fmt.Fprintf(w, "  %-40s %-6s %d permissions, %d dangerous\n", a.PackageName, kind, len(a.Permissions), len(a.DangerousPermissions))
	}
	fmt.Fprintf(w, "%d apps\n", len(apps))
}

func renderProgress(w io.Writer, p models.ScanProgress) {
	fmt.Fprintf(w, "[%3d%%] %d/%d %s\n", p.Percent, p.Index, p.Total, p.Label)
}

func renderSummary(w io.Writer, s *models.ScanSummary) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Scan %s on %s: %s\n", s.ScanID, s.DeviceID, s.Status)
	fmt.Fprintf(w, "  Apps scanned:     %d\n", s.TotalAppsScanned)
	fmt.Fprintf(w, "  Safe:             %d\n", s.SafeApps)
	fmt.Fprintf(w, "  Risky:            %d\n", s.RiskyApps)
	fmt.Fprintf(w, "  Malware:          %d\n", s.MalwareApps)
	if s.SkippedApps > 0 {
		fmt.Fprintf(w, "  Skipped:          %d\n", s.SkippedApps)
	}
	fmt.Fprintf(w, "  Suspicious files: %d\n", s.SuspiciousFiles)
	if s.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", s.Error)
	}
}

func renderFile(w io.Writer, r *models.FileScanResult) {
	icon := "✔"
	if r.ThreatDetected {
		icon = "✖"
	}
	fmt.Fprintf(w, "%s %s (%d bytes)\n", icon, r.FileName, r.FileSize)
	if r.SHA256 != "" {
		fmt.Fprintf(w, "  SHA-256: %s\n", r.SHA256)
	}
	fmt.Fprintf(w, "  Threat level: %s\n", r.ThreatLevel)
	fmt.Fprintf(w, "  %s\n", r.ScanDetails)
}

func renderURL(w io.Writer, v *models.URLVerdict) {
	if v.IsThreat {
		fmt.Fprintf(w, "✖ %s is unsafe: %s (%s)\n", v.URL, v.ThreatType, v.PlatformType)
		return
	}
	fmt.Fprintf(w, "✔ %s is safe\n", v.URL)
}

func renderEmail(w io.Writer, r *models.EmailScanResult) {
	if !r.IsPhishing {
		fmt.Fprintf(w, "✔ No phishing indicators (threat level %s)\n", r.ThreatLevel)
	} else {
		fmt.Fprintf(w, "✖ Likely phishing (threat level %s)\n", r.ThreatLevel)
	}
	for _, reason := range r.Reasons {
		fmt.Fprintf(w, "  - %s\n", reason)
	}
}

func renderSuspicious(w io.Writer, r *models.SuspiciousFilesReport) {
	fmt.Fprintf(w, "%s %d suspicious files in %s (%s)\n", levelIcon(r.Level), len(r.Files), r.Directory, r.Level)
	for _, f := range r.Files {
		fmt.Fprintf(w, "  - %s\n", f)
	}
}

func renderCleanup(w io.Writer, r *models.CleanupReport) {
	fmt.Fprintf(w, "Cleaned %d, quarantined %d (dry run)\n", r.Cleaned, r.Quarantined)
	for _, f := range r.Files {
		fmt.Fprintf(w, "  - %s\n", f)
	}
}

func renderAdapters(w io.Writer, status []sources.AdapterStatus) {
	for _, s := range status {
		state := "not configured"
		if s.Configured {
			state = "configured"
		}
		fmt.Fprintf(w, "  %-14s %-28s %s\n", s.Slug, s.Name, state)
	}
}

func renderEvent(w io.Writer, e *streaming.ScanEvent) {
	switch {
	case e.Progress != nil:
		fmt.Fprintf(w, "%s ", e.DeviceID)
		renderProgress(w, *e.Progress)
	case e.Summary != nil:
		renderSummary(w, e.Summary)
	}
}
