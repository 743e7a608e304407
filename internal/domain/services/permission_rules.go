package services

import "appguard-lab/internal/domain/models"

// HighRiskPermissions grant control over other packages or the device.
// Requesting any one of them classifies the app as Malware.
var HighRiskPermissions = []string{
	models.PermissionPrefix + "INSTALL_PACKAGES",
	models.PermissionPrefix + "DELETE_PACKAGES",
	models.PermissionPrefix + "BIND_DEVICE_ADMIN",
	models.PermissionPrefix + "SYSTEM_ALERT_WINDOW",
	models.PermissionPrefix + "WRITE_SECURE_SETTINGS",
	models.PermissionPrefix + "MOUNT_UNMOUNT_FILESYSTEMS",
	models.PermissionPrefix + "CHANGE_COMPONENT_ENABLED_STATE",
}

// Permission thresholds
const (
	malwareDangerousThreshold = 8
	riskyDangerousThreshold   = 5
	broadDangerousThreshold   = 2
	broadTotalThreshold       = 25
)

var highRiskSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(HighRiskPermissions))
	for _, p := range HighRiskPermissions {
		m[p] = struct{}{}
	}
	return m
}()

// HighRiskPermissionsOf returns the high-risk permissions app requests
func HighRiskPermissionsOf(app models.AppFacts) []string {
	var out []string
	for _, p := range app.Permissions {
		if _, ok := highRiskSet[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ClassifyPermissions maps a permission set onto a risk tier
func ClassifyPermissions(app models.AppFacts) models.RiskLevel {
	if len(HighRiskPermissionsOf(app)) > 0 {
		return models.RiskLevelMalware
	}

	dangerous := len(app.DangerousPermissions)
	total := len(app.Permissions)

	switch {
	case dangerous >= malwareDangerousThreshold:
		return models.RiskLevelMalware
	case dangerous >= riskyDangerousThreshold:
		return models.RiskLevelRisky
	case dangerous >= broadDangerousThreshold && total > broadTotalThreshold:
		return models.RiskLevelRisky
	case dangerous >= 1:
		return models.RiskLevelRisky
	default:
		return models.RiskLevelSafe
	}
}
