package models

import (
	"strings"
	"time"
)

// PermissionPrefix is the namespace of platform permissions
const PermissionPrefix = "android.permission."

// DangerousPermissions are the runtime permissions that grant access to
// personal data or device capabilities.
var DangerousPermissions = []string{
	PermissionPrefix + "CAMERA",
	PermissionPrefix + "RECORD_AUDIO",
	PermissionPrefix + "READ_SMS",
	PermissionPrefix + "SEND_SMS",
	PermissionPrefix + "READ_CONTACTS",
	PermissionPrefix + "WRITE_CONTACTS",
	PermissionPrefix + "READ_PHONE_STATE",
	PermissionPrefix + "CALL_PHONE",
	PermissionPrefix + "ACCESS_FINE_LOCATION",
	PermissionPrefix + "ACCESS_COARSE_LOCATION",
	PermissionPrefix + "READ_EXTERNAL_STORAGE",
	PermissionPrefix + "WRITE_EXTERNAL_STORAGE",
	PermissionPrefix + "READ_CALENDAR",
	PermissionPrefix + "WRITE_CALENDAR",
}

var dangerousSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(DangerousPermissions))
	for _, p := range DangerousPermissions {
		m[p] = struct{}{}
	}
	return m
}()

// IsDangerousPermission reports whether p is in the dangerous set
func IsDangerousPermission(p string) bool {
	_, ok := dangerousSet[p]
	return ok
}

// AppFacts is the immutable snapshot of one installed application
type AppFacts struct {
	PackageName          string   `json:"package_name" yaml:"package_name"`
	AppName              string   `json:"app_name" yaml:"app_name"`
	Permissions          []string `json:"permissions" yaml:"permissions"`
	DangerousPermissions []string `json:"dangerous_permissions" yaml:"-"`
	IsSystemApp          bool     `json:"is_system_app" yaml:"is_system_app"`
	DeviceID             string   `json:"device_id,omitempty" yaml:"-"`
	APKHash              string   `json:"apk_hash,omitempty" yaml:"apk_hash"`
}

// NewAppFacts builds the snapshot and derives the dangerous subset. Duplicate
// permissions are collapsed, order of first appearance is kept.
func NewAppFacts(deviceID, packageName, appName string, permissions []string, isSystem bool, apkHash string) AppFacts {
	perms := make([]string, 0, len(permissions))
	seen := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		perms = append(perms, p)
	}

	dangerous := make([]string, 0)
	for _, p := range perms {
		if IsDangerousPermission(p) {
			dangerous = append(dangerous, p)
		}
	}

	if appName == "" {
		appName = packageName
	}

	return AppFacts{
		PackageName:          packageName,
		AppName:              appName,
		Permissions:          perms,
		DangerousPermissions: dangerous,
		IsSystemApp:          isSystem,
		DeviceID:             deviceID,
		APKHash:              strings.ToLower(apkHash),
	}
}

// InstallInfo is what the platform knows about where a package came from
type InstallInfo struct {
	Installer string `json:"installer,omitempty"`
	Found     bool   `json:"found"`
	IsSystem  bool   `json:"is_system"`
}

// InventoryApp is one entry of a device inventory upload
type InventoryApp struct {
	PackageName string   `json:"package_name" yaml:"package_name"`
	AppName     string   `json:"app_name" yaml:"app_name"`
	Permissions []string `json:"permissions" yaml:"permissions"`
	IsSystemApp bool     `json:"is_system_app" yaml:"is_system_app"`
	Installer   string   `json:"installer,omitempty" yaml:"installer"`
	APKHash     string   `json:"apk_hash,omitempty" yaml:"apk_hash"`
}

// Facts converts the upload entry into an AppFacts snapshot
func (a InventoryApp) Facts(deviceID string) AppFacts {
	return NewAppFacts(deviceID, a.PackageName, a.AppName, a.Permissions, a.IsSystemApp, a.APKHash)
}

// Inventory is the full application list of one device
type Inventory struct {
	DeviceID   string         `json:"device_id" yaml:"device_id"`
	Apps       []InventoryApp `json:"apps" yaml:"apps"`
	UploadedAt time.Time      `json:"uploaded_at" yaml:"-"`
}
