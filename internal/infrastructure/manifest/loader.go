// Package manifest reads device inventory dumps written as YAML.
//
//	device_id: pixel-7
//	apps:
//	  - package_name: com.example.maps
//	    app_name: Maps
//	    installer: com.android.vending
//	    permissions:
//	      - android.permission.ACCESS_FINE_LOCATION
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"appguard-lab/internal/domain/models"
)

var (
	ErrNoDevice    = errors.New("manifest has no device_id")
	ErrNoPackage   = errors.New("manifest app has no package_name")
	ErrDuplicateID = errors.New("manifest lists a package twice")
)

// Load reads and validates the manifest at path. deviceID, when set,
// overrides the id recorded in the file.
func Load(path, deviceID string) (*models.Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data, deviceID)
}

// Parse decodes a manifest document
func Parse(data []byte, deviceID string) (*models.Inventory, error) {
	var inv models.Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if deviceID != "" {
		inv.DeviceID = deviceID
	}
	inv.DeviceID = strings.TrimSpace(inv.DeviceID)
	if inv.DeviceID == "" {
		return nil, ErrNoDevice
	}

	seen := make(map[string]struct{}, len(inv.Apps))
	for i := range inv.Apps {
		app := &inv.Apps[i]
		app.PackageName = strings.TrimSpace(app.PackageName)
		app.Installer = strings.TrimSpace(app.Installer)
		if app.PackageName == "" {
			return nil, fmt.Errorf("%w (entry %d)", ErrNoPackage, i+1)
		}
		if _, ok := seen[app.PackageName]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, app.PackageName)
		}
		seen[app.PackageName] = struct{}{}
	}

	if inv.Apps == nil {
		inv.Apps = []models.InventoryApp{}
	}
	return &inv, nil
}
