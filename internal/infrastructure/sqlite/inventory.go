// Package sqlite keeps device inventories in a local SQLite file so the CLI
// can scan without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
	"appguard-lab/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	id          TEXT PRIMARY KEY,
	uploaded_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS device_apps (
	device_id     TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	package_name  TEXT NOT NULL,
	position      INTEGER NOT NULL,
	app_name      TEXT NOT NULL DEFAULT '',
	permissions   TEXT NOT NULL DEFAULT '[]',
	is_system_app INTEGER NOT NULL DEFAULT 0,
	installer     TEXT NOT NULL DEFAULT '',
	apk_hash      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (device_id, package_name)
);
`

// InventoryStore is a SQLite-backed app and provenance source
type InventoryStore struct {
	db     *sql.DB
	logger *logger.Logger
}

var _ services.InventoryStore = (*InventoryStore)(nil)

// Open opens (creating if needed) the inventory database at path
func Open(ctx context.Context, path string, log *logger.Logger) (*InventoryStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply inventory schema: %w", err)
	}

	return &InventoryStore{
		db:     db,
		logger: log.WithComponent("sqlite-inventory"),
	}, nil
}

// Close closes the database
func (s *InventoryStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *InventoryStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveInventory replaces the stored inventory of a device
func (s *InventoryStore) SaveInventory(ctx context.Context, inv *models.Inventory) error {
	if inv.DeviceID == "" {
		return fmt.Errorf("inventory has no device id")
	}
	if inv.UploadedAt.IsZero() {
		inv.UploadedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO devices (id, uploaded_at) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET uploaded_at = excluded.uploaded_at`,
		inv.DeviceID, inv.UploadedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM device_apps WHERE device_id = ?`, inv.DeviceID); err != nil {
		return fmt.Errorf("failed to clear device apps: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO device_apps (
			device_id, package_name, position, app_name, permissions,
			is_system_app, installer, apk_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, app := range inv.Apps {
		perms, err := json.Marshal(nonNil(app.Permissions))
		if err != nil {
			return fmt.Errorf("failed to encode permissions of %s: %w", app.PackageName, err)
		}
		if _, err := stmt.ExecContext(ctx,
			inv.DeviceID, app.PackageName, i, app.AppName, string(perms),
			app.IsSystemApp, app.Installer, app.APKHash,
		); err != nil {
			return fmt.Errorf("failed to insert %s: %w", app.PackageName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inventory: %w", err)
	}

	s.logger.Info().Str("device_id", inv.DeviceID).Int("apps", len(inv.Apps)).Msg("inventory saved")
	return nil
}

// Devices lists the stored device ids, most recently uploaded first
func (s *InventoryStore) Devices(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM devices ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListApps returns every app of a device in upload order
func (s *InventoryStore) ListApps(ctx context.Context, deviceID string) ([]models.AppFacts, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM devices WHERE id = ?`, deviceID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT package_name, app_name, permissions, is_system_app, apk_hash
		FROM device_apps
		WHERE device_id = ?
		ORDER BY position`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device apps: %w", err)
	}
	defer rows.Close()

	apps := []models.AppFacts{}
	for rows.Next() {
		app, err := scanApp(rows, deviceID)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device apps: %w", err)
	}
	return apps, nil
}

// GetApp returns one app, or nil when the device does not have it
func (s *InventoryStore) GetApp(ctx context.Context, deviceID, packageName string) (*models.AppFacts, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT package_name, app_name, permissions, is_system_app, apk_hash
		FROM device_apps
		WHERE device_id = ? AND package_name = ?`, deviceID, packageName)

	app, err := scanApp(row, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// InstallInfo reports the recorded installer of a package
func (s *InventoryStore) InstallInfo(ctx context.Context, deviceID, packageName string) (models.InstallInfo, error) {
	var (
		installer string
		isSystem  bool
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT installer, is_system_app
		FROM device_apps
		WHERE device_id = ? AND package_name = ?`, deviceID, packageName,
	).Scan(&installer, &isSystem)
	if errors.Is(err, sql.ErrNoRows) {
		return models.InstallInfo{}, nil
	}
	if err != nil {
		return models.InstallInfo{}, fmt.Errorf("failed to get installer: %w", err)
	}
	return models.InstallInfo{Installer: installer, Found: installer != "", IsSystem: isSystem}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApp(row rowScanner, deviceID string) (models.AppFacts, error) {
	var (
		pkg, name, perms, hash string
		isSystem               bool
	)
	if err := row.Scan(&pkg, &name, &perms, &isSystem, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AppFacts{}, err
		}
		return models.AppFacts{}, fmt.Errorf("failed to scan device app: %w", err)
	}

	var permissions []string
	if err := json.Unmarshal([]byte(perms), &permissions); err != nil {
		return models.AppFacts{}, fmt.Errorf("failed to decode permissions of %s: %w", pkg, err)
	}
	return models.NewAppFacts(deviceID, pkg, name, permissions, isSystem, hash), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
