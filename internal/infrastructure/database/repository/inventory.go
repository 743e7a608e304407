package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
	"appguard-lab/internal/infrastructure/database"
	"appguard-lab/pkg/logger"
)

// InventoryRepository stores device inventories in PostgreSQL and serves them
// as the app and provenance source of the risk engine.
type InventoryRepository struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(pool *pgxpool.Pool, log *logger.Logger) *InventoryRepository {
	return &InventoryRepository{
		pool:   pool,
		logger: log.WithComponent("inventory-repo"),
	}
}

var _ services.InventoryStore = (*InventoryRepository)(nil)

const appColumns = `package_name, app_name, permissions, is_system_app, apk_hash`

// SaveInventory replaces the stored inventory of a device
func (r *InventoryRepository) SaveInventory(ctx context.Context, inv *models.Inventory) error {
	if inv.DeviceID == "" {
		return fmt.Errorf("inventory has no device id")
	}
	if inv.UploadedAt.IsZero() {
		inv.UploadedAt = time.Now().UTC()
	}

	err := database.WithTx(ctx, r.pool, r.logger, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO devices (id, uploaded_at) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET uploaded_at = EXCLUDED.uploaded_at`,
			inv.DeviceID, timeToTimestamptz(inv.UploadedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert device: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM device_apps WHERE device_id = $1`, inv.DeviceID); err != nil {
			return fmt.Errorf("failed to clear device apps: %w", err)
		}

		batch := &pgx.Batch{}
		for i, app := range inv.Apps {
			batch.Queue(`
				INSERT INTO device_apps (
					device_id, package_name, position, app_name, permissions,
					is_system_app, installer, apk_hash
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (device_id, package_name) DO NOTHING`,
				inv.DeviceID, app.PackageName, i, textOrNull(app.AppName), nonNilStrings(app.Permissions),
				app.IsSystemApp, textOrNull(app.Installer), textOrNull(app.APKHash),
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range inv.Apps {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("failed to insert device app: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return err
	}

	r.logger.Info().Str("device_id", inv.DeviceID).Int("apps", len(inv.Apps)).Msg("inventory saved")
	return nil
}

// ListApps returns every app of a device in upload order
func (r *InventoryRepository) ListApps(ctx context.Context, deviceID string) ([]models.AppFacts, error) {
	var uploaded pgtype.Timestamptz
	err := r.pool.QueryRow(ctx, `SELECT uploaded_at FROM devices WHERE id = $1`, deviceID).Scan(&uploaded)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appColumns+`
		FROM device_apps
		WHERE device_id = $1
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

	r.logger.Debug().
		Str("device_id", deviceID).
		Int("apps", len(apps)).
		Time("uploaded_at", timestamptzToTime(uploaded)).
		Msg("inventory loaded")
	return apps, nil
}

// GetApp returns one app, or nil when the device does not have it
func (r *InventoryRepository) GetApp(ctx context.Context, deviceID, packageName string) (*models.AppFacts, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appColumns+`
		FROM device_apps
		WHERE device_id = $1 AND package_name = $2`, deviceID, packageName)

	app, err := scanApp(row, deviceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// InstallInfo reports the recorded installer of a package. Packages absent
// from the inventory have no installer.
func (r *InventoryRepository) InstallInfo(ctx context.Context, deviceID, packageName string) (models.InstallInfo, error) {
	var (
		installer pgtype.Text
		isSystem  bool
	)
	err := r.pool.QueryRow(ctx, `
		SELECT installer, is_system_app
		FROM device_apps
		WHERE device_id = $1 AND package_name = $2`, deviceID, packageName,
	).Scan(&installer, &isSystem)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.InstallInfo{}, nil
	}
	if err != nil {
		return models.InstallInfo{}, fmt.Errorf("failed to get installer: %w", err)
	}

	name := nullTextToString(installer)
	return models.InstallInfo{Installer: name, Found: name != "", IsSystem: isSystem}, nil
}

func scanApp(row pgx.Row, deviceID string) (models.AppFacts, error) {
	var (
		pkg         string
		appName     pgtype.Text
		permissions []string
		isSystem    bool
		apkHash     pgtype.Text
	)
	if err := row.Scan(&pkg, &appName, &permissions, &isSystem, &apkHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AppFacts{}, err
		}
		return models.AppFacts{}, fmt.Errorf("failed to scan device app: %w", err)
	}

	return models.NewAppFacts(deviceID, pkg, nullTextToString(appName), permissions, isSystem, nullTextToString(apkHash)), nil
}
