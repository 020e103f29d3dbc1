package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/allisson/heatpump-outbox/internal/database"
	"github.com/allisson/heatpump-outbox/internal/settings/domain"
)

// MySQLSettingRepository handles settings persistence for MySQL.
type MySQLSettingRepository struct {
	db *sql.DB
}

// NewMySQLSettingRepository creates a new MySQLSettingRepository.
func NewMySQLSettingRepository(db *sql.DB) *MySQLSettingRepository {
	return &MySQLSettingRepository{db: db}
}

// Get returns the settings of a device.
func (r *MySQLSettingRepository) Get(ctx context.Context, deviceID string) (*domain.Setting, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + settingColumns + ` FROM settings WHERE device_id = ?`

	setting, err := scanSetting(querier.QueryRowContext(ctx, query, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSettingNotFound
	}
	return setting, err
}

// List returns the settings of every known device ordered by device id.
func (r *MySQLSettingRepository) List(ctx context.Context) ([]*domain.Setting, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + settingColumns + ` FROM settings ORDER BY device_id`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	settings := make([]*domain.Setting, 0)
	for rows.Next() {
		setting, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return settings, nil
}

// ApplyPatch writes the present patch fields for the device, creating the row on
// first use, and returns the resulting settings.
func (r *MySQLSettingRepository) ApplyPatch(
	ctx context.Context,
	deviceID string,
	patch domain.SettingPatch,
	updatedAt time.Time,
) (*domain.Setting, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO settings (` + settingColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			      indoor_target_temp = COALESCE(VALUES(indoor_target_temp), indoor_target_temp),
			      mode = COALESCE(VALUES(mode), mode),
			      curve = COALESCE(VALUES(curve), curve),
			      curve_min = COALESCE(VALUES(curve_min), curve_min),
			      curve_max = COALESCE(VALUES(curve_max), curve_max),
			      curve_plus_5 = COALESCE(VALUES(curve_plus_5), curve_plus_5),
			      curve_zero = COALESCE(VALUES(curve_zero), curve_zero),
			      curve_minus_5 = COALESCE(VALUES(curve_minus_5), curve_minus_5),
			      heatstop = COALESCE(VALUES(heatstop), heatstop),
			      integral_setting = COALESCE(VALUES(integral_setting), integral_setting),
			      updated_at = VALUES(updated_at)`

	args := append([]any{deviceID}, patchArgs(patch)...)
	args = append(args, updatedAt.UTC())

	if _, err := querier.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	return r.Get(ctx, deviceID)
}
