package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/allisson/heatpump-outbox/internal/database"
	"github.com/allisson/heatpump-outbox/internal/settings/domain"
)

// PostgreSQLSettingRepository handles settings persistence for PostgreSQL.
type PostgreSQLSettingRepository struct {
	db *sql.DB
}

// NewPostgreSQLSettingRepository creates a new PostgreSQLSettingRepository.
func NewPostgreSQLSettingRepository(db *sql.DB) *PostgreSQLSettingRepository {
	return &PostgreSQLSettingRepository{db: db}
}

// Get returns the settings of a device.
func (r *PostgreSQLSettingRepository) Get(ctx context.Context, deviceID string) (*domain.Setting, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + settingColumns + ` FROM settings WHERE device_id = $1`

	setting, err := scanSetting(querier.QueryRowContext(ctx, query, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSettingNotFound
	}
	return setting, err
}

// List returns the settings of every known device ordered by device id.
func (r *PostgreSQLSettingRepository) List(ctx context.Context) ([]*domain.Setting, error) {
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
func (r *PostgreSQLSettingRepository) ApplyPatch(
	ctx context.Context,
	deviceID string,
	patch domain.SettingPatch,
	updatedAt time.Time,
) (*domain.Setting, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO settings (` + settingColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  ON CONFLICT (device_id) DO UPDATE SET
			      indoor_target_temp = COALESCE(EXCLUDED.indoor_target_temp, settings.indoor_target_temp),
			      mode = COALESCE(EXCLUDED.mode, settings.mode),
			      curve = COALESCE(EXCLUDED.curve, settings.curve),
			      curve_min = COALESCE(EXCLUDED.curve_min, settings.curve_min),
			      curve_max = COALESCE(EXCLUDED.curve_max, settings.curve_max),
			      curve_plus_5 = COALESCE(EXCLUDED.curve_plus_5, settings.curve_plus_5),
			      curve_zero = COALESCE(EXCLUDED.curve_zero, settings.curve_zero),
			      curve_minus_5 = COALESCE(EXCLUDED.curve_minus_5, settings.curve_minus_5),
			      heatstop = COALESCE(EXCLUDED.heatstop, settings.heatstop),
			      integral_setting = COALESCE(EXCLUDED.integral_setting, settings.integral_setting),
			      updated_at = EXCLUDED.updated_at
			  RETURNING ` + settingColumns

	args := append([]any{deviceID}, patchArgs(patch)...)
	args = append(args, updatedAt.UTC())

	return scanSetting(querier.QueryRowContext(ctx, query, args...))
}
