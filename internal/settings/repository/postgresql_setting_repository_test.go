package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/heatpump-outbox/internal/settings/domain"
)

var settingRowColumns = []string{
	"device_id", "indoor_target_temp", "mode", "curve", "curve_min", "curve_max",
	"curve_plus_5", "curve_zero", "curve_minus_5", "heatstop", "integral_setting", "updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func ptr[T any](v T) *T { return &v }

func TestPostgreSQLSettingRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSettingRepository(db)
	updatedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM settings WHERE device_id = \$1`).
		WithArgs("hp-1").
		WillReturnRows(sqlmock.NewRows(settingRowColumns).
			AddRow("hp-1", 21.5, 1, nil, nil, nil, nil, nil, nil, 16, 300, updatedAt))

	setting, err := repo.Get(context.Background(), "hp-1")
	require.NoError(t, err)

	assert.Equal(t, "hp-1", setting.DeviceID)
	assert.Equal(t, 21.5, *setting.IndoorTargetTemp)
	assert.Equal(t, 1, *setting.Mode)
	assert.Nil(t, setting.Curve)
	assert.Equal(t, 16, *setting.Heatstop)
	assert.Equal(t, 300, *setting.IntegralSetting)
	assert.Equal(t, updatedAt, setting.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLSettingRepository_Get_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSettingRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM settings WHERE device_id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(settingRowColumns))

	setting, err := repo.Get(context.Background(), "missing")
	assert.Nil(t, setting)
	assert.ErrorIs(t, err, domain.ErrSettingNotFound)
}

func TestPostgreSQLSettingRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSettingRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM settings ORDER BY device_id`).
		WillReturnRows(sqlmock.NewRows(settingRowColumns).
			AddRow("hp-1", 21.0, nil, nil, nil, nil, nil, nil, nil, nil, nil, now).
			AddRow("hp-2", nil, 2, 40, -5, 5, 1, 0, -1, 17, nil, now))

	settings, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, "hp-1", settings[0].DeviceID)
	assert.Nil(t, settings[1].IndoorTargetTemp)
	assert.Equal(t, -5, *settings[1].CurveMin)
	assert.Equal(t, -1, *settings[1].CurveMinus5)
}

func TestPostgreSQLSettingRepository_List_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSettingRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM settings`).WillReturnRows(sqlmock.NewRows(settingRowColumns))

	settings, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, settings)
	assert.Empty(t, settings)
}

func TestPostgreSQLSettingRepository_ApplyPatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSettingRepository(db)
	updatedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO settings (.+) ON CONFLICT \(device_id\) DO UPDATE SET (.+) RETURNING`).
		WithArgs("hp-1", 22.0, int64(1), nil, nil, nil, nil, nil, nil, nil, nil, updatedAt).
		WillReturnRows(sqlmock.NewRows(settingRowColumns).
			AddRow("hp-1", 22.0, 1, 40, nil, nil, nil, nil, nil, nil, nil, updatedAt))

	setting, err := repo.ApplyPatch(
		context.Background(),
		"hp-1",
		domain.SettingPatch{IndoorTargetTemp: ptr(22.0), Mode: ptr(1)},
		updatedAt,
	)
	require.NoError(t, err)

	assert.Equal(t, 22.0, *setting.IndoorTargetTemp)
	assert.Equal(t, 1, *setting.Mode)
	assert.Equal(t, 40, *setting.Curve, "untouched fields keep their stored value")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLSettingRepository_ApplyPatch_Error(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLSettingRepository(db)

	mock.ExpectQuery(`INSERT INTO settings`).WillReturnError(sql.ErrConnDone)

	setting, err := repo.ApplyPatch(context.Background(), "hp-1", domain.SettingPatch{Mode: ptr(2)}, time.Now())
	assert.Nil(t, setting)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
