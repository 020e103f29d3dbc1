// Package repository provides data persistence implementations for heat pump settings.
package repository

import (
	"database/sql"

	"github.com/allisson/heatpump-outbox/internal/settings/domain"
)

const settingColumns = `device_id, indoor_target_temp, mode, curve, curve_min, curve_max,
	curve_plus_5, curve_zero, curve_minus_5, heatstop, integral_setting, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSetting(row rowScanner) (*domain.Setting, error) {
	var (
		setting domain.Setting
		temp    sql.NullFloat64
		ints    [9]sql.NullInt64
	)

	err := row.Scan(
		&setting.DeviceID,
		&temp,
		&ints[0], &ints[1], &ints[2], &ints[3], &ints[4], &ints[5], &ints[6], &ints[7], &ints[8],
		&setting.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if temp.Valid {
		setting.IndoorTargetTemp = &temp.Float64
	}
	targets := []**int{
		&setting.Mode,
		&setting.Curve,
		&setting.CurveMin,
		&setting.CurveMax,
		&setting.CurvePlus5,
		&setting.CurveZero,
		&setting.CurveMinus5,
		&setting.Heatstop,
		&setting.IntegralSetting,
	}
	for i, target := range targets {
		if ints[i].Valid {
			v := int(ints[i].Int64)
			*target = &v
		}
	}
	setting.UpdatedAt = setting.UpdatedAt.UTC()

	return &setting, nil
}

// patchArgs returns the patch values in settingColumns order, without device_id and updated_at.
func patchArgs(p domain.SettingPatch) []any {
	return []any{
		nullableFloat(p.IndoorTargetTemp),
		nullableInt(p.Mode),
		nullableInt(p.Curve),
		nullableInt(p.CurveMin),
		nullableInt(p.CurveMax),
		nullableInt(p.CurvePlus5),
		nullableInt(p.CurveZero),
		nullableInt(p.CurveMinus5),
		nullableInt(p.Heatstop),
		nullableInt(p.IntegralSetting),
	}
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
