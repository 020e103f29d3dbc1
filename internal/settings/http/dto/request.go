// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	settingsDomain "github.com/allisson/heatpump-outbox/internal/settings/domain"
	customValidation "github.com/allisson/heatpump-outbox/internal/validation"
)

// UpdateSettingRequest is a partial settings update. Omitted fields are left unchanged.
type UpdateSettingRequest struct {
	IndoorTargetTemp *float64 `json:"indoor_target_temp"`
	Mode             *int     `json:"mode"`
	Curve            *int     `json:"curve"`
	CurveMin         *int     `json:"curve_min"`
	CurveMax         *int     `json:"curve_max"`
	CurvePlus5       *int     `json:"curve_plus_5"`
	CurveZero        *int     `json:"curve_zero"`
	CurveMinus5      *int     `json:"curve_minus_5"`
	Heatstop         *int     `json:"heatstop"`
	IntegralSetting  *int     `json:"integral_setting"`
}

// Validate checks if the update request is valid.
func (r *UpdateSettingRequest) Validate() error {
	atLeastOne := customValidation.AtLeastOne{Fields: []any{
		r.IndoorTargetTemp, r.Mode, r.Curve, r.CurveMin, r.CurveMax,
		r.CurvePlus5, r.CurveZero, r.CurveMinus5, r.Heatstop, r.IntegralSetting,
	}}
	if err := atLeastOne.Validate(nil); err != nil {
		return err
	}

	curveRange := []validation.Rule{validation.Min(-50), validation.Max(50)}
	return validation.ValidateStruct(r,
		validation.Field(&r.IndoorTargetTemp, validation.NilOrNotEmpty, validation.Min(15.0), validation.Max(30.0)),
		validation.Field(&r.Mode, validation.Min(0), validation.Max(3)),
		validation.Field(&r.Curve, curveRange...),
		validation.Field(&r.CurveMin, curveRange...),
		validation.Field(&r.CurveMax, curveRange...),
		validation.Field(&r.CurvePlus5, curveRange...),
		validation.Field(&r.CurveZero, curveRange...),
		validation.Field(&r.CurveMinus5, curveRange...),
		validation.Field(&r.Heatstop, validation.Min(-30), validation.Max(30)),
	)
}

// ToPatch converts the request into a domain patch.
func (r *UpdateSettingRequest) ToPatch() settingsDomain.SettingPatch {
	return settingsDomain.SettingPatch{
		IndoorTargetTemp: r.IndoorTargetTemp,
		Mode:             r.Mode,
		Curve:            r.Curve,
		CurveMin:         r.CurveMin,
		CurveMax:         r.CurveMax,
		CurvePlus5:       r.CurvePlus5,
		CurveZero:        r.CurveZero,
		CurveMinus5:      r.CurveMinus5,
		Heatstop:         r.Heatstop,
		IntegralSetting:  r.IntegralSetting,
	}
}
