// Package domain defines heat pump settings and partial updates to them.
package domain

import (
	"time"
)

// Wire names of the setting fields. They are the keys of outbox payloads and of
// device telemetry.
const (
	FieldIndoorTargetTemp = "indoor_target_temp"
	FieldMode             = "mode"
	FieldCurve            = "curve"
	FieldCurveMin         = "curve_min"
	FieldCurveMax         = "curve_max"
	FieldCurvePlus5       = "curve_plus_5"
	FieldCurveZero        = "curve_zero"
	FieldCurveMinus5      = "curve_minus_5"
	FieldHeatstop         = "heatstop"
	FieldIntegralSetting  = "integral_setting"
)

// Fields lists every setting field in storage order.
var Fields = []string{
	FieldIndoorTargetTemp,
	FieldMode,
	FieldCurve,
	FieldCurveMin,
	FieldCurveMax,
	FieldCurvePlus5,
	FieldCurveZero,
	FieldCurveMinus5,
	FieldHeatstop,
	FieldIntegralSetting,
}

// Setting is the last requested configuration of a device. It reflects intent,
// not what the device is actually running.
type Setting struct {
	DeviceID         string
	IndoorTargetTemp *float64
	Mode             *int
	Curve            *int
	CurveMin         *int
	CurveMax         *int
	CurvePlus5       *int
	CurveZero        *int
	CurveMinus5      *int
	Heatstop         *int
	IntegralSetting  *int
	UpdatedAt        time.Time
}

// SettingPatch is a partial update. Nil fields are left unchanged.
type SettingPatch struct {
	IndoorTargetTemp *float64
	Mode             *int
	Curve            *int
	CurveMin         *int
	CurveMax         *int
	CurvePlus5       *int
	CurveZero        *int
	CurveMinus5      *int
	Heatstop         *int
	IntegralSetting  *int
}

// IsEmpty reports whether the patch changes nothing.
func (p SettingPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields returns the present fields keyed by wire name. This is the outbox payload.
func (p SettingPatch) Fields() map[string]any {
	fields := make(map[string]any)
	if p.IndoorTargetTemp != nil {
		fields[FieldIndoorTargetTemp] = *p.IndoorTargetTemp
	}
	ints := []struct {
		name  string
		value *int
	}{
		{FieldMode, p.Mode},
		{FieldCurve, p.Curve},
		{FieldCurveMin, p.CurveMin},
		{FieldCurveMax, p.CurveMax},
		{FieldCurvePlus5, p.CurvePlus5},
		{FieldCurveZero, p.CurveZero},
		{FieldCurveMinus5, p.CurveMinus5},
		{FieldHeatstop, p.Heatstop},
		{FieldIntegralSetting, p.IntegralSetting},
	}
	for _, f := range ints {
		if f.value != nil {
			fields[f.name] = *f.value
		}
	}
	return fields
}

// Apply returns a copy of s with the patch fields overwritten.
func (s Setting) Apply(p SettingPatch) Setting {
	if p.IndoorTargetTemp != nil {
		s.IndoorTargetTemp = p.IndoorTargetTemp
	}
	if p.Mode != nil {
		s.Mode = p.Mode
	}
	if p.Curve != nil {
		s.Curve = p.Curve
	}
	if p.CurveMin != nil {
		s.CurveMin = p.CurveMin
	}
	if p.CurveMax != nil {
		s.CurveMax = p.CurveMax
	}
	if p.CurvePlus5 != nil {
		s.CurvePlus5 = p.CurvePlus5
	}
	if p.CurveZero != nil {
		s.CurveZero = p.CurveZero
	}
	if p.CurveMinus5 != nil {
		s.CurveMinus5 = p.CurveMinus5
	}
	if p.Heatstop != nil {
		s.Heatstop = p.Heatstop
	}
	if p.IntegralSetting != nil {
		s.IntegralSetting = p.IntegralSetting
	}
	return s
}
