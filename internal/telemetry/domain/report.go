// Package domain defines device telemetry as seen by the confirmation correlator.
package domain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	settingsDomain "github.com/allisson/heatpump-outbox/internal/settings/domain"
)

// ErrMalformedReport indicates a telemetry message that can never be processed.
var ErrMalformedReport = errors.New("malformed telemetry report")

// fieldAliases maps every accepted key to its setting field. Devices and bridges
// publish snake_case or camelCase keys.
var fieldAliases = map[string]string{
	"indoor_target_temp": settingsDomain.FieldIndoorTargetTemp,
	"indoorTargetTemp":   settingsDomain.FieldIndoorTargetTemp,
	"mode":               settingsDomain.FieldMode,
	"curve":              settingsDomain.FieldCurve,
	"curve_min":          settingsDomain.FieldCurveMin,
	"curveMin":           settingsDomain.FieldCurveMin,
	"curve_max":          settingsDomain.FieldCurveMax,
	"curveMax":           settingsDomain.FieldCurveMax,
	"curve_plus_5":       settingsDomain.FieldCurvePlus5,
	"curvePlus5":         settingsDomain.FieldCurvePlus5,
	"curve_zero":         settingsDomain.FieldCurveZero,
	"curveZero":          settingsDomain.FieldCurveZero,
	"curve_minus_5":      settingsDomain.FieldCurveMinus5,
	"curveMinus5":        settingsDomain.FieldCurveMinus5,
	"heatstop":           settingsDomain.FieldHeatstop,
	"heatStop":           settingsDomain.FieldHeatstop,
	"integral_setting":   settingsDomain.FieldIntegralSetting,
	"integralSetting":    settingsDomain.FieldIntegralSetting,
	"d73":                settingsDomain.FieldIntegralSetting,
}

var (
	deviceIDKeys      = []string{"device_id", "deviceId"}
	correlationIDKeys = []string{"correlation_id", "correlationId"}
	timestampKeys     = []string{"reported_at", "reportedAt", "timestamp", "ts"}
)

// Report is one telemetry message reduced to the settings it carries.
type Report struct {
	DeviceID   string
	ReportedAt time.Time
	// Values holds reported setting values keyed by setting field name.
	Values map[string]any
	// CorrelationID is the echoed outbox id, when the device supports it.
	CorrelationID *int64
}

// HasSettings reports whether the report carries any setting value.
func (r *Report) HasSettings() bool {
	return len(r.Values) > 0
}

// Delivery is a telemetry message received from a source. Ack must be called once
// the message has been handled; unacknowledged messages are redelivered.
type Delivery struct {
	ID         string
	Body       []byte
	ReceivedAt time.Time
	Ack        func(ctx context.Context) error
}

// ParseReport decodes a JSON telemetry body. receivedAt is used when the message
// carries no timestamp of its own.
func ParseReport(body []byte, receivedAt time.Time) (*Report, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	deviceID, ok := firstString(raw, deviceIDKeys)
	if !ok || deviceID == "" {
		return nil, fmt.Errorf("%w: missing device id", ErrMalformedReport)
	}

	report := &Report{
		DeviceID:   deviceID,
		ReportedAt: receivedAt.UTC(),
		Values:     make(map[string]any),
	}

	for key, value := range raw {
		field, known := fieldAliases[key]
		if !known {
			continue
		}
		number, ok := toFloat(value)
		if !ok {
			continue
		}
		// snake_case wins when both spellings are present.
		if _, exists := report.Values[field]; exists && key != field {
			continue
		}
		report.Values[field] = number
	}

	for _, key := range correlationIDKeys {
		if value, ok := raw[key]; ok {
			if number, ok := toFloat(value); ok && number == math.Trunc(number) && number > 0 {
				id := int64(number)
				report.CorrelationID = &id
			}
			break
		}
	}

	for _, key := range timestampKeys {
		if value, ok := raw[key]; ok {
			if ts, ok := parseTimestamp(value); ok {
				report.ReportedAt = ts
			}
			break
		}
	}

	return report, nil
}

func firstString(raw map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			s, isString := value.(string)
			return s, isString
		}
	}
	return "", false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// parseTimestamp accepts RFC 3339 strings, unix seconds and unix milliseconds.
func parseTimestamp(value any) (time.Time, bool) {
	if s, ok := value.(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.UTC(), true
		}
	}
	number, ok := toFloat(value)
	if !ok || number <= 0 {
		return time.Time{}, false
	}
	if number > 1e12 {
		return time.UnixMilli(int64(number)).UTC(), true
	}
	sec, frac := math.Modf(number)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
