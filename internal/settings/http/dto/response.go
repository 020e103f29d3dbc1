package dto

import (
	"time"

	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
	settingsDomain "github.com/allisson/heatpump-outbox/internal/settings/domain"
)

// SettingResponse represents a device's settings in API responses.
type SettingResponse struct {
	DeviceID         string    `json:"device_id"`
	IndoorTargetTemp *float64  `json:"indoor_target_temp"`
	Mode             *int      `json:"mode"`
	Curve            *int      `json:"curve"`
	CurveMin         *int      `json:"curve_min"`
	CurveMax         *int      `json:"curve_max"`
	CurvePlus5       *int      `json:"curve_plus_5"`
	CurveZero        *int      `json:"curve_zero"`
	CurveMinus5      *int      `json:"curve_minus_5"`
	Heatstop         *int      `json:"heatstop"`
	IntegralSetting  *int      `json:"integral_setting"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MapSettingToResponse converts domain settings to an API response.
func MapSettingToResponse(setting *settingsDomain.Setting) SettingResponse {
	return SettingResponse{
		DeviceID:         setting.DeviceID,
		IndoorTargetTemp: setting.IndoorTargetTemp,
		Mode:             setting.Mode,
		Curve:            setting.Curve,
		CurveMin:         setting.CurveMin,
		CurveMax:         setting.CurveMax,
		CurvePlus5:       setting.CurvePlus5,
		CurveZero:        setting.CurveZero,
		CurveMinus5:      setting.CurveMinus5,
		Heatstop:         setting.Heatstop,
		IntegralSetting:  setting.IntegralSetting,
		UpdatedAt:        setting.UpdatedAt,
	}
}

// ListSettingsResponse represents every device's settings.
type ListSettingsResponse struct {
	Settings []SettingResponse `json:"settings"`
}

// MapSettingsToListResponse converts a slice of domain settings to a list API response.
func MapSettingsToListResponse(settings []*settingsDomain.Setting) ListSettingsResponse {
	responses := make([]SettingResponse, 0, len(settings))
	for _, setting := range settings {
		responses = append(responses, MapSettingToResponse(setting))
	}
	return ListSettingsResponse{Settings: responses}
}

// UpdateSettingResponse is returned when a change has been accepted for delivery.
type UpdateSettingResponse struct {
	SettingResponse
	OutboxID     int64               `json:"outbox_id"`
	OutboxStatus outboxDomain.Status `json:"outbox_status"`
}

// MapUpdateToResponse converts an accepted update to an API response.
func MapUpdateToResponse(setting *settingsDomain.Setting, entry *outboxDomain.OutboxEntry) UpdateSettingResponse {
	return UpdateSettingResponse{
		SettingResponse: MapSettingToResponse(setting),
		OutboxID:        entry.ID,
		OutboxStatus:    entry.Status,
	}
}

// OutboxStatusResponse reports the delivery state of one settings change.
type OutboxStatusResponse struct {
	ID           int64               `json:"id"`
	DeviceID     string              `json:"device_id"`
	Status       outboxDomain.Status `json:"status"`
	Payload      map[string]any      `json:"payload"`
	CreatedAt    time.Time           `json:"created_at"`
	PublishedAt  *time.Time          `json:"published_at"`
	ConfirmedAt  *time.Time          `json:"confirmed_at"`
	ErrorMessage *string             `json:"error_message"`
	RetryCount   int                 `json:"retry_count"`
}

// MapOutboxEntryToResponse converts an outbox entry to an API response.
func MapOutboxEntryToResponse(entry *outboxDomain.OutboxEntry) OutboxStatusResponse {
	return OutboxStatusResponse{
		ID:           entry.ID,
		DeviceID:     entry.AggregateID,
		Status:       entry.Status,
		Payload:      entry.Payload,
		CreatedAt:    entry.CreatedAt,
		PublishedAt:  entry.PublishedAt,
		ConfirmedAt:  entry.ConfirmedAt,
		ErrorMessage: entry.ErrorMessage,
		RetryCount:   entry.RetryCount,
	}
}

// ListOutboxResponse represents a device's recent outbox entries.
type ListOutboxResponse struct {
	Data []OutboxStatusResponse `json:"data"`
}

// MapOutboxEntriesToListResponse converts outbox entries to a list API response.
func MapOutboxEntriesToListResponse(entries []*outboxDomain.OutboxEntry) ListOutboxResponse {
	responses := make([]OutboxStatusResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, MapOutboxEntryToResponse(entry))
	}
	return ListOutboxResponse{Data: responses}
}
