// Package http provides HTTP handlers for heat pump settings and their delivery status.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	"github.com/allisson/heatpump-outbox/internal/httputil"
	outboxUseCase "github.com/allisson/heatpump-outbox/internal/outbox/usecase"
	"github.com/allisson/heatpump-outbox/internal/settings/http/dto"
	settingsUseCase "github.com/allisson/heatpump-outbox/internal/settings/usecase"
	customValidation "github.com/allisson/heatpump-outbox/internal/validation"
)

const (
	defaultOutboxLimit = 10
	maxOutboxLimit     = 100
)

// SettingsHandler handles HTTP requests for settings changes and outbox status.
type SettingsHandler struct {
	settingsUseCase settingsUseCase.SettingsUseCase
	outboxUseCase   outboxUseCase.OutboxUseCase
	logger          *slog.Logger
}

// NewSettingsHandler creates a new settings handler with required dependencies.
func NewSettingsHandler(
	settingsUseCase settingsUseCase.SettingsUseCase,
	outboxUseCase outboxUseCase.OutboxUseCase,
	logger *slog.Logger,
) *SettingsHandler {
	return &SettingsHandler{
		settingsUseCase: settingsUseCase,
		outboxUseCase:   outboxUseCase,
		logger:          logger,
	}
}

// ListHandler returns the settings of every device.
// GET /api/v1/heatpump/settings
func (h *SettingsHandler) ListHandler(c *gin.Context) {
	settings, err := h.settingsUseCase.List(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSettingsToListResponse(settings))
}

// GetHandler returns the settings of one device.
// GET /api/v1/heatpump/settings/:device_id
func (h *SettingsHandler) GetHandler(c *gin.Context) {
	deviceID, ok := h.deviceID(c)
	if !ok {
		return
	}

	setting, err := h.settingsUseCase.Get(c.Request.Context(), deviceID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSettingToResponse(setting))
}

// UpdateHandler stores a partial settings change and queues it for the device.
// PATCH /api/v1/heatpump/settings/:device_id
// Returns 202 Accepted: the device has not applied the change yet.
func (h *SettingsHandler) UpdateHandler(c *gin.Context) {
	deviceID, ok := h.deviceID(c)
	if !ok {
		return
	}

	var req dto.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.settingsUseCase.Update(c.Request.Context(), deviceID, req.ToPatch())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if h.logger != nil {
		h.logger.Info("settings change accepted",
			slog.String("device_id", deviceID),
			slog.Int64("outbox_id", result.Entry.ID),
		)
	}

	c.JSON(http.StatusAccepted, dto.MapUpdateToResponse(result.Setting, result.Entry))
}

// ListOutboxHandler returns a device's most recent settings changes.
// GET /api/v1/heatpump/settings/:device_id/outbox?limit=N
func (h *SettingsHandler) ListOutboxHandler(c *gin.Context) {
	deviceID, ok := h.deviceID(c)
	if !ok {
		return
	}

	limit, err := httputil.ParseLimit(c, defaultOutboxLimit, maxOutboxLimit)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	entries, err := h.outboxUseCase.ListByDevice(c.Request.Context(), deviceID, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOutboxEntriesToListResponse(entries))
}

// GetOutboxStatusHandler returns the delivery state of one settings change.
// GET /api/v1/heatpump/settings/outbox/:id
func (h *SettingsHandler) GetOutboxStatusHandler(c *gin.Context) {
	id, err := httputil.ParseInt64Param(c, "id")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	entry, err := h.outboxUseCase.GetStatus(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOutboxEntryToResponse(entry))
}

func (h *SettingsHandler) deviceID(c *gin.Context) (string, bool) {
	deviceID := c.Param("device_id")
	if err := validation.Validate(deviceID, validation.Required, customValidation.DeviceID); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return "", false
	}
	return deviceID, true
}
