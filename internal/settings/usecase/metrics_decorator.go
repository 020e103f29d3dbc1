package usecase

import (
	"context"
	"time"

	"github.com/allisson/heatpump-outbox/internal/metrics"
	settingsDomain "github.com/allisson/heatpump-outbox/internal/settings/domain"
)

// settingsUseCaseWithMetrics decorates SettingsUseCase with metrics instrumentation.
type settingsUseCaseWithMetrics struct {
	next    SettingsUseCase
	metrics metrics.BusinessMetrics
}

// NewSettingsUseCaseWithMetrics wraps a SettingsUseCase with metrics recording.
func NewSettingsUseCaseWithMetrics(useCase SettingsUseCase, m metrics.BusinessMetrics) SettingsUseCase {
	return &settingsUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Get records metrics for settings retrieval.
func (s *settingsUseCaseWithMetrics) Get(ctx context.Context, deviceID string) (*settingsDomain.Setting, error) {
	start := time.Now()
	setting, err := s.next.Get(ctx, deviceID)
	s.record(ctx, "setting_get", start, err)
	return setting, err
}

// List records metrics for settings listing.
func (s *settingsUseCaseWithMetrics) List(ctx context.Context) ([]*settingsDomain.Setting, error) {
	start := time.Now()
	settings, err := s.next.List(ctx)
	s.record(ctx, "setting_list", start, err)
	return settings, err
}

// Update records metrics for settings updates.
func (s *settingsUseCaseWithMetrics) Update(
	ctx context.Context,
	deviceID string,
	patch settingsDomain.SettingPatch,
) (*UpdateResult, error) {
	start := time.Now()
	result, err := s.next.Update(ctx, deviceID, patch)
	s.record(ctx, "setting_update", start, err)
	return result, err
}

func (s *settingsUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "settings", operation, status)
	s.metrics.RecordDuration(ctx, "settings", operation, time.Since(start), status)
}
