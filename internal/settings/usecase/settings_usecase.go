package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/allisson/heatpump-outbox/internal/database"
	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
	settingsDomain "github.com/allisson/heatpump-outbox/internal/settings/domain"
)

type settingsUseCase struct {
	txManager   database.TxManager
	settingRepo SettingRepository
	outboxRepo  OutboxWriter
	maxRetries  int
	now         func() time.Time
}

// NewSettingsUseCase creates a new SettingsUseCase. maxRetries is the publish retry
// budget stamped on every new outbox entry.
func NewSettingsUseCase(
	txManager database.TxManager,
	settingRepo SettingRepository,
	outboxRepo OutboxWriter,
	maxRetries int,
) SettingsUseCase {
	return &settingsUseCase{
		txManager:   txManager,
		settingRepo: settingRepo,
		outboxRepo:  outboxRepo,
		maxRetries:  maxRetries,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *settingsUseCase) Get(ctx context.Context, deviceID string) (*settingsDomain.Setting, error) {
	return s.settingRepo.Get(ctx, deviceID)
}

func (s *settingsUseCase) List(ctx context.Context) ([]*settingsDomain.Setting, error) {
	return s.settingRepo.List(ctx)
}

func (s *settingsUseCase) Update(
	ctx context.Context,
	deviceID string,
	patch settingsDomain.SettingPatch,
) (*UpdateResult, error) {
	payload := patch.Fields()
	if len(payload) == 0 {
		return nil, settingsDomain.ErrEmptyPatch
	}

	now := s.now()
	result := &UpdateResult{}

	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		setting, err := s.settingRepo.ApplyPatch(ctx, deviceID, patch, now)
		if err != nil {
			return fmt.Errorf("apply settings: %w", err)
		}

		entry := outboxDomain.NewSettingUpdateEntry(deviceID, payload, s.maxRetries)
		entry.CreatedAt = now
		entry.NextAttemptAt = now
		if err := s.outboxRepo.Create(ctx, entry); err != nil {
			return fmt.Errorf("create outbox entry: %w", err)
		}

		result.Setting = setting
		result.Entry = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", outboxDomain.ErrTransaction, err)
	}

	return result, nil
}
