// Package usecase implements settings reads and the atomic settings-plus-outbox write.
package usecase

import (
	"context"
	"time"

	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
	settingsDomain "github.com/allisson/heatpump-outbox/internal/settings/domain"
)

// SettingRepository defines settings persistence operations.
// Implementations must join the transaction carried by ctx.
type SettingRepository interface {
	// Get returns the settings of a device. Returns ErrSettingNotFound if none exist.
	Get(ctx context.Context, deviceID string) (*settingsDomain.Setting, error)

	// List returns the settings of every device.
	List(ctx context.Context) ([]*settingsDomain.Setting, error)

	// ApplyPatch writes the patch fields, creating the row on first use.
	ApplyPatch(
		ctx context.Context,
		deviceID string,
		patch settingsDomain.SettingPatch,
		updatedAt time.Time,
	) (*settingsDomain.Setting, error)
}

// OutboxWriter stores new outbox entries. Create must join the transaction carried by ctx.
type OutboxWriter interface {
	Create(ctx context.Context, entry *outboxDomain.OutboxEntry) error
}

// UpdateResult is the outcome of a settings update: the stored settings and the
// outbox entry that will deliver the change.
type UpdateResult struct {
	Setting *settingsDomain.Setting
	Entry   *outboxDomain.OutboxEntry
}

// SettingsUseCase defines settings operations.
type SettingsUseCase interface {
	// Get returns the settings of a device.
	Get(ctx context.Context, deviceID string) (*settingsDomain.Setting, error)

	// List returns the settings of every device.
	List(ctx context.Context) ([]*settingsDomain.Setting, error)

	// Update stores the patch and its outbox entry in one transaction. Either both
	// persist or neither does; storage failures are reported as ErrTransaction.
	Update(ctx context.Context, deviceID string, patch settingsDomain.SettingPatch) (*UpdateResult, error)
}
