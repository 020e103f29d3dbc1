// Package mocks provides mock implementations for testing HTTP handlers.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	settingsDomain "github.com/allisson/heatpump-outbox/internal/settings/domain"
	settingsUseCase "github.com/allisson/heatpump-outbox/internal/settings/usecase"
)

// MockSettingsUseCase is a mock implementation of SettingsUseCase for testing.
type MockSettingsUseCase struct {
	mock.Mock
}

// Get mocks the Get method of SettingsUseCase.
func (m *MockSettingsUseCase) Get(ctx context.Context, deviceID string) (*settingsDomain.Setting, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settingsDomain.Setting), args.Error(1)
}

// List mocks the List method of SettingsUseCase.
func (m *MockSettingsUseCase) List(ctx context.Context) ([]*settingsDomain.Setting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settingsDomain.Setting), args.Error(1)
}

// Update mocks the Update method of SettingsUseCase.
func (m *MockSettingsUseCase) Update(
	ctx context.Context,
	deviceID string,
	patch settingsDomain.SettingPatch,
) (*settingsUseCase.UpdateResult, error) {
	args := m.Called(ctx, deviceID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settingsUseCase.UpdateResult), args.Error(1)
}
