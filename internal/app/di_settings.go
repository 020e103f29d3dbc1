package app

import (
	"fmt"

	"github.com/allisson/heatpump-outbox/internal/database"
	settingsHTTP "github.com/allisson/heatpump-outbox/internal/settings/http"
	settingsRepository "github.com/allisson/heatpump-outbox/internal/settings/repository"
	settingsUseCase "github.com/allisson/heatpump-outbox/internal/settings/usecase"
)

// SettingRepository returns the settings store for the configured database driver.
func (c *Container) SettingRepository() (settingsUseCase.SettingRepository, error) {
	c.settingRepoInit.Do(func() {
		var err error
		c.settingRepo, err = c.initSettingRepository()
		c.setInitError("settingRepo", err)
	})
	if err := c.initError("settingRepo"); err != nil {
		return nil, err
	}
	return c.settingRepo, nil
}

// SettingsUseCase returns the settings use case wrapped with business metrics.
func (c *Container) SettingsUseCase() (settingsUseCase.SettingsUseCase, error) {
	c.settingsUseCaseInit.Do(func() {
		var err error
		c.settingsUseCase, err = c.initSettingsUseCase()
		c.setInitError("settingsUseCase", err)
	})
	if err := c.initError("settingsUseCase"); err != nil {
		return nil, err
	}
	return c.settingsUseCase, nil
}

// SettingsHandler returns the HTTP handler for the settings API.
func (c *Container) SettingsHandler() (*settingsHTTP.SettingsHandler, error) {
	c.settingsHandlerInit.Do(func() {
		var err error
		c.settingsHandler, err = c.initSettingsHandler()
		c.setInitError("settingsHandler", err)
	})
	if err := c.initError("settingsHandler"); err != nil {
		return nil, err
	}
	return c.settingsHandler, nil
}

func (c *Container) initSettingRepository() (settingsUseCase.SettingRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for setting repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverMySQL:
		return settingsRepository.NewMySQLSettingRepository(db), nil
	case database.DriverPostgres:
		return settingsRepository.NewPostgreSQLSettingRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initSettingsUseCase() (settingsUseCase.SettingsUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for settings use case: %w", err)
	}

	settingRepo, err := c.SettingRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get setting repository for settings use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for settings use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for settings use case: %w", err)
	}

	useCase := settingsUseCase.NewSettingsUseCase(txManager, settingRepo, outboxRepo, c.config.OutboxMaxRetries)
	return settingsUseCase.NewSettingsUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initSettingsHandler() (*settingsHTTP.SettingsHandler, error) {
	useCase, err := c.SettingsUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings use case for settings handler: %w", err)
	}

	outboxUseCase, err := c.OutboxUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox use case for settings handler: %w", err)
	}

	return settingsHTTP.NewSettingsHandler(useCase, outboxUseCase, c.Logger()), nil
}
