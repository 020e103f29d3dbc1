package domain

import (
	"github.com/allisson/heatpump-outbox/internal/errors"
)

// Setting-specific error definitions.
var (
	// ErrSettingNotFound indicates no settings row exists for the device.
	ErrSettingNotFound = errors.Wrap(errors.ErrNotFound, "setting not found")

	// ErrEmptyPatch indicates an update request carried no fields.
	ErrEmptyPatch = errors.Wrap(errors.ErrInvalidInput, "at least one setting must be provided")
)
