package validation

import (
	"testing"

	validation "github.com/jellydator/validation"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/heatpump-outbox/internal/errors"
)

func TestDeviceID(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		shouldErr bool
	}{
		{name: "simple id", value: "hp-001"},
		{name: "mac style", value: "a4:cf:12:9b:00:01"},
		{name: "dotted", value: "site1.hp_2"},
		{name: "slash", value: "hp/1", shouldErr: true},
		{name: "mqtt wildcard", value: "hp+", shouldErr: true},
		{name: "space", value: "hp 1", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.value, DeviceID)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNoWhitespace(t *testing.T) {
	assert.NoError(t, validation.Validate("hp-1", NoWhitespace))
	assert.Error(t, validation.Validate(" hp-1", NoWhitespace))
	assert.Error(t, validation.Validate("hp-1 ", NoWhitespace))
}

func TestNotBlank(t *testing.T) {
	assert.NoError(t, validation.Validate("x", NotBlank))
	assert.Error(t, validation.Validate("   ", NotBlank))
}

func TestAtLeastOne(t *testing.T) {
	temp := 21.5
	var mode *int

	assert.NoError(t, AtLeastOne{Fields: []any{&temp, mode}}.Validate(nil))
	err := AtLeastOne{Fields: []any{(*float64)(nil), mode}}.Validate(nil)
	assert.EqualError(t, err, "at least one setting must be provided")
}

func TestWrapValidationError(t *testing.T) {
	assert.Nil(t, WrapValidationError(nil))

	err := WrapValidationError(validation.NewError("code", "mode: must be no greater than 3"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "mode: must be no greater than 3")
}
