// Package domain defines the outbox entry lifecycle for heat pump setting commands.
//
// An entry moves pending -> published -> confirmed, or ends in failed from either
// pending or published. Terminal entries (confirmed, failed) never change again.
package domain

import (
	"time"
)

// Status is the lifecycle state of an outbox entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

const (
	// AggregateTypeHeatpumpSetting identifies entries produced by settings updates.
	AggregateTypeHeatpumpSetting = "heatpump_setting"
	// EventTypeSettingUpdate is the only event type the outbox currently carries.
	EventTypeSettingUpdate = "setting_update"

	// DefaultMaxRetries is used when a caller does not provide a retry budget.
	DefaultMaxRetries = 3

	// FailureRetriesExhausted prefixes the error message of entries that ran out of retries.
	FailureRetriesExhausted = "publish retries exhausted"
	// FailureConfirmationTimeout is the error message of entries no telemetry confirmed in time.
	FailureConfirmationTimeout = "confirmation timeout"
)

// IsValid reports whether s is one of the four known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPublished, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusPublished || next == StatusFailed
	case StatusPublished:
		return next == StatusConfirmed || next == StatusFailed
	}
	return false
}

// OutboxEntry is one intended setting change for one device.
type OutboxEntry struct {
	ID            int64
	AggregateType string
	// AggregateID is the device id.
	AggregateID  string
	EventType    string
	Payload      map[string]any
	Status       Status
	CreatedAt    time.Time
	PublishedAt  *time.Time
	ConfirmedAt  *time.Time
	ErrorMessage *string
	RetryCount   int
	MaxRetries   int

	// ClaimToken identifies the publisher tick holding the entry; nil when unclaimed.
	ClaimToken *string
	// ClaimedAt is when ClaimToken was stamped.
	ClaimedAt *time.Time
	// NextAttemptAt is the earliest time the entry may be claimed.
	NextAttemptAt time.Time
}

// NewSettingUpdateEntry builds a pending entry for a device setting change.
func NewSettingUpdateEntry(deviceID string, payload map[string]any, maxRetries int) *OutboxEntry {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	return &OutboxEntry{
		AggregateType: AggregateTypeHeatpumpSetting,
		AggregateID:   deviceID,
		EventType:     EventTypeSettingUpdate,
		Payload:       payload,
		Status:        StatusPending,
		MaxRetries:    maxRetries,
	}
}

// DeviceID returns the device the entry targets.
func (e *OutboxEntry) DeviceID() string {
	return e.AggregateID
}

// RetriesExhausted reports whether retryCount has used up the entry's budget.
func (e *OutboxEntry) RetriesExhausted(retryCount int) bool {
	return retryCount >= e.MaxRetries
}
