package domain

import (
	"github.com/allisson/heatpump-outbox/internal/errors"
)

// Outbox error definitions.
var (
	// ErrOutboxEntryNotFound indicates no outbox entry has the requested id.
	ErrOutboxEntryNotFound = errors.Wrap(errors.ErrNotFound, "outbox entry not found")

	// ErrTransaction indicates the settings change and its outbox entry could not be stored together.
	ErrTransaction = errors.New("settings transaction failed")

	// ErrStaleClaim indicates the entry was no longer held by the caller's claim.
	ErrStaleClaim = errors.Wrap(errors.ErrConflict, "outbox claim is stale")

	// ErrConfirmationTimeout marks entries that did not see matching telemetry within the window.
	ErrConfirmationTimeout = errors.New(FailureConfirmationTimeout)
)

// TransientPublishError is a publish failure that may succeed on retry
// (broker unreachable, timeout).
type TransientPublishError struct {
	Err error
}

func (e *TransientPublishError) Error() string {
	return "transient publish error: " + e.Err.Error()
}

func (e *TransientPublishError) Unwrap() error {
	return e.Err
}

// PermanentPublishError is a publish failure that will never succeed
// (malformed payload, unknown device).
type PermanentPublishError struct {
	Err error
}

func (e *PermanentPublishError) Error() string {
	return "permanent publish error: " + e.Err.Error()
}

func (e *PermanentPublishError) Unwrap() error {
	return e.Err
}

// NewTransientPublishError wraps err as a retryable publish failure.
func NewTransientPublishError(err error) error {
	return &TransientPublishError{Err: err}
}

// NewPermanentPublishError wraps err as a non-retryable publish failure.
func NewPermanentPublishError(err error) error {
	return &PermanentPublishError{Err: err}
}

// IsPermanentPublishError reports whether err carries a PermanentPublishError.
// Unclassified errors are treated as transient.
func IsPermanentPublishError(err error) bool {
	var permanent *PermanentPublishError
	return errors.As(err, &permanent)
}
