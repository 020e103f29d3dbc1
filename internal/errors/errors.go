// Package errors holds the sentinel errors shared by the settings and outbox
// domains. Domain packages wrap them with their own messages so callers can
// match on intent instead of on storage or broker details. The HTTP layer maps
// them to status codes with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by the domain packages.
var (
	// ErrNotFound indicates no setting or outbox entry exists for the requested key.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the row changed before the caller could update it,
	// for example an outbox claim taken over by another publisher.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the request failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates a dependency such as the database or the broker
	// could not serve the call. Callers may retry.
	ErrUnavailable = errors.New("unavailable")
)

// New returns an error that formats as message.
// Domain packages use it to declare their own sentinels next to the shared ones.
func New(message string) error {
	return errors.New(message)
}

// Wrap annotates err with message so the result still matches err with Is and As.
// A nil err returns nil, which lets callers wrap a result without checking it first.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether err or any error it wraps matches target.
// It is errors.Is, re-exported so domain code needs a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain assignable to target and sets target to it.
// It is errors.As, re-exported for the same reason as Is.
func As(err error, target any) bool {
	return errors.As(err, target)
}
