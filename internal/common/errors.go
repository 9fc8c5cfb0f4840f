// Package common defines sentinel errors shared by the client and server
// layers of ProductKeeper. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors.
	ErrInternal = errors.New("internal error")

	// ErrValidation marks input rejected before anything is persisted.
	ErrValidation = errors.New("validation failed")

	// ErrIllegalTransition is returned when a staged mutation does not fit the
	// current lifecycle state of the record.
	ErrIllegalTransition = errors.New("illegal state transition")
)
