package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthenticated = errors.New("missing or invalid caller identity")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInternal        = errors.New("internal server error")
	ErrRateLimited     = errors.New("too many requests")
)

// Billing core errors
var (
	// ErrNotEntitled means the caller has no active subscription for the model.
	ErrNotEntitled = errors.New("no active subscription for this model")

	// ErrQuotaExceeded means the caller is over a plan quota window.
	ErrQuotaExceeded = errors.New("usage quota exceeded")

	// ErrInvalidUnit is returned by the pricing rules for an unknown billing unit.
	ErrInvalidUnit = errors.New("invalid billing unit")

	// ErrMalformedMetadata means a payment payload's metadata key did not parse.
	// Reconciliation must fail hard on this rather than misattribute funds.
	ErrMalformedMetadata = errors.New("malformed payment metadata")

	// ErrProviderError means the external inference provider call failed.
	ErrProviderError = errors.New("inference provider error")

	// ErrConflictingEntitlement means a write would violate the
	// at-most-one-active-subscription invariant for a (caller, model) pair.
	ErrConflictingEntitlement = errors.New("conflicting active subscription")

	// ErrDuplicateSettlement marks a webhook redelivery for a settlement
	// reference that was already processed. It is a success outcome for the
	// provider, not a failure; callers must not alert on it.
	ErrDuplicateSettlement = errors.New("settlement reference already processed")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
