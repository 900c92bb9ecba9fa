/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The fleet package wraps these into operator-facing result objects.

ERROR CATEGORIES:
  1. Validation errors - Bad input, no state change
  2. Not-found errors - Referenced client/unit/payment missing
  3. Transactional failures - Paired writes could not both commit
  4. Partial-batch outcomes - Reported via result structs, not errors

USAGE:
  if billing.IsNotFound(err) {
      // report, no state changed
  }

SEE ALSO:
  - ledger.go: Uses these errors
  - fleet/service.go: Converts them into {success, message} results
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrClientNotFound is returned when a referenced client doesn't exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrUnitNotFound is returned when a referenced unit doesn't exist.
	ErrUnitNotFound = errors.New("unit not found")

	// ErrPaymentNotFound is returned when a referenced payment doesn't exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDuplicateInvoice is returned when a client already has a payment
	// with the same invoice number.
	ErrDuplicateInvoice = errors.New("duplicate invoice number for client")

	// ErrDuplicatePaymentKey is returned when a payment with the same
	// natural key already exists. Expected during migration re-runs.
	ErrDuplicatePaymentKey = errors.New("duplicate payment key")

	// ErrTransactionFailed is returned when a ledger/unit write pair could
	// not both commit. No partial mutation is visible.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrSweepAlreadyRan is returned when the daily sweep was already
	// completed for the given date. The duplicate trigger is a no-op.
	ErrSweepAlreadyRan = errors.New("sweep already ran for this date")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports bad input. Nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// DuplicateInvoiceError identifies the conflicting payment.
type DuplicateInvoiceError struct {
	ClientID      ClientID
	InvoiceNumber string
	ExistingID    PaymentID
}

func (e *DuplicateInvoiceError) Error() string {
	return fmt.Sprintf("invoice %s already registered for client %s (payment: %s)",
		e.InvoiceNumber, e.ClientID, e.ExistingID)
}

func (e *DuplicateInvoiceError) Unwrap() error {
	return ErrDuplicateInvoice
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrUnitNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsValidation returns true if the error is due to invalid caller input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrDuplicateInvoice)
}
