/*
errors.go - Error types for the grower payment domain

Domain packages wrap these with additional context where needed. Use
errors.Is/errors.As for classification.
*/
package grower

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidState is returned when committing an allocation whose
	// deduction is out of bounds. Reaching this state requires bypassing
	// SetRequestedDeduction, so it indicates a programming error.
	ErrInvalidState = errors.New("allocation state invalid for commit")

	// ErrGrowerNotFound is returned when a referenced grower doesn't exist.
	ErrGrowerNotFound = errors.New("grower not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidStateError provides details about an out-of-bounds commit attempt.
type InvalidStateError struct {
	GrowerNumber     string
	Deduction        decimal.Decimal
	TotalOutstanding decimal.Decimal
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid allocation state for grower %s: deduction %s outside [0, %s]",
		e.GrowerNumber, e.Deduction, e.TotalOutstanding)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}
