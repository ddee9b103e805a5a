/*
Package grower provides the grower payment domain model and the deduction
allocation calculator.

PURPOSE:
  A grower's consolidated payment can have part of it withheld to offset
  prior cash advances. This package owns the data model for that workflow
  (payment selections, advance cheques) and the pure computation that keeps
  the deduction, remaining balance, and net payable amount consistent.

KEY CONCEPTS IN THIS FILE (types.go):
  - PaymentSelection: one grower's pending consolidated payment
  - AdvanceCheque: one outstanding cash advance owed by the grower
  - DeductionAllocation: the derived triple (deduction, remaining, net)

DESIGN PRINCIPLES:
  1. Precision: All money is decimal.Decimal. No floats, anywhere.
     Repeated allocation/deallocation cycles must not drift.
  2. Derived values are never stored: the net payment amount is always
     recomputed from the consolidated amount and the deduction.
  3. Identity fields are immutable after load.

SEE ALSO:
  - allocator.go: The deduction allocation session
  - errors.go: Error types for this package
*/
package grower

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT SELECTION - One grower's pending consolidated payment
// =============================================================================

// PaymentSelection is one grower's pending consolidated payment.
//
// GrowerName, GrowerNumber and ConsolidatedAmount are immutable after load.
// DeductFromThisTransaction and RemainingDeductions are the write-back
// targets of a committed allocation session; they are never edited directly.
type PaymentSelection struct {
	GrowerName   string
	GrowerNumber string

	// ConsolidatedAmount is the gross amount owed before deductions.
	ConsolidatedAmount decimal.Decimal

	// DeductFromThisTransaction is the amount being deducted now.
	DeductFromThisTransaction decimal.Decimal

	// RemainingDeductions is the advance balance left after this deduction.
	// Recomputed, never edited directly.
	RemainingDeductions decimal.Decimal
}

// NetPayment returns the amount actually disbursed this cycle.
// The net amount is never stored; any reader recomputes it from the
// consolidated amount and the current deduction.
func (s *PaymentSelection) NetPayment() decimal.Decimal {
	return s.ConsolidatedAmount.Sub(s.DeductFromThisTransaction)
}

// =============================================================================
// ADVANCE CHEQUE - Outstanding cash advance
// =============================================================================

// AdvanceCheque is one outstanding cash advance owed by the grower.
// In the allocation workflow advances are aggregated only, never
// individually allocated against.
type AdvanceCheque struct {
	ChequeNumber string
	GrowerNumber string
	IssuedAt     time.Time

	// CurrentAdvanceAmount is the remaining balance on this advance.
	CurrentAdvanceAmount decimal.Decimal
}

// TotalOutstanding sums the remaining balances across a grower's advances.
func TotalOutstanding(advances []AdvanceCheque) decimal.Decimal {
	total := decimal.Zero
	for _, a := range advances {
		total = total.Add(a.CurrentAdvanceAmount)
	}
	return total
}

// =============================================================================
// DEDUCTION ALLOCATION - Derived, not stored
// =============================================================================

// DeductionAllocation is the computed triple returned by an allocation
// session. It is a pure function of (consolidated amount, total outstanding
// advances, requested deduction) and is never persisted as-is.
type DeductionAllocation struct {
	DeductFromThisTransaction decimal.Decimal
	RemainingDeductions       decimal.Decimal
	NetPaymentAmount          decimal.Decimal
}
