/*
allocator.go - Deduction allocation session for a single grower

PURPOSE:
  Enforces deduction bounds and keeps the three derived fields consistent
  whenever the requested deduction changes. One Allocator is created per
  editing session for one grower's payment; it has no lifecycle beyond that
  session and no I/O.

ALLOCATION FLOW:
  load selection + advances --> SetRequestedDeduction (any number of times)
        --> Validate --> Commit (write-back)  or  Cancel (discard)

CLAMPING, NOT REJECTION:
  SetRequestedDeduction never fails. Negative requests clamp to zero and
  oversized requests clamp to the total outstanding advance balance. The
  clamp is silent; the caller sees only the effective values. Commit is the
  guarded operation: committing an out-of-bounds state is a programming
  error and fails without a write-back.

INVARIANTS:
  0 <= DeductFromThisTransaction <= total outstanding advances
  RemainingDeductions + DeductFromThisTransaction == total outstanding advances
  NetPaymentAmount + DeductFromThisTransaction == ConsolidatedAmount

CONCURRENCY:
  None needed. The allocator is fully synchronous and scoped to one
  grower's one dialog session.

SEE ALSO:
  - types.go: PaymentSelection, AdvanceCheque, DeductionAllocation
  - errors.go: InvalidStateError returned by Commit
*/
package grower

import "github.com/shopspring/decimal"

// =============================================================================
// ALLOCATOR - One deduction editing session
// =============================================================================

// Allocator holds the working state of one deduction editing session.
//
// The draft fields are exported so a presentation adapter can bind to them;
// SetRequestedDeduction is the sanctioned mutator and keeps them consistent.
// Writing the fields directly bypasses clamping, which Commit guards against.
type Allocator struct {
	selection        *PaymentSelection
	advances         []AdvanceCheque
	totalOutstanding decimal.Decimal

	// Draft values, pending Commit.
	DeductFromThisTransaction decimal.Decimal
	RemainingDeductions       decimal.Decimal
	NetPaymentAmount          decimal.Decimal
}

// NewAllocator starts an allocation session for one grower.
// The advance list is copied and treated as immutable for the whole session.
// The draft is seeded from the selection's stored deduction.
func NewAllocator(selection *PaymentSelection, advances []AdvanceCheque) *Allocator {
	copied := make([]AdvanceCheque, len(advances))
	copy(copied, advances)

	a := &Allocator{
		selection:        selection,
		advances:         copied,
		totalOutstanding: TotalOutstanding(copied),
	}
	a.Cancel() // seed draft from stored values
	return a
}

// TotalOutstandingAdvances returns the aggregated advance balance for the
// session. Fixed at construction; the advance list never changes mid-session.
func (a *Allocator) TotalOutstandingAdvances() decimal.Decimal {
	return a.totalOutstanding
}

// Selection returns the payment selection this session edits.
func (a *Allocator) Selection() *PaymentSelection {
	return a.selection
}

// SetRequestedDeduction applies a requested deduction amount, clamping it to
// [0, total outstanding advances], and recomputes the derived values.
// It cannot fail; out-of-range requests clamp silently.
func (a *Allocator) SetRequestedDeduction(amount decimal.Decimal) DeductionAllocation {
	effective := amount
	if effective.IsNegative() {
		effective = decimal.Zero
	}
	if effective.GreaterThan(a.totalOutstanding) {
		effective = a.totalOutstanding
	}

	a.DeductFromThisTransaction = effective
	a.RemainingDeductions = a.totalOutstanding.Sub(effective)
	a.NetPaymentAmount = a.selection.ConsolidatedAmount.Sub(effective)

	return DeductionAllocation{
		DeductFromThisTransaction: a.DeductFromThisTransaction,
		RemainingDeductions:       a.RemainingDeductions,
		NetPaymentAmount:          a.NetPaymentAmount,
	}
}

// Validate reports whether the draft deduction is within bounds.
// Used to gate Commit.
func (a *Allocator) Validate() bool {
	d := a.DeductFromThisTransaction
	return !d.IsNegative() && d.LessThanOrEqual(a.totalOutstanding)
}

// Commit writes the draft deduction and remaining balance back onto the
// owning PaymentSelection. The net amount is never stored.
//
// Calling Commit when Validate() is false is a programming error: it fails
// with an InvalidStateError and performs no write-back. Persisting the
// selection afterwards is the caller's responsibility.
func (a *Allocator) Commit() error {
	if !a.Validate() {
		return &InvalidStateError{
			GrowerNumber:     a.selection.GrowerNumber,
			Deduction:        a.DeductFromThisTransaction,
			TotalOutstanding: a.totalOutstanding,
		}
	}

	a.selection.DeductFromThisTransaction = a.DeductFromThisTransaction
	a.selection.RemainingDeductions = a.RemainingDeductions
	return nil
}

// Cancel discards all pending edits, resetting the draft to the selection's
// stored values. No write-back occurs.
func (a *Allocator) Cancel() {
	a.DeductFromThisTransaction = a.selection.DeductFromThisTransaction
	a.RemainingDeductions = a.totalOutstanding.Sub(a.selection.DeductFromThisTransaction)
	a.NetPaymentAmount = a.selection.NetPayment()
}
