/*
Package reconcile manages the payment-distribution reconciliation workflow.

PURPOSE:
  Finalized payment distributions are checked against their authoritative
  source records before being closed out. This package sequences that
  lifecycle: load the working set of finalized distributions, reconcile
  them one at a time into a report, and mark them completed.

LIFECYCLE (per distribution):
  finalized --(reconcile)--> reconciled --(mark complete)--> completed
                                                                 |
                                             removed from the working set

  Re-reconciling a distribution is an allowed idempotent retry; it simply
  replaces the current report. There is no transition back to finalized.

KEY CONCEPTS IN THIS FILE (types.go):
  - PaymentDistribution: one finalized disbursement awaiting reconciliation
  - Report: the result of reconciling one distribution
  - DistributionSource / ReconciliationComputer: collaborator contracts

SEE ALSO:
  - coordinator.go: Workflow sequencing and the current-report slot
  - computer.go: Store-backed reconciliation computation
  - exporter.go: Report generation/export pass-through hooks
*/
package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SystemActor is the fallback acting identity used when a completion is
// requested without a known actor.
const SystemActor = "SYSTEM"

// =============================================================================
// PAYMENT DISTRIBUTION
// =============================================================================

// Status is the lifecycle state of a payment distribution.
type Status string

const (
	// StatusFinalized marks a distribution ready for reconciliation but not
	// yet checked against source records. Only finalized distributions enter
	// the workflow.
	StatusFinalized Status = "finalized"

	// StatusReconciled marks a distribution with a produced report.
	StatusReconciled Status = "reconciled"

	// StatusCompleted marks a distribution closed out; it exits the workflow.
	StatusCompleted Status = "completed"
)

// PaymentDistribution is one finalized disbursement awaiting reconciliation.
// Distributions are created upstream, outside this package, in finalized
// state.
type PaymentDistribution struct {
	ID           string
	GrowerNumber string
	Amount       decimal.Decimal
	Status       Status
	FinalizedAt  time.Time
	CompletedAt  *time.Time
	CompletedBy  string
}

// PaymentLine is one recorded disbursement entry belonging to a
// distribution.
type PaymentLine struct {
	DistributionID string
	GrowerNumber   string
	Reference      string
	Amount         decimal.Decimal
}

// SourceEntry is one authoritative source record a distribution's lines are
// checked against.
type SourceEntry struct {
	DistributionID string
	GrowerNumber   string
	Reference      string
	Amount         decimal.Decimal
}

// =============================================================================
// RECONCILIATION REPORT
// =============================================================================

// ReportLine pairs a recorded disbursement with its source record.
// Delta is Recorded - Source, exact decimal.
type ReportLine struct {
	GrowerNumber string
	Reference    string
	Recorded     decimal.Decimal
	Source       decimal.Decimal
	Delta        decimal.Decimal
}

// Report is the result of reconciling one payment distribution. The
// coordinator owns at most one report at a time (single slot, overwritten
// by the next reconciliation, never merged).
type Report struct {
	ID             string
	DistributionID string
	Matched        []ReportLine
	Discrepancies  []ReportLine

	RecordedTotal    decimal.Decimal
	SourceTotal      decimal.Decimal
	TotalDiscrepancy decimal.Decimal

	GeneratedAt time.Time
}

// Clean reports whether the distribution reconciled without discrepancies.
func (r *Report) Clean() bool {
	return len(r.Discrepancies) == 0
}

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// DistributionSource provides the distributions the workflow operates on.
type DistributionSource interface {
	// GetAllDistributions returns every known distribution regardless of
	// status. The coordinator filters to finalized ones.
	GetAllDistributions(ctx context.Context) ([]PaymentDistribution, error)
}

// ReconciliationComputer performs the per-distribution reconciliation
// computation and the completion write.
type ReconciliationComputer interface {
	// Reconcile compares one distribution's recorded lines against its
	// authoritative source records and produces a report. Fails with a
	// ReconciliationError if the distribution is not eligible.
	Reconcile(ctx context.Context, distributionID string) (*Report, error)

	// MarkCompleted closes out a distribution, attributing the action to
	// actorID.
	MarkCompleted(ctx context.Context, distributionID, actorID string) error
}
