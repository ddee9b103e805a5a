/*
computer.go - Store-backed reconciliation computation

PURPOSE:
  The default ReconciliationComputer. For one distribution it pairs the
  recorded payment lines against the authoritative source entries by
  reference, and produces a report of matches and discrepancies with exact
  decimal deltas.

MATCHING:
  - Same reference, equal amounts       -> matched line
  - Same reference, differing amounts   -> discrepancy (delta = recorded - source)
  - Recorded line with no source entry  -> discrepancy (source zero)
  - Source entry with no recorded line  -> discrepancy (recorded zero)

ELIGIBILITY:
  Unknown and already-completed distributions are rejected with a
  ReconciliationError. Store failures surface as DataAccessError; the
  report slot and distribution status are only touched on full success.

SEE ALSO:
  - store/sqlite: ComputerStore implementation
  - store/memory: In-memory ComputerStore for tests
*/
package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPUTER STORE - What the computation needs from persistence
// =============================================================================

// ComputerStore provides the rows the computation compares and the writes
// it performs.
type ComputerStore interface {
	// GetDistribution returns the distribution, or nil if unknown.
	GetDistribution(ctx context.Context, distributionID string) (*PaymentDistribution, error)

	// DistributionLines returns the recorded disbursement entries.
	DistributionLines(ctx context.Context, distributionID string) ([]PaymentLine, error)

	// SourceEntries returns the authoritative source records.
	SourceEntries(ctx context.Context, distributionID string) ([]SourceEntry, error)

	// SaveReport persists the report and marks its distribution reconciled,
	// atomically.
	SaveReport(ctx context.Context, report *Report) error

	// MarkCompleted closes out a distribution with the acting identity.
	MarkCompleted(ctx context.Context, distributionID, actorID string) error
}

// =============================================================================
// STORE COMPUTER
// =============================================================================

// StoreComputer implements ReconciliationComputer against a ComputerStore.
type StoreComputer struct {
	Store ComputerStore
}

// NewStoreComputer creates the default reconciliation computer.
func NewStoreComputer(store ComputerStore) *StoreComputer {
	return &StoreComputer{Store: store}
}

// Reconcile produces the reconciliation report for one distribution.
func (sc *StoreComputer) Reconcile(ctx context.Context, distributionID string) (*Report, error) {
	dist, err := sc.Store.GetDistribution(ctx, distributionID)
	if err != nil {
		return nil, &DataAccessError{Op: "load distribution", Err: err}
	}
	if dist == nil {
		return nil, &ReconciliationError{DistributionID: distributionID, Reason: "unknown distribution"}
	}
	if dist.Status == StatusCompleted {
		return nil, &ReconciliationError{DistributionID: distributionID, Reason: "already completed"}
	}

	lines, err := sc.Store.DistributionLines(ctx, distributionID)
	if err != nil {
		return nil, &DataAccessError{Op: "load distribution lines", Err: err}
	}
	entries, err := sc.Store.SourceEntries(ctx, distributionID)
	if err != nil {
		return nil, &DataAccessError{Op: "load source entries", Err: err}
	}

	report := buildReport(distributionID, lines, entries)

	if err := sc.Store.SaveReport(ctx, report); err != nil {
		return nil, &DataAccessError{Op: "save report", Err: err}
	}
	return report, nil
}

// MarkCompleted closes out the distribution via the store.
func (sc *StoreComputer) MarkCompleted(ctx context.Context, distributionID, actorID string) error {
	if actorID == "" {
		actorID = SystemActor
	}
	if err := sc.Store.MarkCompleted(ctx, distributionID, actorID); err != nil {
		return &DataAccessError{Op: "mark completed", Err: err}
	}
	return nil
}

// =============================================================================
// REPORT CONSTRUCTION
// =============================================================================

func buildReport(distributionID string, lines []PaymentLine, entries []SourceEntry) *Report {
	sourceByRef := make(map[string]SourceEntry, len(entries))
	for _, e := range entries {
		sourceByRef[e.Reference] = e
	}

	report := &Report{
		ID:             uuid.NewString(),
		DistributionID: distributionID,
		GeneratedAt:    time.Now().UTC(),
	}

	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		seen[line.Reference] = true
		report.RecordedTotal = report.RecordedTotal.Add(line.Amount)

		src, ok := sourceByRef[line.Reference]
		if !ok {
			report.Discrepancies = append(report.Discrepancies, ReportLine{
				GrowerNumber: line.GrowerNumber,
				Reference:    line.Reference,
				Recorded:     line.Amount,
				Source:       decimal.Zero,
				Delta:        line.Amount,
			})
			continue
		}

		rl := ReportLine{
			GrowerNumber: line.GrowerNumber,
			Reference:    line.Reference,
			Recorded:     line.Amount,
			Source:       src.Amount,
			Delta:        line.Amount.Sub(src.Amount),
		}
		if rl.Delta.IsZero() {
			report.Matched = append(report.Matched, rl)
		} else {
			report.Discrepancies = append(report.Discrepancies, rl)
		}
	}

	// Source entries never recorded as disbursed.
	for _, e := range entries {
		report.SourceTotal = report.SourceTotal.Add(e.Amount)
		if !seen[e.Reference] {
			report.Discrepancies = append(report.Discrepancies, ReportLine{
				GrowerNumber: e.GrowerNumber,
				Reference:    e.Reference,
				Recorded:     decimal.Zero,
				Source:       e.Amount,
				Delta:        e.Amount.Neg(),
			})
		}
	}

	for _, d := range report.Discrepancies {
		report.TotalDiscrepancy = report.TotalDiscrepancy.Add(d.Delta.Abs())
	}

	// Deterministic line order regardless of store iteration order.
	sort.Slice(report.Matched, func(i, j int) bool {
		return report.Matched[i].Reference < report.Matched[j].Reference
	})
	sort.Slice(report.Discrepancies, func(i, j int) bool {
		return report.Discrepancies[i].Reference < report.Discrepancies[j].Reference
	})

	return report
}
