/*
coordinator.go - Reconciliation workflow sequencing

PURPOSE:
  The Coordinator manages one reconciliation screen session: a working set
  of finalized distributions, the single current report, and the advisory
  busy flag. One Coordinator is created per session and discarded with it.

WORKING SET:
  LoadWorkingSet fetches everything from the distribution source and keeps
  only finalized distributions, replacing the prior set entirely. If the
  fetch fails the prior set is left untouched; partial lists are never
  admitted.

CURRENT REPORT:
  A single slot. Every successful ReconcileOne overwrites it; a failed one
  leaves it unchanged. Reports are never merged.

BUSY FLAG:
  IsReconciling is advisory: it lets a presentation layer disable
  concurrent triggering within the same session. It is NOT a lock and does
  not stop another coordinator instance elsewhere from reconciling the same
  distribution. True cross-session exclusion would need a per-distribution
  lock or version token on the store side.

ORDERING:
  Within one coordinator, ReconcileOne and CompleteOne are expected to be
  strictly sequential; callers must not overlap them. The internal mutex
  protects field consistency, not workflow ordering.

SEE ALSO:
  - types.go: Collaborator contracts
  - computer.go: Default ReconciliationComputer
*/
package reconcile

import (
	"context"
	"sync"
)

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator sequences the reconciliation of a working set of finalized
// distributions and tracks the single current report.
type Coordinator struct {
	source   DistributionSource
	computer ReconciliationComputer
	exporter Exporter

	mu          sync.Mutex
	working     []PaymentDistribution
	current     *Report
	reconciling bool
}

// NewCoordinator creates a coordinator for one reconciliation session.
// A nil exporter falls back to the no-op exporter.
func NewCoordinator(source DistributionSource, computer ReconciliationComputer, exporter Exporter) *Coordinator {
	if exporter == nil {
		exporter = NopExporter{}
	}
	return &Coordinator{
		source:   source,
		computer: computer,
		exporter: exporter,
	}
}

// =============================================================================
// WORKING SET
// =============================================================================

// LoadWorkingSet fetches all distributions and retains only the finalized
// ones, replacing the prior working set entirely.
//
// On fetch failure the working set keeps its previous contents and the
// failure is returned. The busy flag plays no part in loading.
func (c *Coordinator) LoadWorkingSet(ctx context.Context) error {
	all, err := c.source.GetAllDistributions(ctx)
	if err != nil {
		return &DataAccessError{Op: "load working set", Err: err}
	}

	finalized := make([]PaymentDistribution, 0, len(all))
	for _, d := range all {
		if d.Status == StatusFinalized {
			finalized = append(finalized, d)
		}
	}

	c.mu.Lock()
	c.working = finalized
	c.mu.Unlock()
	return nil
}

// Distributions returns the current working set in load order.
// The returned slice is a copy; only the coordinator mutates the set.
func (c *Coordinator) Distributions() []PaymentDistribution {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]PaymentDistribution, len(c.working))
	copy(out, c.working)
	return out
}

// =============================================================================
// RECONCILE / COMPLETE
// =============================================================================

// ReconcileOne runs the reconciliation computation for one distribution in
// the working set and stores the result as the sole current report.
//
// The busy flag is set for the duration of the call and always cleared,
// regardless of outcome. On failure the current report is left unchanged.
// Re-running for the same distribution is an idempotent retry.
func (c *Coordinator) ReconcileOne(ctx context.Context, distributionID string) (*Report, error) {
	c.mu.Lock()
	if !c.inWorkingSetLocked(distributionID) {
		c.mu.Unlock()
		return nil, &NotInWorkingSetError{DistributionID: distributionID}
	}
	c.reconciling = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconciling = false
		c.mu.Unlock()
	}()

	report, err := c.computer.Reconcile(ctx, distributionID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.current = report
	for i := range c.working {
		if c.working[i].ID == distributionID {
			c.working[i].Status = StatusReconciled
		}
	}
	c.mu.Unlock()
	return report, nil
}

// CompleteOne marks a working-set distribution completed, attributing the
// action to actorID (SystemActor when unknown), then reloads the working
// set so the completed item drops from view.
//
// On failure both the working set and the current report are left
// unchanged.
func (c *Coordinator) CompleteOne(ctx context.Context, distributionID, actorID string) error {
	c.mu.Lock()
	ok := c.inWorkingSetLocked(distributionID)
	c.mu.Unlock()
	if !ok {
		return &NotInWorkingSetError{DistributionID: distributionID}
	}

	if actorID == "" {
		actorID = SystemActor
	}

	if err := c.computer.MarkCompleted(ctx, distributionID, actorID); err != nil {
		return err
	}

	return c.LoadWorkingSet(ctx)
}

func (c *Coordinator) inWorkingSetLocked(distributionID string) bool {
	for i := range c.working {
		if c.working[i].ID == distributionID {
			return true
		}
	}
	return false
}

// =============================================================================
// OBSERVABLE STATE
// =============================================================================

// CurrentReport returns the single current report, or nil before the first
// successful reconciliation.
func (c *Coordinator) CurrentReport() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// IsReconciling reports whether a reconciliation call is in flight.
// Advisory only; see the package notes on concurrency.
func (c *Coordinator) IsReconciling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconciling
}

// =============================================================================
// REPORT PASS-THROUGH HOOKS
// =============================================================================

// GenerateReport hands the current report to the exporter. No decision
// logic lives here.
func (c *Coordinator) GenerateReport(ctx context.Context) error {
	report := c.CurrentReport()
	if report == nil {
		return ErrNoCurrentReport
	}
	return c.exporter.GenerateReport(ctx, report)
}

// ExportReport hands the current report to the exporter in the requested
// format. No decision logic lives here.
func (c *Coordinator) ExportReport(ctx context.Context, format string) error {
	report := c.CurrentReport()
	if report == nil {
		return ErrNoCurrentReport
	}
	return c.exporter.ExportReport(ctx, report, format)
}
