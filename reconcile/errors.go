/*
errors.go - Centralized error types for the reconciliation workflow

ERROR CATEGORIES:
  1. Data-access errors - the distribution/report store is unreachable or
     returned malformed data. Recoverable; state stays at last-known-good.
  2. Reconciliation errors - the computation rejects a distribution
     (unknown, already completed, inconsistent). Surfaced per item.
  3. Workflow errors - operating on a distribution outside the working set.

USAGE:
  if errors.Is(err, reconcile.ErrDataAccess) { ... }
  var re *reconcile.ReconciliationError
  if errors.As(err, &re) { ... }
*/
package reconcile

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDataAccess is returned when the distribution or report store is
	// unreachable or fails a read/write.
	ErrDataAccess = errors.New("distribution store unavailable")

	// ErrReconciliation is returned when the reconciliation computation
	// rejects a distribution.
	ErrReconciliation = errors.New("reconciliation rejected")

	// ErrNotInWorkingSet is returned when an operation targets a
	// distribution that is not in the coordinator's working set.
	ErrNotInWorkingSet = errors.New("distribution not in working set")

	// ErrNoCurrentReport is returned by the report pass-through hooks when
	// nothing has been reconciled yet.
	ErrNoCurrentReport = errors.New("no current report")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DataAccessError wraps a store failure with the operation that failed.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return ErrDataAccess
}

// ReconciliationError explains why a distribution was rejected by the
// computation.
type ReconciliationError struct {
	DistributionID string
	Reason         string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("cannot reconcile distribution %s: %s", e.DistributionID, e.Reason)
}

func (e *ReconciliationError) Unwrap() error {
	return ErrReconciliation
}

// NotInWorkingSetError identifies the missing distribution.
type NotInWorkingSetError struct {
	DistributionID string
}

func (e *NotInWorkingSetError) Error() string {
	return fmt.Sprintf("distribution %s is not in the working set", e.DistributionID)
}

func (e *NotInWorkingSetError) Unwrap() error {
	return ErrNotInWorkingSet
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRecoverable returns true if the failure is a transient store problem
// the caller may retry.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrDataAccess)
}

// IsClientError returns true if the error is due to an invalid request
// rather than a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrReconciliation) ||
		errors.Is(err, ErrNotInWorkingSet) ||
		errors.Is(err, ErrNoCurrentReport)
}
