// Package memory provides an in-memory payment store (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harvestpoint/payment-engine/grower"
	"github.com/harvestpoint/payment-engine/reconcile"
)

// =============================================================================
// MEMORY STORE - Mirrors the sqlite store's surface without a database
// =============================================================================

type Store struct {
	mu         sync.RWMutex
	selections map[string]grower.PaymentSelection
	advances   map[string][]grower.AdvanceCheque
	dists      map[string]reconcile.PaymentDistribution
	lines      map[string][]reconcile.PaymentLine
	entries    map[string][]reconcile.SourceEntry
	reports    map[string]reconcile.Report
}

func New() *Store {
	return &Store{
		selections: make(map[string]grower.PaymentSelection),
		advances:   make(map[string][]grower.AdvanceCheque),
		dists:      make(map[string]reconcile.PaymentDistribution),
		lines:      make(map[string][]reconcile.PaymentLine),
		entries:    make(map[string][]reconcile.SourceEntry),
		reports:    make(map[string]reconcile.Report),
	}
}

// =============================================================================
// PAYMENT SELECTIONS AND ADVANCES
// =============================================================================

func (m *Store) SavePaymentSelection(_ context.Context, sel *grower.PaymentSelection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selections[sel.GrowerNumber] = *sel
	return nil
}

func (m *Store) GetPaymentSelection(_ context.Context, growerNumber string) (*grower.PaymentSelection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sel, ok := m.selections[growerNumber]
	if !ok {
		return nil, grower.ErrGrowerNotFound
	}
	return &sel, nil
}

func (m *Store) SaveAdvanceCheque(_ context.Context, cheque grower.AdvanceCheque) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.advances[cheque.GrowerNumber]
	for i := range list {
		if list[i].ChequeNumber == cheque.ChequeNumber {
			list[i] = cheque
			return nil
		}
	}
	m.advances[cheque.GrowerNumber] = append(list, cheque)
	return nil
}

func (m *Store) AdvancesByGrower(_ context.Context, growerNumber string) ([]grower.AdvanceCheque, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]grower.AdvanceCheque, len(m.advances[growerNumber]))
	copy(result, m.advances[growerNumber])
	sort.Slice(result, func(i, j int) bool {
		if !result[i].IssuedAt.Equal(result[j].IssuedAt) {
			return result[i].IssuedAt.Before(result[j].IssuedAt)
		}
		return result[i].ChequeNumber < result[j].ChequeNumber
	})
	return result, nil
}

// =============================================================================
// DISTRIBUTIONS
// =============================================================================

func (m *Store) SaveDistribution(_ context.Context, dist reconcile.PaymentDistribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dists[dist.ID] = dist
	return nil
}

func (m *Store) GetAllDistributions(_ context.Context) ([]reconcile.PaymentDistribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]reconcile.PaymentDistribution, 0, len(m.dists))
	for _, d := range m.dists {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].FinalizedAt.Equal(result[j].FinalizedAt) {
			return result[i].FinalizedAt.Before(result[j].FinalizedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Store) GetDistribution(_ context.Context, distributionID string) (*reconcile.PaymentDistribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dist, ok := m.dists[distributionID]
	if !ok {
		return nil, nil
	}
	return &dist, nil
}

func (m *Store) AddDistributionLine(_ context.Context, line reconcile.PaymentLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.lines[line.DistributionID] {
		if l.Reference == line.Reference {
			return fmt.Errorf("duplicate reference %s on distribution %s", line.Reference, line.DistributionID)
		}
	}
	m.lines[line.DistributionID] = append(m.lines[line.DistributionID], line)
	return nil
}

func (m *Store) AddSourceEntry(_ context.Context, entry reconcile.SourceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries[entry.DistributionID] {
		if e.Reference == entry.Reference {
			return fmt.Errorf("duplicate reference %s on distribution %s", entry.Reference, entry.DistributionID)
		}
	}
	m.entries[entry.DistributionID] = append(m.entries[entry.DistributionID], entry)
	return nil
}

func (m *Store) DistributionLines(_ context.Context, distributionID string) ([]reconcile.PaymentLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]reconcile.PaymentLine, len(m.lines[distributionID]))
	copy(result, m.lines[distributionID])
	return result, nil
}

func (m *Store) SourceEntries(_ context.Context, distributionID string) ([]reconcile.SourceEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]reconcile.SourceEntry, len(m.entries[distributionID]))
	copy(result, m.entries[distributionID])
	return result, nil
}

// =============================================================================
// REPORTS AND COMPLETION
// =============================================================================

func (m *Store) SaveReport(_ context.Context, report *reconcile.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reports[report.ID] = *report
	if dist, ok := m.dists[report.DistributionID]; ok && dist.Status != reconcile.StatusCompleted {
		dist.Status = reconcile.StatusReconciled
		m.dists[report.DistributionID] = dist
	}
	return nil
}

func (m *Store) MarkCompleted(_ context.Context, distributionID, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dist, ok := m.dists[distributionID]
	if !ok || dist.Status == reconcile.StatusCompleted {
		return fmt.Errorf("distribution %s is not open for completion", distributionID)
	}

	now := time.Now().UTC()
	dist.Status = reconcile.StatusCompleted
	dist.CompletedAt = &now
	dist.CompletedBy = actorID
	m.dists[distributionID] = dist
	return nil
}

func (m *Store) GetReport(_ context.Context, reportID string) (*reconcile.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report, ok := m.reports[reportID]
	if !ok {
		return nil, nil
	}
	return &report, nil
}
