package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestpoint/payment-engine/grower"
	"github.com/harvestpoint/payment-engine/reconcile"
	"github.com/harvestpoint/payment-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { store.Close() })
	return store
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedDistribution(t *testing.T, store *sqlite.Store, id string, status reconcile.Status) {
	t.Helper()
	err := store.SaveDistribution(context.Background(), reconcile.PaymentDistribution{
		ID:           id,
		GrowerNumber: "G-1042",
		Amount:       money("500.00"),
		Status:       status,
		FinalizedAt:  time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

// =============================================================================
// PAYMENT SELECTION TESTS
// =============================================================================

func TestPaymentSelection_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sel := &grower.PaymentSelection{
		GrowerName:                "Orchard Hill Farms",
		GrowerNumber:              "G-1042",
		ConsolidatedAmount:        money("1000.00"),
		DeductFromThisTransaction: money("300.00"),
		RemainingDeductions:       money("0.00"),
	}
	require.NoError(t, store.SavePaymentSelection(ctx, sel))

	got, err := store.GetPaymentSelection(ctx, "G-1042")
	require.NoError(t, err)
	assert.Equal(t, "Orchard Hill Farms", got.GrowerName)
	assert.True(t, got.ConsolidatedAmount.Equal(money("1000.00")))
	assert.True(t, got.DeductFromThisTransaction.Equal(money("300.00")))
	assert.True(t, got.NetPayment().Equal(money("700.00")))
}

func TestPaymentSelection_UnknownGrower(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPaymentSelection(context.Background(), "G-9999")
	assert.ErrorIs(t, err, grower.ErrGrowerNotFound)
}

func TestPaymentSelection_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sel := &grower.PaymentSelection{
		GrowerNumber:       "G-1042",
		GrowerName:         "Orchard Hill Farms",
		ConsolidatedAmount: money("1000.00"),
	}
	require.NoError(t, store.SavePaymentSelection(ctx, sel))

	sel.DeductFromThisTransaction = money("250.00")
	sel.RemainingDeductions = money("50.00")
	require.NoError(t, store.SavePaymentSelection(ctx, sel))

	got, err := store.GetPaymentSelection(ctx, "G-1042")
	require.NoError(t, err)
	assert.True(t, got.DeductFromThisTransaction.Equal(money("250.00")))
	assert.True(t, got.RemainingDeductions.Equal(money("50.00")))
}

// =============================================================================
// ADVANCE CHEQUE TESTS
// =============================================================================

func TestAdvances_OrderedOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	newer := grower.AdvanceCheque{
		ChequeNumber:         "ADV-2",
		GrowerNumber:         "G-1042",
		IssuedAt:             time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		CurrentAdvanceAmount: money("120.00"),
	}
	older := grower.AdvanceCheque{
		ChequeNumber:         "ADV-1",
		GrowerNumber:         "G-1042",
		IssuedAt:             time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		CurrentAdvanceAmount: money("180.00"),
	}
	require.NoError(t, store.SaveAdvanceCheque(ctx, newer))
	require.NoError(t, store.SaveAdvanceCheque(ctx, older))

	advances, err := store.AdvancesByGrower(ctx, "G-1042")
	require.NoError(t, err)
	require.Len(t, advances, 2)
	assert.Equal(t, "ADV-1", advances[0].ChequeNumber)
	assert.Equal(t, "ADV-2", advances[1].ChequeNumber)
	assert.True(t, grower.TotalOutstanding(advances).Equal(money("300.00")))
}

func TestAdvances_ScopedToGrower(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveAdvanceCheque(ctx, grower.AdvanceCheque{
		ChequeNumber: "ADV-1", GrowerNumber: "G-1042",
		IssuedAt: time.Now(), CurrentAdvanceAmount: money("100.00"),
	}))

	advances, err := store.AdvancesByGrower(ctx, "G-2000")
	require.NoError(t, err)
	assert.Empty(t, advances)
}

// =============================================================================
// DISTRIBUTION TESTS
// =============================================================================

func TestDistributions_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedDistribution(t, store, "d1", reconcile.StatusFinalized)
	seedDistribution(t, store, "d2", reconcile.StatusCompleted)

	all, err := store.GetAllDistributions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	got, err := store.GetDistribution(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, reconcile.StatusFinalized, got.Status)
	assert.True(t, got.Amount.Equal(money("500.00")))
}

func TestDistributions_UnknownIsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetDistribution(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDistributionLines_DuplicateReferenceRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedDistribution(t, store, "d1", reconcile.StatusFinalized)

	line := reconcile.PaymentLine{
		DistributionID: "d1", GrowerNumber: "G-1042",
		Reference: "CHQ-001", Amount: money("250.00"),
	}
	require.NoError(t, store.AddDistributionLine(ctx, line))
	assert.Error(t, store.AddDistributionLine(ctx, line))
}

// =============================================================================
// REPORT AND COMPLETION TESTS
// =============================================================================

func TestSaveReport_PersistsAndMarksReconciled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedDistribution(t, store, "d1", reconcile.StatusFinalized)

	report := &reconcile.Report{
		ID:             "rep-1",
		DistributionID: "d1",
		Matched: []reconcile.ReportLine{{
			GrowerNumber: "G-1042", Reference: "CHQ-001",
			Recorded: money("250.00"), Source: money("250.00"), Delta: decimal.Zero,
		}},
		Discrepancies: []reconcile.ReportLine{{
			GrowerNumber: "G-1042", Reference: "CHQ-002",
			Recorded: money("250.00"), Source: money("245.25"), Delta: money("4.75"),
		}},
		RecordedTotal:    money("500.00"),
		SourceTotal:      money("495.25"),
		TotalDiscrepancy: money("4.75"),
		GeneratedAt:      time.Date(2025, time.September, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveReport(ctx, report))

	dist, err := store.GetDistribution(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusReconciled, dist.Status)

	got, err := store.GetReport(ctx, "rep-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Matched, 1)
	require.Len(t, got.Discrepancies, 1)
	assert.True(t, got.Discrepancies[0].Delta.Equal(money("4.75")))
	assert.True(t, got.TotalDiscrepancy.Equal(money("4.75")))
	assert.False(t, got.Clean())
}

func TestMarkCompleted_StampsActorAndTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedDistribution(t, store, "d1", reconcile.StatusReconciled)

	require.NoError(t, store.MarkCompleted(ctx, "d1", "clerk-7"))

	dist, err := store.GetDistribution(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusCompleted, dist.Status)
	assert.Equal(t, "clerk-7", dist.CompletedBy)
	require.NotNil(t, dist.CompletedAt)
}

func TestMarkCompleted_AlreadyCompletedRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedDistribution(t, store, "d1", reconcile.StatusCompleted)

	assert.Error(t, store.MarkCompleted(ctx, "d1", "clerk-7"))
}

func TestMarkCompleted_UnknownRejected(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.MarkCompleted(context.Background(), "ghost", "clerk-7"))
}

// =============================================================================
// END-TO-END: COMPUTER AGAINST THE REAL STORE
// =============================================================================

func TestStoreComputer_AgainstSQLite(t *testing.T) {
	// GIVEN: A finalized distribution with one matching and one drifted line
	// WHEN: The full workflow runs against the sqlite store
	// THEN: The report persists, the status advances, completion closes it out

	store := newTestStore(t)
	ctx := context.Background()
	seedDistribution(t, store, "d1", reconcile.StatusFinalized)

	require.NoError(t, store.AddDistributionLine(ctx, reconcile.PaymentLine{
		DistributionID: "d1", GrowerNumber: "G-1042", Reference: "CHQ-001", Amount: money("250.00"),
	}))
	require.NoError(t, store.AddDistributionLine(ctx, reconcile.PaymentLine{
		DistributionID: "d1", GrowerNumber: "G-1042", Reference: "CHQ-002", Amount: money("250.00"),
	}))
	require.NoError(t, store.AddSourceEntry(ctx, reconcile.SourceEntry{
		DistributionID: "d1", GrowerNumber: "G-1042", Reference: "CHQ-001", Amount: money("250.00"),
	}))
	require.NoError(t, store.AddSourceEntry(ctx, reconcile.SourceEntry{
		DistributionID: "d1", GrowerNumber: "G-1042", Reference: "CHQ-002", Amount: money("245.25"),
	}))

	coordinator := reconcile.NewCoordinator(store, reconcile.NewStoreComputer(store), nil)
	require.NoError(t, coordinator.LoadWorkingSet(ctx))
	require.Len(t, coordinator.Distributions(), 1)

	rep, err := coordinator.ReconcileOne(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, rep.Matched, 1)
	assert.Len(t, rep.Discrepancies, 1)
	assert.True(t, rep.TotalDiscrepancy.Equal(money("4.75")))

	persisted, err := store.GetReport(ctx, rep.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)

	require.NoError(t, coordinator.CompleteOne(ctx, "d1", ""))
	assert.Empty(t, coordinator.Distributions())

	dist, err := store.GetDistribution(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusCompleted, dist.Status)
	assert.Equal(t, reconcile.SystemActor, dist.CompletedBy)
}
