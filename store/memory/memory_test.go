package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestpoint/payment-engine/grower"
	"github.com/harvestpoint/payment-engine/reconcile"
	"github.com/harvestpoint/payment-engine/store/memory"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMemory_SelectionAndAdvances(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.SavePaymentSelection(ctx, &grower.PaymentSelection{
		GrowerNumber:       "G-1042",
		GrowerName:         "Orchard Hill Farms",
		ConsolidatedAmount: money("1000.00"),
	}))
	require.NoError(t, store.SaveAdvanceCheque(ctx, grower.AdvanceCheque{
		ChequeNumber: "ADV-1", GrowerNumber: "G-1042",
		IssuedAt: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), CurrentAdvanceAmount: money("300.00"),
	}))

	sel, err := store.GetPaymentSelection(ctx, "G-1042")
	require.NoError(t, err)
	assert.True(t, sel.ConsolidatedAmount.Equal(money("1000.00")))

	advances, err := store.AdvancesByGrower(ctx, "G-1042")
	require.NoError(t, err)
	assert.True(t, grower.TotalOutstanding(advances).Equal(money("300.00")))

	_, err = store.GetPaymentSelection(ctx, "G-9999")
	assert.ErrorIs(t, err, grower.ErrGrowerNotFound)
}

func TestMemory_ReconciliationWorkflow(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.SaveDistribution(ctx, reconcile.PaymentDistribution{
		ID: "d1", GrowerNumber: "G-1042", Amount: money("500.00"),
		Status: reconcile.StatusFinalized, FinalizedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.AddDistributionLine(ctx, reconcile.PaymentLine{
		DistributionID: "d1", GrowerNumber: "G-1042", Reference: "CHQ-001", Amount: money("500.00"),
	}))
	require.NoError(t, store.AddSourceEntry(ctx, reconcile.SourceEntry{
		DistributionID: "d1", GrowerNumber: "G-1042", Reference: "CHQ-001", Amount: money("500.00"),
	}))

	coordinator := reconcile.NewCoordinator(store, reconcile.NewStoreComputer(store), nil)
	require.NoError(t, coordinator.LoadWorkingSet(ctx))

	rep, err := coordinator.ReconcileOne(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, rep.Clean())

	saved, err := store.GetReport(ctx, rep.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)

	require.NoError(t, coordinator.CompleteOne(ctx, "d1", "clerk-7"))
	assert.Empty(t, coordinator.Distributions())

	dist, err := store.GetDistribution(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "clerk-7", dist.CompletedBy)
}

func TestMemory_DuplicateLineReferenceRejected(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	line := reconcile.PaymentLine{
		DistributionID: "d1", GrowerNumber: "G-1042", Reference: "CHQ-001", Amount: money("100.00"),
	}
	require.NoError(t, store.AddDistributionLine(ctx, line))
	assert.Error(t, store.AddDistributionLine(ctx, line))
}
