/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates growers, advances,
	and distributions that demonstrate specific workflows.

AVAILABLE SCENARIOS:

	advance-deduction:    Grower with outstanding advances ready to allocate
	clean-reconciliation: Distribution whose lines match its source exactly
	drifted-distribution: Distribution with amount drift and missing lines

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "advance-deduction"}

NOTE:

	Scenarios write straight into the store. Only use in development/demo
	environments.

SEE ALSO:
  - handlers.go: The endpoints the seeded data feeds
  - server.go: Scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvestpoint/payment-engine/grower"
	"github.com/harvestpoint/payment-engine/reconcile"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "advance-deduction",
		Name:        "Advance Deduction",
		Description: "Grower with a pending payment and outstanding advances ready to allocate",
		Category:    "allocation",
	},
	{
		ID:          "clean-reconciliation",
		Name:        "Clean Reconciliation",
		Description: "Finalized distribution whose recorded lines match the source exactly",
		Category:    "reconciliation",
	},
	{
		ID:          "drifted-distribution",
		Name:        "Drifted Distribution",
		Description: "Distribution with an amount mismatch and lines missing on each side",
		Category:    "reconciliation",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds the store with one scenario's data.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "advance-deduction":
		err = h.loadAdvanceDeductionScenario(r.Context())
	case "clean-reconciliation":
		err = h.loadCleanReconciliationScenario(r.Context())
	case "drifted-distribution":
		err = h.loadDriftedDistributionScenario(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadAdvanceDeductionScenario(ctx context.Context) error {
	sel := &grower.PaymentSelection{
		GrowerNumber:       "G-1042",
		GrowerName:         "Orchard Hill Farms",
		ConsolidatedAmount: decimal.RequireFromString("1000.00"),
	}
	if err := h.Store.SavePaymentSelection(ctx, sel); err != nil {
		return err
	}

	advances := []grower.AdvanceCheque{
		{
			ChequeNumber:         "ADV-2025-001",
			GrowerNumber:         "G-1042",
			IssuedAt:             time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
			CurrentAdvanceAmount: decimal.RequireFromString("180.00"),
		},
		{
			ChequeNumber:         "ADV-2025-002",
			GrowerNumber:         "G-1042",
			IssuedAt:             time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
			CurrentAdvanceAmount: decimal.RequireFromString("120.00"),
		},
	}
	for _, a := range advances {
		if err := h.Store.SaveAdvanceCheque(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadCleanReconciliationScenario(ctx context.Context) error {
	return h.seedDistribution(ctx, "dist-clean",
		[]seedLine{{"CHQ-101", "250.00"}, {"CHQ-102", "149.50"}},
		[]seedLine{{"CHQ-101", "250.00"}, {"CHQ-102", "149.50"}},
	)
}

func (h *Handler) loadDriftedDistributionScenario(ctx context.Context) error {
	return h.seedDistribution(ctx, "dist-drifted",
		[]seedLine{{"CHQ-201", "250.00"}, {"CHQ-202", "130.00"}},
		[]seedLine{{"CHQ-201", "245.25"}, {"CHQ-203", "80.00"}},
	)
}

type seedLine struct {
	Reference string
	Amount    string
}

func (h *Handler) seedDistribution(ctx context.Context, id string, lines, entries []seedLine) error {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(decimal.RequireFromString(l.Amount))
	}

	err := h.Store.SaveDistribution(ctx, reconcile.PaymentDistribution{
		ID:           id,
		GrowerNumber: "G-1042",
		Amount:       total,
		Status:       reconcile.StatusFinalized,
		FinalizedAt:  time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return err
	}

	for _, l := range lines {
		err := h.Store.AddDistributionLine(ctx, reconcile.PaymentLine{
			DistributionID: id,
			GrowerNumber:   "G-1042",
			Reference:      l.Reference,
			Amount:         decimal.RequireFromString(l.Amount),
		})
		if err != nil {
			return err
		}
	}
	for _, e := range entries {
		err := h.Store.AddSourceEntry(ctx, reconcile.SourceEntry{
			DistributionID: id,
			GrowerNumber:   "G-1042",
			Reference:      e.Reference,
			Amount:         decimal.RequireFromString(e.Amount),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
