/*
handlers_test.go - HTTP tests for the API surface

Exercises the full stack: router, handlers, coordinator, and the sqlite
store, over a real HTTP server.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestpoint/payment-engine/reconcile"
	"github.com/harvestpoint/payment-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err, "failed to create store")

	coordinator := reconcile.NewCoordinator(store, reconcile.NewStoreComputer(store), nil)
	server := httptest.NewServer(NewRouter(NewHandler(store, coordinator)))

	t.Cleanup(func() {
		server.Close()
		store.Close()
	})
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func seedGrower(t *testing.T, baseURL, number, consolidated string, advances ...string) {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/growers", CreateSelectionRequest{
		GrowerNumber:       number,
		GrowerName:         "Orchard Hill Farms",
		ConsolidatedAmount: consolidated,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for i, amount := range advances {
		resp := postJSON(t, fmt.Sprintf("%s/api/growers/%s/advances", baseURL, number), CreateAdvanceRequest{
			ChequeNumber:         fmt.Sprintf("ADV-%d", i+1),
			CurrentAdvanceAmount: amount,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
}

func seedDistribution(t *testing.T, baseURL, id string, lines, entries map[string]string) {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/distributions", CreateDistributionRequest{
		ID:           id,
		GrowerNumber: "G-1042",
		Amount:       "500.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for ref, amount := range lines {
		resp := postJSON(t, fmt.Sprintf("%s/api/distributions/%s/lines", baseURL, id), LineRequest{
			GrowerNumber: "G-1042", Reference: ref, Amount: amount,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	for ref, amount := range entries {
		resp := postJSON(t, fmt.Sprintf("%s/api/distributions/%s/source-entries", baseURL, id), LineRequest{
			GrowerNumber: "G-1042", Reference: ref, Amount: amount,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
}

// =============================================================================
// ALLOCATION TESTS
// =============================================================================

func TestPreviewAllocation_ClampsOversizedRequest(t *testing.T) {
	server := setupTestServer(t)
	seedGrower(t, server.URL, "G-1042", "1000.00", "180.00", "120.00")

	resp := postJSON(t, server.URL+"/api/growers/G-1042/allocation/preview", AllocationRequest{
		RequestedDeduction: "500.00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	allocation := decodeBody[AllocationDTO](t, resp)
	assert.Equal(t, "300", allocation.DeductFromThisTransaction)
	assert.Equal(t, "0", allocation.RemainingDeductions)
	assert.Equal(t, "700", allocation.NetPaymentAmount)
	assert.Equal(t, "300", allocation.TotalOutstandingAdvances)
}

func TestPreviewAllocation_DoesNotPersist(t *testing.T) {
	server := setupTestServer(t)
	seedGrower(t, server.URL, "G-1042", "1000.00", "300.00")

	resp := postJSON(t, server.URL+"/api/growers/G-1042/allocation/preview", AllocationRequest{
		RequestedDeduction: "200.00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payment := decodeBody[PaymentSelectionDTO](t, getJSON(t, server.URL+"/api/growers/G-1042/payment"))
	assert.Equal(t, "0", payment.DeductFromThisTransaction, "preview must not write back")
}

func TestCommitAllocation_WritesBack(t *testing.T) {
	server := setupTestServer(t)
	seedGrower(t, server.URL, "G-1042", "1000.00", "300.00")

	resp := postJSON(t, server.URL+"/api/growers/G-1042/allocation/commit", AllocationRequest{
		RequestedDeduction: "200.00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	committed := decodeBody[PaymentSelectionDTO](t, resp)
	assert.Equal(t, "200", committed.DeductFromThisTransaction)
	assert.Equal(t, "100", committed.RemainingDeductions)
	assert.Equal(t, "800", committed.NetPayment)

	// Survives a reload from the store.
	payment := decodeBody[PaymentSelectionDTO](t, getJSON(t, server.URL+"/api/growers/G-1042/payment"))
	assert.Equal(t, "200", payment.DeductFromThisTransaction)
	assert.Equal(t, "800", payment.NetPayment)
}

func TestAllocation_UnknownGrower(t *testing.T) {
	server := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/growers/G-9999/allocation/preview", AllocationRequest{
		RequestedDeduction: "100.00",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAllocation_MalformedAmountRejected(t *testing.T) {
	server := setupTestServer(t)
	seedGrower(t, server.URL, "G-1042", "1000.00")

	resp := postJSON(t, server.URL+"/api/growers/G-1042/allocation/preview", AllocationRequest{
		RequestedDeduction: "not-a-number",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// RECONCILIATION TESTS
// =============================================================================

func TestReconciliation_FullWorkflow(t *testing.T) {
	server := setupTestServer(t)
	seedDistribution(t, server.URL, "d1",
		map[string]string{"CHQ-001": "250.00", "CHQ-002": "250.00"},
		map[string]string{"CHQ-001": "250.00", "CHQ-002": "245.25"},
	)

	// Load the working set.
	resp := postJSON(t, server.URL+"/api/reconciliation/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	working := decodeBody[[]DistributionDTO](t, resp)
	require.Len(t, working, 1)
	assert.Equal(t, "finalized", working[0].Status)

	// Reconcile it.
	resp = postJSON(t, server.URL+"/api/reconciliation/distributions/d1/reconcile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decodeBody[ReportDTO](t, resp)
	assert.False(t, report.Clean)
	assert.Len(t, report.Matched, 1)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, "4.75", report.Discrepancies[0].Delta)

	// The current report is queryable.
	resp = getJSON(t, server.URL+"/api/reconciliation/report")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Export is a pass-through (no-op exporter in tests).
	resp = postJSON(t, server.URL+"/api/reconciliation/report/export", ExportRequest{Format: "csv"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// Complete it; the working set empties.
	resp = postJSON(t, server.URL+"/api/reconciliation/distributions/d1/complete", CompleteRequest{ActorID: "clerk-7"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	working = decodeBody[[]DistributionDTO](t, resp)
	assert.Empty(t, working)
}

func TestReconciliation_UnknownDistributionIs404(t *testing.T) {
	server := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/reconciliation/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, server.URL+"/api/reconciliation/distributions/ghost/reconcile", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReconciliation_NoReportYetIs404(t *testing.T) {
	server := setupTestServer(t)

	resp := getJSON(t, server.URL+"/api/reconciliation/report")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReconciliation_DuplicateLineIsConflict(t *testing.T) {
	server := setupTestServer(t)
	seedDistribution(t, server.URL, "d1", map[string]string{"CHQ-001": "100.00"}, nil)

	resp := postJSON(t, server.URL+"/api/distributions/d1/lines", LineRequest{
		GrowerNumber: "G-1042", Reference: "CHQ-001", Amount: "100.00",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestScenario_AdvanceDeductionSeedsGrower(t *testing.T) {
	server := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/scenarios/load", LoadScenarioRequest{ScenarioID: "advance-deduction"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payment := decodeBody[PaymentSelectionDTO](t, getJSON(t, server.URL+"/api/growers/G-1042/payment"))
	assert.Equal(t, "300", payment.TotalOutstandingAdvances)
}

func TestScenario_UnknownRejected(t *testing.T) {
	server := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	server := setupTestServer(t)

	resp := getJSON(t, server.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
