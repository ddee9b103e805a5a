/*
handlers.go - HTTP API handlers for the payment engine

PURPOSE:
  Exposes the allocation and reconciliation workflows via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Growers:
    POST   /api/growers                         Register a pending payment
    GET    /api/growers/{number}/payment        Pending payment + net amount
    GET    /api/growers/{number}/advances       Outstanding advances
    POST   /api/growers/{number}/advances       Register an advance cheque
    POST   /api/growers/{number}/allocation/preview  Compute allocation (no write)
    POST   /api/growers/{number}/allocation/commit   Compute and write back

  Reconciliation:
    POST   /api/reconciliation/load             Load the working set
    GET    /api/reconciliation/distributions    Working-set contents
    POST   /api/reconciliation/distributions/{id}/reconcile
    POST   /api/reconciliation/distributions/{id}/complete
    GET    /api/reconciliation/report           Current report
    POST   /api/reconciliation/report/export    Export current report

  Distributions (upstream feed):
    POST   /api/distributions                   Register a finalized distribution
    POST   /api/distributions/{id}/lines        Record a disbursement line
    POST   /api/distributions/{id}/source-entries  Record a source entry

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown grower/distribution, nothing reconciled yet
  - 409: Rejected by the reconciliation computation
  - 500: Store failures

SECURITY NOTE:
  Currently NO authentication or authorization. The actor identity on
  completion is taken from the request body as-is.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestpoint/payment-engine/grower"
	"github.com/harvestpoint/payment-engine/reconcile"
	"github.com/harvestpoint/payment-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Coordinator *reconcile.Coordinator
}

// NewHandler creates a new handler with the given store and coordinator.
func NewHandler(store *sqlite.Store, coordinator *reconcile.Coordinator) *Handler {
	return &Handler{
		Store:       store,
		Coordinator: coordinator,
	}
}

// =============================================================================
// GROWER HANDLERS
// =============================================================================

// CreateSelection registers a grower's pending consolidated payment.
func (h *Handler) CreateSelection(w http.ResponseWriter, r *http.Request) {
	var req CreateSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.GrowerNumber == "" {
		writeError(w, http.StatusBadRequest, "grower_number is required", nil)
		return
	}

	consolidated, err := decimal.NewFromString(req.ConsolidatedAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid consolidated_amount", err)
		return
	}

	sel := &grower.PaymentSelection{
		GrowerNumber:       req.GrowerNumber,
		GrowerName:         req.GrowerName,
		ConsolidatedAmount: consolidated,
	}
	if err := h.Store.SavePaymentSelection(r.Context(), sel); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save payment selection", err)
		return
	}

	writeJSON(w, http.StatusCreated, toSelectionDTO(sel))
}

// GetPayment returns a grower's pending payment with the recomputed net
// amount and the total outstanding advances.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	growerNumber := chi.URLParam(r, "number")

	sel, err := h.Store.GetPaymentSelection(r.Context(), growerNumber)
	if errors.Is(err, grower.ErrGrowerNotFound) {
		writeError(w, http.StatusNotFound, "Grower not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load payment selection", err)
		return
	}

	advances, err := h.Store.AdvancesByGrower(r.Context(), growerNumber)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load advances", err)
		return
	}

	dto := toSelectionDTO(sel)
	dto.TotalOutstandingAdvances = grower.TotalOutstanding(advances).String()
	writeJSON(w, http.StatusOK, dto)
}

// ListAdvances returns a grower's outstanding advance cheques.
func (h *Handler) ListAdvances(w http.ResponseWriter, r *http.Request) {
	growerNumber := chi.URLParam(r, "number")

	advances, err := h.Store.AdvancesByGrower(r.Context(), growerNumber)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load advances", err)
		return
	}

	dtos := make([]AdvanceChequeDTO, len(advances))
	for i, a := range advances {
		dtos[i] = toAdvanceDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAdvance registers an outstanding advance cheque for a grower.
func (h *Handler) CreateAdvance(w http.ResponseWriter, r *http.Request) {
	growerNumber := chi.URLParam(r, "number")

	var req CreateAdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.CurrentAdvanceAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid current_advance_amount", err)
		return
	}

	issuedAt := time.Now().UTC()
	if req.IssuedAt != "" {
		issuedAt, err = time.Parse(time.RFC3339, req.IssuedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid issued_at format (use RFC3339)", err)
			return
		}
	}

	cheque := grower.AdvanceCheque{
		ChequeNumber:         req.ChequeNumber,
		GrowerNumber:         growerNumber,
		IssuedAt:             issuedAt,
		CurrentAdvanceAmount: amount,
	}
	if cheque.ChequeNumber == "" {
		cheque.ChequeNumber = uuid.NewString()
	}

	if err := h.Store.SaveAdvanceCheque(r.Context(), cheque); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save advance cheque", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAdvanceDTO(cheque))
}

// PreviewAllocation computes the allocation triple for a requested
// deduction without writing anything back.
func (h *Handler) PreviewAllocation(w http.ResponseWriter, r *http.Request) {
	allocator, requested, ok := h.allocationSession(w, r)
	if !ok {
		return
	}

	allocation := allocator.SetRequestedDeduction(requested)
	writeJSON(w, http.StatusOK, AllocationDTO{
		DeductFromThisTransaction: allocation.DeductFromThisTransaction.String(),
		RemainingDeductions:       allocation.RemainingDeductions.String(),
		NetPaymentAmount:          allocation.NetPaymentAmount.String(),
		TotalOutstandingAdvances:  allocator.TotalOutstandingAdvances().String(),
	})
}

// CommitAllocation computes the allocation for a requested deduction,
// commits it to the selection, and persists the result.
func (h *Handler) CommitAllocation(w http.ResponseWriter, r *http.Request) {
	allocator, requested, ok := h.allocationSession(w, r)
	if !ok {
		return
	}

	allocator.SetRequestedDeduction(requested)
	if err := allocator.Commit(); err != nil {
		writeError(w, http.StatusBadRequest, "Allocation rejected", err)
		return
	}

	sel := allocator.Selection()
	if err := h.Store.SavePaymentSelection(r.Context(), sel); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save payment selection", err)
		return
	}

	writeJSON(w, http.StatusOK, toSelectionDTO(sel))
}

// allocationSession loads the grower's selection and advances and parses
// the requested deduction. On failure the error response is already
// written.
func (h *Handler) allocationSession(w http.ResponseWriter, r *http.Request) (*grower.Allocator, decimal.Decimal, bool) {
	growerNumber := chi.URLParam(r, "number")

	var req AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, decimal.Zero, false
	}
	requested, err := decimal.NewFromString(req.RequestedDeduction)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid requested_deduction", err)
		return nil, decimal.Zero, false
	}

	sel, err := h.Store.GetPaymentSelection(r.Context(), growerNumber)
	if errors.Is(err, grower.ErrGrowerNotFound) {
		writeError(w, http.StatusNotFound, "Grower not found", nil)
		return nil, decimal.Zero, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load payment selection", err)
		return nil, decimal.Zero, false
	}

	advances, err := h.Store.AdvancesByGrower(r.Context(), growerNumber)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load advances", err)
		return nil, decimal.Zero, false
	}

	return grower.NewAllocator(sel, advances), requested, true
}

// =============================================================================
// DISTRIBUTION FEED HANDLERS
// =============================================================================

// CreateDistribution registers a finalized payment distribution.
func (h *Handler) CreateDistribution(w http.ResponseWriter, r *http.Request) {
	var req CreateDistributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	finalizedAt := time.Now().UTC()
	if req.FinalizedAt != "" {
		finalizedAt, err = time.Parse(time.RFC3339, req.FinalizedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid finalized_at format (use RFC3339)", err)
			return
		}
	}

	dist := reconcile.PaymentDistribution{
		ID:           req.ID,
		GrowerNumber: req.GrowerNumber,
		Amount:       amount,
		Status:       reconcile.StatusFinalized,
		FinalizedAt:  finalizedAt,
	}
	if dist.ID == "" {
		dist.ID = uuid.NewString()
	}

	if err := h.Store.SaveDistribution(r.Context(), dist); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save distribution", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDistributionDTO(dist))
}

// AddLine records one disbursement line on a distribution.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	h.addLineOrEntry(w, r, "line")
}

// AddSourceEntry records one authoritative source entry on a distribution.
func (h *Handler) AddSourceEntry(w http.ResponseWriter, r *http.Request) {
	h.addLineOrEntry(w, r, "source entry")
}

func (h *Handler) addLineOrEntry(w http.ResponseWriter, r *http.Request, kind string) {
	distributionID := chi.URLParam(r, "id")

	var req LineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	if req.Reference == "" {
		writeError(w, http.StatusBadRequest, "reference is required", nil)
		return
	}

	dist, err := h.Store.GetDistribution(r.Context(), distributionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load distribution", err)
		return
	}
	if dist == nil {
		writeError(w, http.StatusNotFound, "Distribution not found", nil)
		return
	}

	if kind == "line" {
		err = h.Store.AddDistributionLine(r.Context(), reconcile.PaymentLine{
			DistributionID: distributionID,
			GrowerNumber:   req.GrowerNumber,
			Reference:      req.Reference,
			Amount:         amount,
		})
	} else {
		err = h.Store.AddSourceEntry(r.Context(), reconcile.SourceEntry{
			DistributionID: distributionID,
			GrowerNumber:   req.GrowerNumber,
			Reference:      req.Reference,
			Amount:         amount,
		})
	}
	if err != nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("Failed to add %s", kind), err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// LoadWorkingSet refreshes the coordinator's working set.
func (h *Handler) LoadWorkingSet(w http.ResponseWriter, r *http.Request) {
	if err := h.Coordinator.LoadWorkingSet(r.Context()); err != nil {
		writeReconcileError(w, "Failed to load working set", err)
		return
	}
	h.ListDistributions(w, r)
}

// ListDistributions returns the current working set.
func (h *Handler) ListDistributions(w http.ResponseWriter, r *http.Request) {
	working := h.Coordinator.Distributions()
	dtos := make([]DistributionDTO, len(working))
	for i, d := range working {
		dtos[i] = toDistributionDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReconcileDistribution reconciles one working-set distribution and
// returns the produced report.
func (h *Handler) ReconcileDistribution(w http.ResponseWriter, r *http.Request) {
	report, err := h.Coordinator.ReconcileOne(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeReconcileError(w, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// CompleteDistribution marks one working-set distribution completed.
func (h *Handler) CompleteDistribution(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	if err := h.Coordinator.CompleteOne(r.Context(), chi.URLParam(r, "id"), req.ActorID); err != nil {
		writeReconcileError(w, "Completion failed", err)
		return
	}
	h.ListDistributions(w, r)
}

// GetCurrentReport returns the single current report.
func (h *Handler) GetCurrentReport(w http.ResponseWriter, r *http.Request) {
	report := h.Coordinator.CurrentReport()
	if report == nil {
		writeError(w, http.StatusNotFound, "Nothing reconciled yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// ExportReport hands the current report to the exporter.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	if err := h.Coordinator.ExportReport(r.Context(), req.Format); err != nil {
		writeReconcileError(w, "Export failed", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeReconcileError maps workflow errors onto HTTP statuses.
func writeReconcileError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, reconcile.ErrNotInWorkingSet),
		errors.Is(err, reconcile.ErrNoCurrentReport):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, reconcile.ErrReconciliation):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
