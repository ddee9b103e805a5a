/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All amounts cross the wire as decimal strings ("700.00"), never as
  JSON numbers. Parsing happens in handlers; DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Router setup
*/
package api

import (
	"time"

	"github.com/harvestpoint/payment-engine/grower"
	"github.com/harvestpoint/payment-engine/reconcile"
)

// =============================================================================
// GROWER / ALLOCATION TYPES
// =============================================================================

// PaymentSelectionDTO represents a grower's pending payment in responses.
type PaymentSelectionDTO struct {
	GrowerNumber              string `json:"grower_number"`
	GrowerName                string `json:"grower_name"`
	ConsolidatedAmount        string `json:"consolidated_amount"`
	DeductFromThisTransaction string `json:"deduct_from_this_transaction"`
	RemainingDeductions       string `json:"remaining_deductions"`
	NetPayment                string `json:"net_payment"`
	TotalOutstandingAdvances  string `json:"total_outstanding_advances,omitempty"`
}

// CreateSelectionRequest is the request to register a pending payment.
type CreateSelectionRequest struct {
	GrowerNumber       string `json:"grower_number"`
	GrowerName         string `json:"grower_name"`
	ConsolidatedAmount string `json:"consolidated_amount"`
}

// AdvanceChequeDTO represents one outstanding advance in responses.
type AdvanceChequeDTO struct {
	ChequeNumber         string `json:"cheque_number"`
	GrowerNumber         string `json:"grower_number"`
	IssuedAt             string `json:"issued_at"`
	CurrentAdvanceAmount string `json:"current_advance_amount"`
}

// CreateAdvanceRequest is the request to register an advance cheque.
type CreateAdvanceRequest struct {
	ChequeNumber         string `json:"cheque_number"`
	IssuedAt             string `json:"issued_at"`
	CurrentAdvanceAmount string `json:"current_advance_amount"`
}

// AllocationRequest carries the requested deduction for preview or commit.
type AllocationRequest struct {
	RequestedDeduction string `json:"requested_deduction"`
}

// AllocationDTO is the computed allocation triple.
type AllocationDTO struct {
	DeductFromThisTransaction string `json:"deduct_from_this_transaction"`
	RemainingDeductions       string `json:"remaining_deductions"`
	NetPaymentAmount          string `json:"net_payment_amount"`
	TotalOutstandingAdvances  string `json:"total_outstanding_advances"`
}

// =============================================================================
// RECONCILIATION TYPES
// =============================================================================

// DistributionDTO represents a working-set distribution in responses.
type DistributionDTO struct {
	ID           string  `json:"id"`
	GrowerNumber string  `json:"grower_number"`
	Amount       string  `json:"amount"`
	Status       string  `json:"status"`
	FinalizedAt  string  `json:"finalized_at"`
	CompletedAt  *string `json:"completed_at,omitempty"`
	CompletedBy  string  `json:"completed_by,omitempty"`
}

// CreateDistributionRequest is the request to register a finalized
// distribution.
type CreateDistributionRequest struct {
	ID           string `json:"id"`
	GrowerNumber string `json:"grower_number"`
	Amount       string `json:"amount"`
	FinalizedAt  string `json:"finalized_at"`
}

// LineRequest registers a recorded disbursement line or source entry.
type LineRequest struct {
	GrowerNumber string `json:"grower_number"`
	Reference    string `json:"reference"`
	Amount       string `json:"amount"`
}

// CompleteRequest carries the acting identity for a completion.
type CompleteRequest struct {
	ActorID string `json:"actor_id"`
}

// ExportRequest carries the requested export format.
type ExportRequest struct {
	Format string `json:"format"`
}

// ReportLineDTO pairs a recorded amount against its source record.
type ReportLineDTO struct {
	GrowerNumber string `json:"grower_number"`
	Reference    string `json:"reference"`
	Recorded     string `json:"recorded"`
	Source       string `json:"source"`
	Delta        string `json:"delta"`
}

// ReportDTO represents a reconciliation report in responses.
type ReportDTO struct {
	ID               string          `json:"id"`
	DistributionID   string          `json:"distribution_id"`
	Clean            bool            `json:"clean"`
	Matched          []ReportLineDTO `json:"matched"`
	Discrepancies    []ReportLineDTO `json:"discrepancies"`
	RecordedTotal    string          `json:"recorded_total"`
	SourceTotal      string          `json:"source_total"`
	TotalDiscrepancy string          `json:"total_discrepancy"`
	GeneratedAt      string          `json:"generated_at"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSelectionDTO(sel *grower.PaymentSelection) PaymentSelectionDTO {
	return PaymentSelectionDTO{
		GrowerNumber:              sel.GrowerNumber,
		GrowerName:                sel.GrowerName,
		ConsolidatedAmount:        sel.ConsolidatedAmount.String(),
		DeductFromThisTransaction: sel.DeductFromThisTransaction.String(),
		RemainingDeductions:       sel.RemainingDeductions.String(),
		NetPayment:                sel.NetPayment().String(),
	}
}

func toAdvanceDTO(a grower.AdvanceCheque) AdvanceChequeDTO {
	return AdvanceChequeDTO{
		ChequeNumber:         a.ChequeNumber,
		GrowerNumber:         a.GrowerNumber,
		IssuedAt:             a.IssuedAt.Format(time.RFC3339),
		CurrentAdvanceAmount: a.CurrentAdvanceAmount.String(),
	}
}

func toDistributionDTO(d reconcile.PaymentDistribution) DistributionDTO {
	dto := DistributionDTO{
		ID:           d.ID,
		GrowerNumber: d.GrowerNumber,
		Amount:       d.Amount.String(),
		Status:       string(d.Status),
		FinalizedAt:  d.FinalizedAt.Format(time.RFC3339),
		CompletedBy:  d.CompletedBy,
	}
	if d.CompletedAt != nil {
		s := d.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &s
	}
	return dto
}

func toReportDTO(r *reconcile.Report) ReportDTO {
	dto := ReportDTO{
		ID:               r.ID,
		DistributionID:   r.DistributionID,
		Clean:            r.Clean(),
		Matched:          make([]ReportLineDTO, len(r.Matched)),
		Discrepancies:    make([]ReportLineDTO, len(r.Discrepancies)),
		RecordedTotal:    r.RecordedTotal.String(),
		SourceTotal:      r.SourceTotal.String(),
		TotalDiscrepancy: r.TotalDiscrepancy.String(),
		GeneratedAt:      r.GeneratedAt.Format(time.RFC3339),
	}
	for i, l := range r.Matched {
		dto.Matched[i] = toReportLineDTO(l)
	}
	for i, l := range r.Discrepancies {
		dto.Discrepancies[i] = toReportLineDTO(l)
	}
	return dto
}

func toReportLineDTO(l reconcile.ReportLine) ReportLineDTO {
	return ReportLineDTO{
		GrowerNumber: l.GrowerNumber,
		Reference:    l.Reference,
		Recorded:     l.Recorded.String(),
		Source:       l.Source.String(),
		Delta:        l.Delta.String(),
	}
}
