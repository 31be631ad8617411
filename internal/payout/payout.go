package payout

import (
	"time"

	payoutDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/payout"
)

// Payout statuses. pending → processing → in_transit → paid is the happy
// path; failed, cancelled and returned are terminal and release the linked
// earnings back to the eligible pool.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusInTransit  = "in_transit"
	StatusPaid       = "paid"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusReturned   = "returned"
)

// AllowedPriorStates guards each transition so dispatch outcomes arriving
// out of order or duplicated have exactly one net effect. "failed" after
// "processing" with no intervening "paid" is legal; anything after a
// terminal state matches zero rows and is a no-op.
func AllowedPriorStates(newStatus string) []string {
	switch newStatus {
	case StatusProcessing:
		return []string{StatusPending}
	case StatusInTransit:
		return []string{StatusPending, StatusProcessing}
	case StatusPaid, StatusFailed, StatusCancelled, StatusReturned:
		return []string{StatusPending, StatusProcessing, StatusInTransit}
	default:
		return nil
	}
}

// IsReleaseStatus reports whether the terminal status returns linked
// earnings to the pool.
func IsReleaseStatus(status string) bool {
	return status == StatusFailed || status == StatusCancelled || status == StatusReturned
}

func IsTerminalStatus(status string) bool {
	return status == StatusPaid || IsReleaseStatus(status)
}

func IsKnownStatus(status string) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusInTransit, StatusPaid, StatusFailed, StatusCancelled, StatusReturned:
		return true
	}
	return false
}

type Payout struct {
	ID                    int64  `json:"id"`
	BeneficiaryID         int64  `json:"beneficiary_id"`
	DestinationAccountRef string `json:"destination_account_ref"`
	Method                string `json:"method"`

	Amount    int64  `json:"amount"`
	FeeFlat   int64  `json:"fee_flat"`
	FeeRated  int64  `json:"fee_rated"`
	FeeTotal  int64  `json:"fee_total"`
	NetAmount int64  `json:"net_amount"`
	Currency  string `json:"currency"`

	Status        string `json:"status"`
	EarningsCount int    `json:"earnings_count"`

	ProviderRef *string `json:"provider_ref,omitempty"`

	RequestedAt time.Time  `json:"requested_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	FailureCode    *string `json:"failure_code,omitempty"`
	FailureMessage *string `json:"failure_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ToDataModel(p *Payout) *payoutDatamodel.Payout {
	return &payoutDatamodel.Payout{
		ID:                    p.ID,
		BeneficiaryID:         p.BeneficiaryID,
		DestinationAccountRef: p.DestinationAccountRef,
		Method:                p.Method,
		Amount:                p.Amount,
		FeeFlat:               p.FeeFlat,
		FeeRated:              p.FeeRated,
		FeeTotal:              p.FeeTotal,
		NetAmount:             p.NetAmount,
		Currency:              p.Currency,
		Status:                p.Status,
		EarningsCount:         p.EarningsCount,
		ProviderRef:           p.ProviderRef,
		RequestedAt:           p.RequestedAt,
		ProcessedAt:           p.ProcessedAt,
		PaidAt:                p.PaidAt,
		FailedAt:              p.FailedAt,
		FailureCode:           p.FailureCode,
		FailureMessage:        p.FailureMessage,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func FromDataModel(p *payoutDatamodel.Payout) *Payout {
	return &Payout{
		ID:                    p.ID,
		BeneficiaryID:         p.BeneficiaryID,
		DestinationAccountRef: p.DestinationAccountRef,
		Method:                p.Method,
		Amount:                p.Amount,
		FeeFlat:               p.FeeFlat,
		FeeRated:              p.FeeRated,
		FeeTotal:              p.FeeTotal,
		NetAmount:             p.NetAmount,
		Currency:              p.Currency,
		Status:                p.Status,
		EarningsCount:         p.EarningsCount,
		ProviderRef:           p.ProviderRef,
		RequestedAt:           p.RequestedAt,
		ProcessedAt:           p.ProcessedAt,
		PaidAt:                p.PaidAt,
		FailedAt:              p.FailedAt,
		FailureCode:           p.FailureCode,
		FailureMessage:        p.FailureMessage,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func FromDataModelSlice(payouts []*payoutDatamodel.Payout) []*Payout {
	result := make([]*Payout, len(payouts))
	for i, p := range payouts {
		result[i] = FromDataModel(p)
	}
	return result
}
