package earning

import (
	"time"

	earningDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/earning"
)

// Earning statuses. Transitions only move forward: pending → approved → paid,
// with disputed/cancelled as absorbing terminals reachable from pending or
// approved but never from paid.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusPaid      = "paid"
	StatusDisputed  = "disputed"
	StatusCancelled = "cancelled"
)

type Earning struct {
	ID                 int64  `json:"id"`
	BeneficiaryID      int64  `json:"beneficiary_id"`
	CounterpartyUserID int64  `json:"counterparty_user_id"`
	BillingSubjectRef  string `json:"billing_subject_ref"`
	Source             string `json:"source"`
	TierLevel          int    `json:"tier_level"`

	GrossAmount       int64  `json:"gross_amount"`
	CommissionRateBps int64  `json:"commission_rate_bps"`
	CommissionAmount  int64  `json:"commission_amount"`
	Currency          string `json:"currency"`

	Status   string `json:"status"`
	IsGifted bool   `json:"is_gifted"`

	PaymentCompletedAt  *time.Time `json:"payment_completed_at,omitempty"`
	HoldPolicy          string     `json:"hold_policy"`
	HoldPeriodDays      int        `json:"hold_period_days"`
	EligibleForPayoutAt *time.Time `json:"eligible_for_payout_at,omitempty"`

	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	ApprovedBy    *string    `json:"approved_by,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	DisputedAt    *time.Time `json:"disputed_at,omitempty"`
	DisputedBy    *string    `json:"disputed_by,omitempty"`
	DisputeReason *string    `json:"dispute_reason,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy   *string    `json:"cancelled_by,omitempty"`
	CancelReason  *string    `json:"cancel_reason,omitempty"`

	PayoutID        *int64 `json:"payout_id,omitempty"`
	OriginEarningID *int64 `json:"origin_earning_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Earning) CanBeApproved() bool {
	return e.Status == StatusPending
}

func (e *Earning) CanBeDisputed() bool {
	return e.Status == StatusPending || e.Status == StatusApproved
}

func (e *Earning) CanBeCancelled() bool {
	return e.Status == StatusPending || e.Status == StatusApproved
}

// IsHoldElapsed reports whether the hold window has passed at the given time.
func (e *Earning) IsHoldElapsed(now time.Time) bool {
	return e.EligibleForPayoutAt != nil && !e.EligibleForPayoutAt.After(now)
}

func ToDataModel(e *Earning) *earningDatamodel.Earning {
	return &earningDatamodel.Earning{
		ID:                  e.ID,
		BeneficiaryID:       e.BeneficiaryID,
		CounterpartyUserID:  e.CounterpartyUserID,
		BillingSubjectRef:   e.BillingSubjectRef,
		Source:              e.Source,
		TierLevel:           e.TierLevel,
		GrossAmount:         e.GrossAmount,
		CommissionRateBps:   e.CommissionRateBps,
		CommissionAmount:    e.CommissionAmount,
		Currency:            e.Currency,
		Status:              e.Status,
		IsGifted:            e.IsGifted,
		PaymentCompletedAt:  e.PaymentCompletedAt,
		HoldPolicy:          e.HoldPolicy,
		HoldPeriodDays:      e.HoldPeriodDays,
		EligibleForPayoutAt: e.EligibleForPayoutAt,
		ApprovedAt:          e.ApprovedAt,
		ApprovedBy:          e.ApprovedBy,
		PaidAt:              e.PaidAt,
		DisputedAt:          e.DisputedAt,
		DisputedBy:          e.DisputedBy,
		DisputeReason:       e.DisputeReason,
		CancelledAt:         e.CancelledAt,
		CancelledBy:         e.CancelledBy,
		CancelReason:        e.CancelReason,
		PayoutID:            e.PayoutID,
		OriginEarningID:     e.OriginEarningID,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func FromDataModel(e *earningDatamodel.Earning) *Earning {
	return &Earning{
		ID:                  e.ID,
		BeneficiaryID:       e.BeneficiaryID,
		CounterpartyUserID:  e.CounterpartyUserID,
		BillingSubjectRef:   e.BillingSubjectRef,
		Source:              e.Source,
		TierLevel:           e.TierLevel,
		GrossAmount:         e.GrossAmount,
		CommissionRateBps:   e.CommissionRateBps,
		CommissionAmount:    e.CommissionAmount,
		Currency:            e.Currency,
		Status:              e.Status,
		IsGifted:            e.IsGifted,
		PaymentCompletedAt:  e.PaymentCompletedAt,
		HoldPolicy:          e.HoldPolicy,
		HoldPeriodDays:      e.HoldPeriodDays,
		EligibleForPayoutAt: e.EligibleForPayoutAt,
		ApprovedAt:          e.ApprovedAt,
		ApprovedBy:          e.ApprovedBy,
		PaidAt:              e.PaidAt,
		DisputedAt:          e.DisputedAt,
		DisputedBy:          e.DisputedBy,
		DisputeReason:       e.DisputeReason,
		CancelledAt:         e.CancelledAt,
		CancelledBy:         e.CancelledBy,
		CancelReason:        e.CancelReason,
		PayoutID:            e.PayoutID,
		OriginEarningID:     e.OriginEarningID,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func FromDataModelSlice(earnings []*earningDatamodel.Earning) []*Earning {
	result := make([]*Earning, len(earnings))
	for i, e := range earnings {
		result[i] = FromDataModel(e)
	}
	return result
}
