package earning

import "time"

// Earning is one commission ledger line. Rows are never deleted; cancellation
// and dispute are statuses so the audit trail stays intact.
type Earning struct {
	ID                 int64  `gorm:"primaryKey"`
	BeneficiaryID      int64  `gorm:"column:beneficiary_id;not null;index"`
	CounterpartyUserID int64  `gorm:"column:counterparty_user_id;not null"`
	BillingSubjectRef  string `gorm:"column:billing_subject_ref;not null;index"`
	Source             string `gorm:"column:source;not null"`
	TierLevel          int    `gorm:"column:tier_level;not null;default:1"`

	GrossAmount       int64  `gorm:"column:gross_amount;not null"`
	CommissionRateBps int64  `gorm:"column:commission_rate_bps;not null"`
	CommissionAmount  int64  `gorm:"column:commission_amount;not null"`
	Currency          string `gorm:"column:currency;not null"`

	Status   string `gorm:"column:status;not null;default:pending;index"`
	IsGifted bool   `gorm:"column:is_gifted;not null;default:false"`

	// PaymentCompletedAt is set once at creation and immutable thereafter;
	// EligibleForPayoutAt is derived from it at creation and never recomputed.
	PaymentCompletedAt  *time.Time `gorm:"column:payment_completed_at"`
	HoldPolicy          string     `gorm:"column:hold_policy;not null;default:timed"`
	HoldPeriodDays      int        `gorm:"column:hold_period_days;not null;default:30"`
	EligibleForPayoutAt *time.Time `gorm:"column:eligible_for_payout_at;index"`

	ApprovedAt    *time.Time `gorm:"column:approved_at"`
	ApprovedBy    *string    `gorm:"column:approved_by"`
	PaidAt        *time.Time `gorm:"column:paid_at"`
	DisputedAt    *time.Time `gorm:"column:disputed_at"`
	DisputedBy    *string    `gorm:"column:disputed_by"`
	DisputeReason *string    `gorm:"column:dispute_reason"`
	CancelledAt   *time.Time `gorm:"column:cancelled_at"`
	CancelledBy   *string    `gorm:"column:cancelled_by"`
	CancelReason  *string    `gorm:"column:cancel_reason"`

	PayoutID        *int64 `gorm:"column:payout_id;index"`
	OriginEarningID *int64 `gorm:"column:origin_earning_id"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Earning) TableName() string {
	return "earnings"
}
