package payout

import "time"

// Payout is a batch of approved earnings submitted for payment to one
// beneficiary in one currency. Amount always equals the sum of the linked
// earnings' commission amounts.
type Payout struct {
	ID                    int64  `gorm:"primaryKey"`
	BeneficiaryID         int64  `gorm:"column:beneficiary_id;not null;index"`
	DestinationAccountRef string `gorm:"column:destination_account_ref;not null"`
	Method                string `gorm:"column:method;not null"`

	Amount    int64  `gorm:"column:amount;not null"`
	FeeFlat   int64  `gorm:"column:fee_flat;not null;default:0"`
	FeeRated  int64  `gorm:"column:fee_rated;not null;default:0"`
	FeeTotal  int64  `gorm:"column:fee_total;not null;default:0"`
	NetAmount int64  `gorm:"column:net_amount;not null"`
	Currency  string `gorm:"column:currency;not null"`

	Status        string `gorm:"column:status;not null;default:pending;index"`
	EarningsCount int    `gorm:"column:earnings_count;not null;default:0"`

	ProviderRef *string `gorm:"column:provider_ref;index"`

	RequestedAt time.Time  `gorm:"column:requested_at;not null"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
	PaidAt      *time.Time `gorm:"column:paid_at"`
	FailedAt    *time.Time `gorm:"column:failed_at"`

	FailureCode    *string `gorm:"column:failure_code"`
	FailureMessage *string `gorm:"column:failure_message"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payout) TableName() string {
	return "payouts"
}
