package billing

import "time"

// ProcessedPayment is the durable idempotency record for inbound billing
// facts. The composite unique index on (subscription_ref, external_payment_id)
// is what makes intake safe across concurrent engine instances: a second
// insert with the same key conflicts and is treated as a no-op signal,
// never an error.
type ProcessedPayment struct {
	ID                int64     `gorm:"primaryKey"`
	SubscriptionRef   string    `gorm:"column:subscription_ref;not null;index:idx_processed_payment_key,unique"`
	ExternalPaymentID string    `gorm:"column:external_payment_id;not null;index:idx_processed_payment_key,unique"`
	ReceivedAt        time.Time `gorm:"column:received_at;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ProcessedPayment) TableName() string {
	return "processed_payments"
}
