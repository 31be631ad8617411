package postgres

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	billingDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/billing"
	earningDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/earning"
)

// BillingRepository persists the idempotency record and the earning lines it
// guards in one transaction. The insert-if-absent on the composite unique key
// is the ground truth for exactly-once effect application; everything
// downstream of a conflicting insert is skipped.
type BillingRepository struct {
	db *gorm.DB
}

func NewBillingRepository(db *gorm.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// RecordAndCreateEarnings inserts the processed-payment record and, only when
// the record is new, the earning rows. Returns isNew=false when the
// (subscription_ref, external_payment_id) key was already recorded, which is
// a no-op signal, not an error.
func (r *BillingRepository) RecordAndCreateEarnings(record *billingDatamodel.ProcessedPayment, rows []*earningDatamodel.Earning) (bool, error) {
	isNew := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// duplicate delivery; leave the ledger untouched
			return nil
		}
		isNew = true

		if len(rows) > 0 {
			if err := tx.Create(rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return isNew, err
}

// HasProcessed reports whether a billing fact was already recorded, without
// side effects.
func (r *BillingRepository) HasProcessed(subscriptionRef, externalPaymentID string) (bool, error) {
	var count int64
	err := r.db.Model(&billingDatamodel.ProcessedPayment{}).
		Where("subscription_ref = ? AND external_payment_id = ?", subscriptionRef, externalPaymentID).
		Count(&count).Error
	return count > 0, err
}
