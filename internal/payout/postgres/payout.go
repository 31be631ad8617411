package postgres

import (
	"time"

	"gorm.io/gorm"

	errors "github.com/referralkit/commission-ledger/internal"
	earningDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/earning"
	payoutDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/payout"
	"github.com/referralkit/commission-ledger/internal/earning"
	"github.com/referralkit/commission-ledger/internal/payout"
)

// PayoutRepository implements the payout.Repository interface using GORM.
type PayoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) GetByID(id int64) (*payout.Payout, error) {
	var p payoutDatamodel.Payout
	err := r.db.Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return payout.FromDataModel(&p), nil
}

func (r *PayoutRepository) ListByBeneficiary(beneficiaryID int64, limit, offset int) ([]*payout.Payout, error) {
	var rows []*payoutDatamodel.Payout
	err := r.db.Where("beneficiary_id = ?", beneficiaryID).
		Order("requested_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return payout.FromDataModelSlice(rows), nil
}

func (r *PayoutRepository) EligibleEarnings(beneficiaryID int64, currency string, now time.Time) ([]*earning.Earning, error) {
	var rows []*earningDatamodel.Earning
	err := r.db.Where(
		"beneficiary_id = ? AND currency = ? AND status = ? AND payout_id IS NULL AND is_gifted = ? AND eligible_for_payout_at <= ?",
		beneficiaryID, currency, earning.StatusApproved, false, now).
		Order("payment_completed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return earning.FromDataModelSlice(rows), nil
}

// ListStalePending returns pending payouts requested at or before the cutoff,
// oldest first. The redispatch worker uses this to resubmit payouts whose
// enqueue never reached the rails.
func (r *PayoutRepository) ListStalePending(cutoff time.Time, limit int) ([]*payout.Payout, error) {
	var rows []*payoutDatamodel.Payout
	err := r.db.Where("status = ? AND requested_at <= ?", payout.StatusPending, cutoff).
		Order("requested_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return payout.FromDataModelSlice(rows), nil
}

// CreateWithLinks inserts the payout and claims its earnings in one
// transaction. The link update is conditional on each earning still being
// approved and unlinked; if a concurrent request, dispute, or reversal got
// to any of them first, the row count comes up short and the whole payout
// rolls back.
func (r *PayoutRepository) CreateWithLinks(p *payout.Payout, earningIDs []int64) error {
	dm := payout.ToDataModel(p)

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dm).Error; err != nil {
			return err
		}

		res := tx.Model(&earningDatamodel.Earning{}).
			Where("id IN ? AND status = ? AND payout_id IS NULL", earningIDs, earning.StatusApproved).
			Updates(map[string]interface{}{
				"payout_id":  dm.ID,
				"updated_at": p.RequestedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(earningIDs)) {
			return errors.ErrEligiblePoolChanged
		}
		return nil
	})
	if err != nil {
		return err
	}

	*p = *payout.FromDataModel(dm)
	return nil
}

// ApplyOutcome transitions the payout and applies the earning side effects
// in one transaction. The WHERE clause carries the allowed prior states for
// the reported status, so late or duplicated outcomes match zero rows and
// leave both tables untouched.
func (r *PayoutRepository) ApplyOutcome(id int64, newStatus string, providerRef, failureCode, failureMessage *string, now time.Time) (*payout.OutcomeResult, error) {
	result := &payout.OutcomeResult{}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     newStatus,
			"updated_at": now,
		}
		if providerRef != nil {
			updates["provider_ref"] = *providerRef
		}
		switch {
		case newStatus == payout.StatusProcessing:
			updates["processed_at"] = now
		case newStatus == payout.StatusPaid:
			updates["paid_at"] = now
		case payout.IsReleaseStatus(newStatus):
			updates["failed_at"] = now
			updates["failure_code"] = failureCode
			updates["failure_message"] = failureMessage
		}

		res := tx.Model(&payoutDatamodel.Payout{}).
			Where("id = ? AND status IN ?", id, payout.AllowedPriorStates(newStatus)).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		result.Applied = true

		switch {
		case newStatus == payout.StatusPaid:
			paid := tx.Model(&earningDatamodel.Earning{}).
				Where("payout_id = ? AND status = ?", id, earning.StatusApproved).
				Updates(map[string]interface{}{
					"status":     earning.StatusPaid,
					"paid_at":    now,
					"updated_at": now,
				})
			if paid.Error != nil {
				return paid.Error
			}
			result.EarningsPaid = paid.RowsAffected

		case payout.IsReleaseStatus(newStatus):
			released := tx.Model(&earningDatamodel.Earning{}).
				Where("payout_id = ? AND status = ?", id, earning.StatusApproved).
				Updates(map[string]interface{}{
					"payout_id":  nil,
					"updated_at": now,
				})
			if released.Error != nil {
				return released.Error
			}
			result.EarningsReleased = released.RowsAffected
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
