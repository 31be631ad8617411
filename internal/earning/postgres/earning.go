package postgres

import (
	"time"

	"gorm.io/gorm"

	earningDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/earning"
	"github.com/referralkit/commission-ledger/internal/earning"
)

// EarningRepository implements the earning.Repository interface using GORM.
// Status and payout-link mutations are match-and-set in one statement: the
// WHERE clause carries the expected prior state, so a concurrent actor that
// got there first simply makes this update match zero rows.
type EarningRepository struct {
	db *gorm.DB
}

func NewEarningRepository(db *gorm.DB) *EarningRepository {
	return &EarningRepository{db: db}
}

func (r *EarningRepository) GetByID(id int64) (*earning.Earning, error) {
	var e earningDatamodel.Earning
	err := r.db.Where("id = ?", id).First(&e).Error
	if err != nil {
		return nil, err
	}
	return earning.FromDataModel(&e), nil
}

func (r *EarningRepository) ListByBeneficiary(beneficiaryID int64, filters earning.ListFilters) ([]*earning.Earning, error) {
	query := r.db.Where("beneficiary_id = ?", beneficiaryID)
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Source != "" {
		query = query.Where("source = ?", filters.Source)
	}

	var rows []*earningDatamodel.Earning
	err := query.Order("created_at DESC").
		Limit(filters.Limit).
		Offset(filters.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return earning.FromDataModelSlice(rows), nil
}

func (r *EarningRepository) Summary(beneficiaryID int64) ([]earning.StatusAggregate, error) {
	var rows []earning.StatusAggregate
	err := r.db.Model(&earningDatamodel.Earning{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(commission_amount), 0) AS total").
		Where("beneficiary_id = ?", beneficiaryID).
		Group("status").
		Scan(&rows).Error
	return rows, err
}

func (r *EarningRepository) ApproveIfPending(id int64, actor string, now time.Time) (bool, error) {
	// gifted lines are excluded defensively even though they should never exist
	res := r.db.Model(&earningDatamodel.Earning{}).
		Where("id = ? AND status = ? AND is_gifted = ?", id, earning.StatusPending, false).
		Updates(map[string]interface{}{
			"status":      earning.StatusApproved,
			"approved_at": now,
			"approved_by": actor,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *EarningRepository) DisputeIfOpen(id int64, actor, reason string, now time.Time) (bool, error) {
	res := r.db.Model(&earningDatamodel.Earning{}).
		Where("id = ? AND status IN ?", id, []string{earning.StatusPending, earning.StatusApproved}).
		Updates(map[string]interface{}{
			"status":         earning.StatusDisputed,
			"disputed_at":    now,
			"disputed_by":    actor,
			"dispute_reason": reason,
			"payout_id":      nil,
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *EarningRepository) CancelIfOpen(id int64, actor, reason string, now time.Time) (bool, error) {
	res := r.db.Model(&earningDatamodel.Earning{}).
		Where("id = ? AND status IN ?", id, []string{earning.StatusPending, earning.StatusApproved}).
		Updates(map[string]interface{}{
			"status":        earning.StatusCancelled,
			"cancelled_at":  now,
			"cancelled_by":  actor,
			"cancel_reason": reason,
			"payout_id":     nil,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SweepMature matures every pending earning whose hold window has elapsed in
// one conditional bulk update. Re-running the sweep is a no-op for rows
// already approved, so concurrent scheduler instances are safe.
func (r *EarningRepository) SweepMature(now time.Time) (int64, []earning.BeneficiaryCount, error) {
	var beneficiaries []earning.BeneficiaryCount
	err := r.db.Model(&earningDatamodel.Earning{}).
		Select("beneficiary_id, COUNT(*) AS count").
		Where("status = ? AND is_gifted = ? AND payment_completed_at IS NOT NULL AND eligible_for_payout_at <= ?",
			earning.StatusPending, false, now).
		Group("beneficiary_id").
		Scan(&beneficiaries).Error
	if err != nil {
		return 0, nil, err
	}

	res := r.db.Model(&earningDatamodel.Earning{}).
		Where("status = ? AND is_gifted = ? AND payment_completed_at IS NOT NULL AND eligible_for_payout_at <= ?",
			earning.StatusPending, false, now).
		Updates(map[string]interface{}{
			"status":      earning.StatusApproved,
			"approved_at": now,
			"approved_by": "hold-period-scheduler",
			"updated_at":  now,
		})
	if res.Error != nil {
		return 0, nil, res.Error
	}
	return res.RowsAffected, beneficiaries, nil
}

// CancelOpenBySubscription reverses every open earning tied to a
// subscription. The payout link is cleared in the same update that cancels
// the line. A second invocation for a fully-reversed subscription matches
// zero rows, which makes reversal idempotent.
func (r *EarningRepository) CancelOpenBySubscription(subscriptionRef, actor, reason string, now time.Time) (int64, error) {
	res := r.db.Model(&earningDatamodel.Earning{}).
		Where("billing_subject_ref = ? AND status IN ?", subscriptionRef, []string{earning.StatusPending, earning.StatusApproved}).
		Updates(map[string]interface{}{
			"status":        earning.StatusCancelled,
			"cancelled_at":  now,
			"cancelled_by":  actor,
			"cancel_reason": reason,
			"payout_id":     nil,
			"updated_at":    now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// FirstPurchaseEarning finds the tier-1 purchase line for a subscription so
// renewal lines can carry a provenance backreference.
func (r *EarningRepository) FirstPurchaseEarning(subscriptionRef string) (*earning.Earning, error) {
	var e earningDatamodel.Earning
	err := r.db.Where("billing_subject_ref = ? AND source = ? AND tier_level = 1", subscriptionRef, "purchase").
		Order("created_at ASC").
		First(&e).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return earning.FromDataModel(&e), nil
}
