package earning

import (
	"log/slog"
	"time"

	errors "github.com/referralkit/commission-ledger/internal"
)

// ListFilters narrows beneficiary earning queries.
type ListFilters struct {
	Status string
	Source string
	Limit  int
	Offset int
}

// StatusAggregate is one row of the per-status earnings summary.
type StatusAggregate struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
	Total  int64  `json:"total"`
}

// BeneficiaryCount pairs a beneficiary with the number of their earnings a
// sweep matured, for the summary-refresh events.
type BeneficiaryCount struct {
	BeneficiaryID int64 `json:"beneficiary_id"`
	Count         int64 `json:"count"`
}

// Repository defines the data access methods for earnings. Every mutation
// that changes status or the payout link is a single conditional update
// scoped to the expected prior state, so concurrent actors cannot lose
// updates to each other.
type Repository interface {
	GetByID(id int64) (*Earning, error)
	ListByBeneficiary(beneficiaryID int64, filters ListFilters) ([]*Earning, error)
	Summary(beneficiaryID int64) ([]StatusAggregate, error)

	// ApproveIfPending transitions pending → approved; returns false when the
	// row was not in pending (already approved, terminal, or gifted).
	ApproveIfPending(id int64, actor string, now time.Time) (bool, error)

	// DisputeIfOpen / CancelIfOpen transition pending|approved to the
	// absorbing terminal, clearing any payout link in the same update.
	DisputeIfOpen(id int64, actor, reason string, now time.Time) (bool, error)
	CancelIfOpen(id int64, actor, reason string, now time.Time) (bool, error)
}

// Service handles earning ledger queries and admin transitions.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetEarning(id int64) (*Earning, error) {
	e, err := s.repo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get earning", "error", err, "earning_id", id)
		return nil, errors.ErrEarningNotFound
	}
	return e, nil
}

func (s *Service) ListEarnings(beneficiaryID int64, filters ListFilters) ([]*Earning, error) {
	if filters.Limit <= 0 || filters.Limit > 200 {
		filters.Limit = 50
	}
	earnings, err := s.repo.ListByBeneficiary(beneficiaryID, filters)
	if err != nil {
		s.logger.Error("failed to list earnings", "error", err, "beneficiary_id", beneficiaryID)
		return nil, err
	}
	return earnings, nil
}

// EarningsSummary aggregates count and total per status, zero-filling
// statuses with no rows so callers always see the full matrix.
func (s *Service) EarningsSummary(beneficiaryID int64) (map[string]StatusAggregate, error) {
	rows, err := s.repo.Summary(beneficiaryID)
	if err != nil {
		s.logger.Error("failed to summarize earnings", "error", err, "beneficiary_id", beneficiaryID)
		return nil, err
	}

	summary := make(map[string]StatusAggregate, 5)
	for _, status := range []string{StatusPending, StatusApproved, StatusPaid, StatusDisputed, StatusCancelled} {
		summary[status] = StatusAggregate{Status: status}
	}
	for _, row := range rows {
		summary[row.Status] = row
	}
	return summary, nil
}

// ApproveEarning is the admin override of the hold-period scheduler. The
// conditional update guards against double approval and terminal states.
func (s *Service) ApproveEarning(id int64, actor string) (*Earning, error) {
	if actor == "" {
		return nil, errors.NewValidationError("actor id is required", errors.ErrCodeMissingActor)
	}

	ok, err := s.repo.ApproveIfPending(id, actor, time.Now())
	if err != nil {
		s.logger.Error("failed to approve earning", "error", err, "earning_id", id)
		return nil, err
	}
	if !ok {
		return nil, s.transitionRefused(id, "approve")
	}

	s.logger.Info("earning approved", "earning_id", id, "actor", actor)
	return s.repo.GetByID(id)
}

func (s *Service) DisputeEarning(id int64, actor, reason string) (*Earning, error) {
	if err := requireActorAndReason(actor, reason); err != nil {
		return nil, err
	}

	ok, err := s.repo.DisputeIfOpen(id, actor, reason, time.Now())
	if err != nil {
		s.logger.Error("failed to dispute earning", "error", err, "earning_id", id)
		return nil, err
	}
	if !ok {
		return nil, s.transitionRefused(id, "dispute")
	}

	s.logger.Info("earning disputed", "earning_id", id, "actor", actor, "reason", reason)
	return s.repo.GetByID(id)
}

func (s *Service) CancelEarning(id int64, actor, reason string) (*Earning, error) {
	if err := requireActorAndReason(actor, reason); err != nil {
		return nil, err
	}

	ok, err := s.repo.CancelIfOpen(id, actor, reason, time.Now())
	if err != nil {
		s.logger.Error("failed to cancel earning", "error", err, "earning_id", id)
		return nil, err
	}
	if !ok {
		return nil, s.transitionRefused(id, "cancel")
	}

	s.logger.Info("earning cancelled", "earning_id", id, "actor", actor, "reason", reason)
	return s.repo.GetByID(id)
}

// BulkResult reports the outcome of a bulk admin action per earning id.
type BulkResult struct {
	Updated []int64 `json:"updated"`
	Skipped []int64 `json:"skipped"`
}

func (s *Service) BulkApprove(ids []int64, actor string) (*BulkResult, error) {
	if actor == "" {
		return nil, errors.NewValidationError("actor id is required", errors.ErrCodeMissingActor)
	}
	return s.bulkTransition(ids, func(id int64) (bool, error) {
		return s.repo.ApproveIfPending(id, actor, time.Now())
	})
}

func (s *Service) BulkDispute(ids []int64, actor, reason string) (*BulkResult, error) {
	if err := requireActorAndReason(actor, reason); err != nil {
		return nil, err
	}
	return s.bulkTransition(ids, func(id int64) (bool, error) {
		return s.repo.DisputeIfOpen(id, actor, reason, time.Now())
	})
}

func (s *Service) BulkCancel(ids []int64, actor, reason string) (*BulkResult, error) {
	if err := requireActorAndReason(actor, reason); err != nil {
		return nil, err
	}
	return s.bulkTransition(ids, func(id int64) (bool, error) {
		return s.repo.CancelIfOpen(id, actor, reason, time.Now())
	})
}

func (s *Service) bulkTransition(ids []int64, apply func(id int64) (bool, error)) (*BulkResult, error) {
	result := &BulkResult{
		Updated: make([]int64, 0, len(ids)),
		Skipped: make([]int64, 0),
	}
	for _, id := range ids {
		ok, err := apply(id)
		if err != nil {
			s.logger.Error("bulk transition failed", "error", err, "earning_id", id)
			return nil, err
		}
		if ok {
			result.Updated = append(result.Updated, id)
		} else {
			result.Skipped = append(result.Skipped, id)
		}
	}
	return result, nil
}

// transitionRefused distinguishes "no such earning" from "wrong state" after
// a conditional update matched zero rows.
func (s *Service) transitionRefused(id int64, action string) error {
	current, err := s.repo.GetByID(id)
	if err != nil {
		return errors.ErrEarningNotFound
	}
	s.logger.Warn("earning transition refused",
		"earning_id", id,
		"action", action,
		"current_status", current.Status)
	return errors.ErrInvalidTransition
}

func requireActorAndReason(actor, reason string) error {
	if actor == "" {
		return errors.NewValidationError("actor id is required", errors.ErrCodeMissingActor)
	}
	if reason == "" {
		return errors.NewValidationError("a reason is required for this action", errors.ErrCodeMissingReason)
	}
	return nil
}
