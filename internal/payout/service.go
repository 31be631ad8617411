package payout

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/core/events"
	"github.com/referralkit/commission-ledger/internal/earning"
)

// OutcomeResult reports what a dispatch outcome actually did. Applied is
// false when the rank guard matched zero rows, which means the outcome
// arrived late, duplicated, or after a terminal state.
type OutcomeResult struct {
	Applied          bool
	EarningsPaid     int64
	EarningsReleased int64
}

// Repository defines data access for payouts. CreateWithLinks and
// ApplyOutcome are transactional: the payout row and its earning links move
// together or not at all.
type Repository interface {
	GetByID(id int64) (*Payout, error)
	ListByBeneficiary(beneficiaryID int64, limit, offset int) ([]*Payout, error)

	// EligibleEarnings returns approved, unlinked, non-gifted earnings whose
	// hold window has elapsed, oldest payment first.
	EligibleEarnings(beneficiaryID int64, currency string, now time.Time) ([]*earning.Earning, error)

	// CreateWithLinks inserts the payout and links the earnings in one
	// transaction. If any earning was claimed concurrently the whole
	// transaction rolls back with ErrEligiblePoolChanged.
	CreateWithLinks(p *Payout, earningIDs []int64) error

	// ApplyOutcome performs the rank-guarded status transition and its
	// earning side effects (mark paid, or release back to the pool) in one
	// transaction.
	ApplyOutcome(id int64, newStatus string, providerRef, failureCode, failureMessage *string, now time.Time) (*OutcomeResult, error)
}

// Dispatcher hands an accepted payout to the upstream payment rails. The
// outcome comes back asynchronously through the dispatch callback.
type Dispatcher interface {
	SubmitPayout(ctx context.Context, p *Payout) error
}

// Service batches approved earnings into payouts and drives the payout
// lifecycle from dispatch outcomes.
type Service struct {
	repo       Repository
	dispatcher Dispatcher
	eventBus   *events.EventBus
	minimums   map[string]int64
	fees       map[string]errors.FeeConfig
	logger     *slog.Logger
}

func NewService(
	repo Repository,
	dispatcher Dispatcher,
	eventBus *events.EventBus,
	cfg errors.PayoutConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		eventBus:   eventBus,
		minimums:   cfg.MinimumAmounts,
		fees:       cfg.Fees,
		logger:     logger,
	}
}

// RequestPayout gathers the beneficiary's eligible pool into a single payout.
// The gross amount is the sum of linked commission amounts, so money is
// conserved: nothing is paid that is not on the ledger, and linking is
// all-or-nothing.
func (s *Service) RequestPayout(ctx context.Context, beneficiaryID int64, currency, method, destinationRef string, minAmount int64) (*Payout, error) {
	feeCfg, ok := s.fees[method]
	if !ok {
		return nil, errors.NewValidationFieldError("method", "unsupported payout method", errors.ErrCodeValidationFailed)
	}

	now := time.Now()
	pool, err := s.repo.EligibleEarnings(beneficiaryID, currency, now)
	if err != nil {
		s.logger.Error("failed to load eligible earnings", "error", err, "beneficiary_id", beneficiaryID)
		return nil, err
	}

	var amount int64
	earningIDs := make([]int64, 0, len(pool))
	for _, e := range pool {
		// the repository query already excludes these; a line slipping
		// through means the query and the ledger disagree, so refuse it
		if e.IsGifted || !e.IsHoldElapsed(now) {
			s.logger.Warn("ineligible earning in payout pool, skipping",
				"earning_id", e.ID, "gifted", e.IsGifted)
			continue
		}
		amount += e.CommissionAmount
		earningIDs = append(earningIDs, e.ID)
	}

	if len(earningIDs) == 0 {
		return nil, errors.ErrNoEligibleFunds
	}

	minimum := s.minimums[currency]
	if minAmount > minimum {
		minimum = minAmount
	}
	if amount < minimum {
		s.logger.Info("payout refused below minimum",
			"beneficiary_id", beneficiaryID,
			"eligible_amount", amount,
			"minimum", minimum,
			"currency", currency)
		return nil, errors.ErrBelowMinimumPayout
	}

	feeFlat := feeCfg.Flat
	feeRated := amount * feeCfg.PercentBps / 10000
	feeTotal := feeFlat + feeRated
	if amount <= feeTotal {
		return nil, errors.ErrBelowMinimumPayout
	}

	p := &Payout{
		BeneficiaryID:         beneficiaryID,
		DestinationAccountRef: destinationRef,
		Method:                method,
		Amount:                amount,
		FeeFlat:               feeFlat,
		FeeRated:              feeRated,
		FeeTotal:              feeTotal,
		NetAmount:             amount - feeTotal,
		Currency:              currency,
		Status:                StatusPending,
		EarningsCount:         len(earningIDs),
		RequestedAt:           now,
	}

	if err := s.repo.CreateWithLinks(p, earningIDs); err != nil {
		s.logger.Error("failed to create payout", "error", err, "beneficiary_id", beneficiaryID)
		return nil, err
	}

	s.logger.Info("payout requested",
		"payout_id", p.ID,
		"beneficiary_id", beneficiaryID,
		"amount", amount,
		"net_amount", p.NetAmount,
		"earnings_count", p.EarningsCount,
		"method", method)

	s.eventBus.Publish(ctx, events.NewPayoutRequestedEvent(p.ID, p.BeneficiaryID, p.Amount, p.NetAmount, p.Currency))

	// dispatch is best effort here: a payout that fails to enqueue stays
	// pending and the worker picks it up on the next submission attempt
	if s.dispatcher != nil {
		if err := s.dispatcher.SubmitPayout(ctx, p); err != nil {
			s.logger.Warn("payout dispatch enqueue failed, payout stays pending",
				"error", err, "payout_id", p.ID)
		}
	}

	return p, nil
}

// ApplyDispatchOutcome records an asynchronous outcome from the payment
// rails. Transitions are rank-guarded, so a stale "processing" arriving after
// "paid" is a recorded no-op rather than a regression, and terminal failure
// outcomes release the linked earnings back to the eligible pool in the same
// transaction.
func (s *Service) ApplyDispatchOutcome(ctx context.Context, payoutID int64, status, providerRef, failureCode, failureMessage string) (*Payout, *OutcomeResult, error) {
	if !IsKnownStatus(status) || status == StatusPending {
		return nil, nil, errors.NewValidationFieldError("status", "unknown dispatch status", errors.ErrCodeValidationFailed)
	}

	outcome, err := s.repo.ApplyOutcome(payoutID, status,
		optional(providerRef), optional(failureCode), optional(failureMessage), time.Now())
	if err != nil {
		s.logger.Error("failed to apply dispatch outcome", "error", err,
			"payout_id", payoutID, "status", status)
		return nil, nil, err
	}

	p, err := s.repo.GetByID(payoutID)
	if err != nil {
		return nil, nil, errors.ErrPayoutNotFound
	}

	if !outcome.Applied {
		s.logger.Info("dispatch outcome ignored by rank guard",
			"payout_id", payoutID,
			"reported_status", status,
			"current_status", p.Status)
		return p, outcome, nil
	}

	s.logger.Info("dispatch outcome applied",
		"payout_id", payoutID,
		"status", status,
		"earnings_paid", outcome.EarningsPaid,
		"earnings_released", outcome.EarningsReleased)

	switch {
	case status == StatusPaid:
		s.eventBus.Publish(ctx, events.NewPayoutPaidEvent(p.ID, p.BeneficiaryID, p.Amount, outcome.EarningsPaid))
	case IsReleaseStatus(status):
		s.eventBus.Publish(ctx, events.NewPayoutReleasedEvent(p.ID, p.BeneficiaryID, status, outcome.EarningsReleased, failureCode))
	}

	return p, outcome, nil
}

func (s *Service) GetPayout(id int64) (*Payout, error) {
	p, err := s.repo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get payout", "error", err, "payout_id", id)
		return nil, errors.ErrPayoutNotFound
	}
	return p, nil
}

func (s *Service) PayoutHistory(beneficiaryID int64, limit, offset int) ([]*Payout, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	payouts, err := s.repo.ListByBeneficiary(beneficiaryID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list payouts", "error", err, "beneficiary_id", beneficiaryID)
		return nil, err
	}
	return payouts, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
