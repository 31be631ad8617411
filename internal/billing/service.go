package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/referralkit/commission-ledger/internal/commission"
	billingDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/billing"
	earningDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/earning"
	"github.com/referralkit/commission-ledger/internal/core/events"
	"github.com/referralkit/commission-ledger/internal/earning"
)

// ReversalActor is the audit identity stamped on earnings cancelled by the
// reversal handler.
const ReversalActor = "reversal-handler"

// Repository is the transactional boundary for billing-fact intake.
type Repository interface {
	RecordAndCreateEarnings(record *billingDatamodel.ProcessedPayment, rows []*earningDatamodel.Earning) (bool, error)
	HasProcessed(subscriptionRef, externalPaymentID string) (bool, error)
}

// LedgerRepository is the slice of the earning repository the billing intake
// needs for reversals and renewal provenance.
type LedgerRepository interface {
	CancelOpenBySubscription(subscriptionRef, actor, reason string, now time.Time) (int64, error)
	FirstPurchaseEarning(subscriptionRef string) (*earning.Earning, error)
}

// EventCache is the optional short-window exact-event-id dedup in front of
// the durable record.
type EventCache interface {
	SeenRecently(ctx context.Context, eventID string) (bool, error)
}

// IngestResult reports what one billing fact did to the ledger.
type IngestResult struct {
	Duplicate  bool    `json:"duplicate"`
	EarningIDs []int64 `json:"earning_ids"`
}

// Service turns external billing facts into ledger lines exactly once, and
// unwinds them when subscriptions are reversed.
type Service struct {
	repo     Repository
	ledger   LedgerRepository
	engine   *commission.Engine
	cache    EventCache
	eventBus *events.EventBus
	logger   *slog.Logger
}

func NewService(repo Repository, ledger LedgerRepository, engine *commission.Engine, cache EventCache, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledger,
		engine:   engine,
		cache:    cache,
		eventBus: eventBus,
		logger:   logger,
	}
}

// IngestBillingFact applies one billing fact to the ledger. Duplicates,
// whether caught by the event cache or by the durable insert-if-absent, are
// acknowledged as no-ops so the provider stops redelivering. Commission
// computation runs before the idempotency record is written: a configuration
// error must not consume the dedup key, so the provider's retry succeeds
// once the rate table is fixed.
func (s *Service) IngestBillingFact(ctx context.Context, fact commission.BillingFact, eventID string) (*IngestResult, error) {
	if s.cache != nil && eventID != "" {
		seen, err := s.cache.SeenRecently(ctx, eventID)
		if err != nil {
			// the cache is advisory; fall through to the durable guard
			s.logger.Warn("event cache unavailable, relying on durable idempotency record",
				"error", err, "event_id", eventID)
		} else if seen {
			s.logger.Info("billing event short-circuited by event cache",
				"event_id", eventID,
				"subscription_ref", fact.SubscriptionRef)
			return &IngestResult{Duplicate: true}, nil
		}
	}

	now := time.Now().UTC()

	if fact.BillingReason == commission.BillingReasonRenewal && fact.OriginEarningID == nil {
		origin, err := s.ledger.FirstPurchaseEarning(fact.SubscriptionRef)
		if err != nil {
			s.logger.Error("failed to resolve renewal provenance", "error", err,
				"subscription_ref", fact.SubscriptionRef)
			return nil, err
		}
		if origin != nil {
			fact.OriginEarningID = &origin.ID
		}
	}

	drafts, err := s.engine.ComputeEarnings(fact, now)
	if err != nil {
		s.logger.Error("commission computation failed", "error", err,
			"subscription_ref", fact.SubscriptionRef,
			"plan", fact.Plan)
		return nil, err
	}

	record := &billingDatamodel.ProcessedPayment{
		SubscriptionRef:   fact.SubscriptionRef,
		ExternalPaymentID: fact.ExternalPaymentID,
		ReceivedAt:        now,
	}

	rows := make([]*earningDatamodel.Earning, len(drafts))
	for i, d := range drafts {
		paymentCompletedAt := d.PaymentCompletedAt
		eligibleAt := d.EligibleForPayoutAt
		rows[i] = &earningDatamodel.Earning{
			BeneficiaryID:       d.BeneficiaryID,
			CounterpartyUserID:  d.CounterpartyUserID,
			BillingSubjectRef:   d.BillingSubjectRef,
			Source:              d.Source,
			TierLevel:           d.TierLevel,
			GrossAmount:         d.GrossAmount,
			CommissionRateBps:   d.CommissionRateBps,
			CommissionAmount:    d.CommissionAmount,
			Currency:            d.Currency,
			Status:              earning.StatusPending,
			PaymentCompletedAt:  &paymentCompletedAt,
			HoldPolicy:          d.HoldPolicy.Kind,
			HoldPeriodDays:      d.HoldPolicy.Days,
			EligibleForPayoutAt: &eligibleAt,
			OriginEarningID:     d.OriginEarningID,
		}
	}

	isNew, err := s.repo.RecordAndCreateEarnings(record, rows)
	if err != nil {
		s.logger.Error("failed to record billing fact", "error", err,
			"subscription_ref", fact.SubscriptionRef,
			"external_payment_id", fact.ExternalPaymentID)
		return nil, err
	}
	if !isNew {
		s.logger.Info("duplicate billing fact acknowledged",
			"subscription_ref", fact.SubscriptionRef,
			"external_payment_id", fact.ExternalPaymentID)
		return &IngestResult{Duplicate: true}, nil
	}

	result := &IngestResult{EarningIDs: make([]int64, len(rows))}
	for i, row := range rows {
		result.EarningIDs[i] = row.ID
		// best-effort notification; the ledger write already committed
		s.eventBus.Publish(ctx, events.NewEarningCreatedEvent(
			row.ID, row.BeneficiaryID, row.CommissionAmount, row.Currency, row.TierLevel, row.Source))
	}

	s.logger.Info("billing fact applied to ledger",
		"subscription_ref", fact.SubscriptionRef,
		"external_payment_id", fact.ExternalPaymentID,
		"earnings_created", len(rows),
		"gifted", fact.IsGifted)

	return result, nil
}

// ReverseForSubscription cancels every open earning tied to the subscription,
// releasing payout links in the same operation. Re-invoking for an already
// reversed subscription cancels zero rows and is not an error.
func (s *Service) ReverseForSubscription(ctx context.Context, subscriptionRef, reason string) (int64, error) {
	count, err := s.ledger.CancelOpenBySubscription(subscriptionRef, ReversalActor, reason, time.Now().UTC())
	if err != nil {
		s.logger.Error("subscription reversal failed", "error", err,
			"subscription_ref", subscriptionRef)
		return 0, err
	}

	s.eventBus.Publish(ctx, events.NewSubscriptionReversedEvent(subscriptionRef, reason, count))

	s.logger.Info("subscription reversed",
		"subscription_ref", subscriptionRef,
		"reason", reason,
		"earnings_cancelled", count)

	return count, nil
}
