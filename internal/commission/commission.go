package commission

import (
	"fmt"
	"log/slog"
	"time"

	errors "github.com/referralkit/commission-ledger/internal"
)

// Earning sources.
const (
	SourcePurchase      = "purchase"
	SourceRenewal       = "renewal"
	SourceReferralBonus = "referral_bonus"
)

// Billing reasons as delivered by the subscription collaborator.
const (
	BillingReasonFirst   = "first"
	BillingReasonRenewal = "renewal"
)

// BillingFact is the inbound billing event at the subscription boundary.
// BeneficiaryChain is ordered: index 0 is the direct referrer (tier 1),
// index 1 the referrer's own referrer (tier 2).
type BillingFact struct {
	SubscriptionRef    string
	ExternalPaymentID  string
	CounterpartyUserID int64
	GrossAmount        int64
	Currency           string
	Plan               string
	BillingReason      string
	BeneficiaryChain   []int64
	IsGifted           bool
	OriginEarningID    *int64
}

// Hold policy kinds. "No hold" is a deliberate state, not a missing field.
const (
	HoldTimed  = "timed"
	HoldWaived = "waived"
)

type HoldPolicy struct {
	Kind string
	Days int
}

func TimedHold(days int) HoldPolicy {
	return HoldPolicy{Kind: HoldTimed, Days: days}
}

func WaivedHold() HoldPolicy {
	return HoldPolicy{Kind: HoldWaived}
}

// EligibleAt derives the payout-eligibility timestamp from the payment
// completion time. Computed once at creation, never recomputed.
func (p HoldPolicy) EligibleAt(paymentCompletedAt time.Time) time.Time {
	if p.Kind == HoldWaived {
		return paymentCompletedAt
	}
	return paymentCompletedAt.AddDate(0, 0, p.Days)
}

// Draft is a commission line computed from a billing fact, ready to be
// persisted as a pending earning.
type Draft struct {
	BeneficiaryID       int64
	CounterpartyUserID  int64
	BillingSubjectRef   string
	Source              string
	TierLevel           int
	GrossAmount         int64
	CommissionRateBps   int64
	CommissionAmount    int64
	Currency            string
	PaymentCompletedAt  time.Time
	HoldPolicy          HoldPolicy
	EligibleForPayoutAt time.Time
	OriginEarningID     *int64
}

// Engine computes tiered commission drafts from billing facts and the
// plan-keyed rate table.
type Engine struct {
	planRatesBps map[string]int64
	subRateBps   int64
	holdPolicy   HoldPolicy
	logger       *slog.Logger
}

func NewEngine(planRatesBps map[string]int64, subRateBps int64, holdPolicy HoldPolicy, logger *slog.Logger) *Engine {
	return &Engine{
		planRatesBps: planRatesBps,
		subRateBps:   subRateBps,
		holdPolicy:   holdPolicy,
		logger:       logger,
	}
}

// RateForPlan looks the commission rate up from the plan-keyed table. A
// missing plan is a configuration error and never defaults to zero.
func (e *Engine) RateForPlan(plan string) (int64, error) {
	bps, ok := e.planRatesBps[plan]
	if !ok {
		return 0, errors.NewConfigurationError(
			fmt.Sprintf("no commission rate configured for plan %q", plan),
			errors.ErrCodeMissingPlanRate,
		)
	}
	return bps, nil
}

// commissionFor applies one tier's rate with floor semantics. Inputs are
// minor units and basis points, so truncating integer division is exact.
func commissionFor(base, rateBps int64) int64 {
	return base * rateBps / 10000
}

// ComputeEarnings walks the beneficiary chain and produces one draft per
// tier. The gifted check comes before any other logic: a gifted subscription
// never produces commissionable earnings, whatever the source or tier.
//
// Tier 1 is a share of the gross amount; each deeper tier is a share of the
// previous tier's commission amount. That is the documented business rule;
// do not change the base to gross without product confirmation.
func (e *Engine) ComputeEarnings(fact BillingFact, now time.Time) ([]Draft, error) {
	if fact.IsGifted {
		e.logger.Debug("gifted subscription, no earnings computed",
			"subscription_ref", fact.SubscriptionRef)
		return nil, nil
	}

	if len(fact.BeneficiaryChain) == 0 {
		return nil, nil
	}

	if fact.GrossAmount <= 0 {
		return nil, errors.NewValidationError("gross amount must be positive", errors.ErrCodeInvalidAmount)
	}

	source := SourcePurchase
	if fact.BillingReason == BillingReasonRenewal {
		source = SourceRenewal
	}

	planRate, err := e.RateForPlan(fact.Plan)
	if err != nil {
		return nil, err
	}

	drafts := make([]Draft, 0, len(fact.BeneficiaryChain))
	base := fact.GrossAmount
	for i, beneficiaryID := range fact.BeneficiaryChain {
		rateBps := planRate
		if i > 0 {
			rateBps = e.subRateBps
		}

		amount := commissionFor(base, rateBps)
		drafts = append(drafts, Draft{
			BeneficiaryID:       beneficiaryID,
			CounterpartyUserID:  fact.CounterpartyUserID,
			BillingSubjectRef:   fact.SubscriptionRef,
			Source:              source,
			TierLevel:           i + 1,
			GrossAmount:         fact.GrossAmount,
			CommissionRateBps:   rateBps,
			CommissionAmount:    amount,
			Currency:            fact.Currency,
			PaymentCompletedAt:  now,
			HoldPolicy:          e.holdPolicy,
			EligibleForPayoutAt: e.holdPolicy.EligibleAt(now),
			OriginEarningID:     fact.OriginEarningID,
		})

		// next tier earns a share of this tier's commission, not of gross
		base = amount
	}

	return drafts, nil
}
