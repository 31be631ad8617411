package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeEarningCreated       = "earning.created"
	EventTypeEarningsMatured      = "earning.matured"
	EventTypeSubscriptionReversed = "subscription.reversed"
	EventTypePayoutRequested      = "payout.requested"
	EventTypePayoutPaid           = "payout.paid"
	EventTypePayoutReleased       = "payout.released"
)

type EarningCreatedEvent struct {
	BaseEvent
	EarningID        int64  `json:"earning_id"`
	BeneficiaryID    int64  `json:"beneficiary_id"`
	CommissionAmount int64  `json:"commission_amount"`
	Currency         string `json:"currency"`
	TierLevel        int    `json:"tier_level"`
	Source           string `json:"source"`
}

func NewEarningCreatedEvent(earningID, beneficiaryID, commissionAmount int64, currency string, tierLevel int, source string) *EarningCreatedEvent {
	return &EarningCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeEarningCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"earning_id":        earningID,
				"beneficiary_id":    beneficiaryID,
				"commission_amount": commissionAmount,
				"currency":          currency,
				"tier_level":        tierLevel,
				"source":            source,
			},
		},
		EarningID:        earningID,
		BeneficiaryID:    beneficiaryID,
		CommissionAmount: commissionAmount,
		Currency:         currency,
		TierLevel:        tierLevel,
		Source:           source,
	}
}

// EarningsMaturedEvent triggers the beneficiary's aggregate summary refresh
// after a hold-period sweep.
type EarningsMaturedEvent struct {
	BaseEvent
	BeneficiaryID int64 `json:"beneficiary_id"`
	MaturedCount  int64 `json:"matured_count"`
}

func NewEarningsMaturedEvent(beneficiaryID, maturedCount int64) *EarningsMaturedEvent {
	return &EarningsMaturedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeEarningsMatured,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"beneficiary_id": beneficiaryID,
				"matured_count":  maturedCount,
			},
		},
		BeneficiaryID: beneficiaryID,
		MaturedCount:  maturedCount,
	}
}

type SubscriptionReversedEvent struct {
	BaseEvent
	SubscriptionRef string `json:"subscription_ref"`
	Reason          string `json:"reason"`
	CancelledCount  int64  `json:"cancelled_count"`
}

func NewSubscriptionReversedEvent(subscriptionRef, reason string, cancelledCount int64) *SubscriptionReversedEvent {
	return &SubscriptionReversedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSubscriptionReversed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"subscription_ref": subscriptionRef,
				"reason":           reason,
				"cancelled_count":  cancelledCount,
			},
		},
		SubscriptionRef: subscriptionRef,
		Reason:          reason,
		CancelledCount:  cancelledCount,
	}
}

type PayoutRequestedEvent struct {
	BaseEvent
	PayoutID      int64  `json:"payout_id"`
	BeneficiaryID int64  `json:"beneficiary_id"`
	Amount        int64  `json:"amount"`
	NetAmount     int64  `json:"net_amount"`
	Currency      string `json:"currency"`
}

func NewPayoutRequestedEvent(payoutID, beneficiaryID, amount, netAmount int64, currency string) *PayoutRequestedEvent {
	return &PayoutRequestedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePayoutRequested,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payout_id":      payoutID,
				"beneficiary_id": beneficiaryID,
				"amount":         amount,
				"net_amount":     netAmount,
				"currency":       currency,
			},
		},
		PayoutID:      payoutID,
		BeneficiaryID: beneficiaryID,
		Amount:        amount,
		NetAmount:     netAmount,
		Currency:      currency,
	}
}

type PayoutPaidEvent struct {
	BaseEvent
	PayoutID      int64 `json:"payout_id"`
	BeneficiaryID int64 `json:"beneficiary_id"`
	Amount        int64 `json:"amount"`
	EarningsPaid  int64 `json:"earnings_paid"`
}

func NewPayoutPaidEvent(payoutID, beneficiaryID, amount, earningsPaid int64) *PayoutPaidEvent {
	return &PayoutPaidEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePayoutPaid,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payout_id":      payoutID,
				"beneficiary_id": beneficiaryID,
				"amount":         amount,
				"earnings_paid":  earningsPaid,
			},
		},
		PayoutID:      payoutID,
		BeneficiaryID: beneficiaryID,
		Amount:        amount,
		EarningsPaid:  earningsPaid,
	}
}

// PayoutReleasedEvent records a payout that ended failed/cancelled/returned,
// with its earnings released back to the eligible pool.
type PayoutReleasedEvent struct {
	BaseEvent
	PayoutID      int64  `json:"payout_id"`
	BeneficiaryID int64  `json:"beneficiary_id"`
	FinalStatus   string `json:"final_status"`
	ReleasedCount int64  `json:"released_count"`
	FailureCode   string `json:"failure_code,omitempty"`
}

func NewPayoutReleasedEvent(payoutID, beneficiaryID int64, finalStatus string, releasedCount int64, failureCode string) *PayoutReleasedEvent {
	return &PayoutReleasedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePayoutReleased,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payout_id":      payoutID,
				"beneficiary_id": beneficiaryID,
				"final_status":   finalStatus,
				"released_count": releasedCount,
				"failure_code":   failureCode,
			},
		},
		PayoutID:      payoutID,
		BeneficiaryID: beneficiaryID,
		FinalStatus:   finalStatus,
		ReleasedCount: releasedCount,
		FailureCode:   failureCode,
	}
}
