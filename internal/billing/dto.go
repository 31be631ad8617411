package billing

import (
	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/commission"
	"github.com/referralkit/commission-ledger/internal/core/common/validation"
)

// BillingFactRequest is the webhook payload from the billing collaborator.
// BeneficiaryChain[0] is the direct referrer; BeneficiaryChain[1], when
// present, is that referrer's own referrer.
type BillingFactRequest struct {
	EventID            string  `json:"event_id"`
	SubscriptionRef    string  `json:"subscription_ref"`
	ExternalPaymentID  string  `json:"external_payment_id"`
	CounterpartyUserID int64   `json:"counterparty_user_id"`
	GrossAmount        int64   `json:"gross_amount"`
	Currency           string  `json:"currency"`
	Plan               string  `json:"plan"`
	BillingReason      string  `json:"billing_reason"`
	BeneficiaryChain   []int64 `json:"beneficiary_chain"`
	IsGifted           bool    `json:"is_gifted"`
}

func (r *BillingFactRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("subscription_ref", r.SubscriptionRef).Required()
	validator.Field("external_payment_id", r.ExternalPaymentID).Required()
	validator.Field("gross_amount", r.GrossAmount).Required().MinInt(1, errors.ErrCodeInvalidAmount)
	validator.Field("currency", r.Currency).Required().CurrencyCode(errors.ErrCodeInvalidCurrency)
	validator.Field("plan", r.Plan).Required()
	validator.Field("billing_reason", r.BillingReason).Required().
		OneOf([]string{commission.BillingReasonFirst, commission.BillingReasonRenewal}, errors.ErrCodeValidationFailed)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	if len(r.BeneficiaryChain) > 2 {
		return errors.NewValidationError("beneficiary_chain supports at most two tiers", errors.ErrCodeValidationFailed)
	}
	return nil
}

func (r *BillingFactRequest) ToBillingFact() commission.BillingFact {
	return commission.BillingFact{
		SubscriptionRef:    r.SubscriptionRef,
		ExternalPaymentID:  r.ExternalPaymentID,
		CounterpartyUserID: r.CounterpartyUserID,
		GrossAmount:        r.GrossAmount,
		Currency:           r.Currency,
		Plan:               r.Plan,
		BillingReason:      r.BillingReason,
		BeneficiaryChain:   r.BeneficiaryChain,
		IsGifted:           r.IsGifted,
	}
}

// ReversalRequest is the webhook payload for subscription
// cancellation/refund/deauthorization events.
type ReversalRequest struct {
	SubscriptionRef string `json:"subscription_ref"`
	Reason          string `json:"reason"`
}

func (r *ReversalRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("subscription_ref", r.SubscriptionRef).Required()
	validator.Field("reason", r.Reason).Required().MaxLen(500, errors.ErrCodeMissingReason)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
