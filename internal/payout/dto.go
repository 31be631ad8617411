package payout

import (
	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/core/common/validation"
)

// RequestPayoutDTO is the body of POST /api/v1/payouts. MinAmount lets the
// beneficiary raise the floor above the configured per-currency minimum;
// it can never lower it.
type RequestPayoutDTO struct {
	BeneficiaryID         int64  `json:"beneficiary_id"`
	Currency              string `json:"currency"`
	Method                string `json:"method"`
	DestinationAccountRef string `json:"destination_account_ref"`
	MinAmount             int64  `json:"min_amount,omitempty"`
}

func (dto RequestPayoutDTO) Validate() error {
	validator := validation.NewValidator()
	validator.Field("currency", dto.Currency).Required().CurrencyCode(errors.ErrCodeInvalidCurrency)
	validator.Field("method", dto.Method).Required()
	validator.Field("destination_account_ref", dto.DestinationAccountRef).Required().MaxLen(255, errors.ErrCodeValidationFailed)
	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}

	if dto.BeneficiaryID <= 0 {
		return errors.NewValidationFieldError("beneficiary_id", "beneficiary_id is required", errors.ErrCodeValidationFailed)
	}
	if dto.MinAmount < 0 {
		return errors.NewValidationFieldError("min_amount", "min_amount cannot be negative", errors.ErrCodeInvalidAmount)
	}
	return nil
}

// DispatchOutcomeDTO is the callback body posted by the payment rails for
// POST /api/v1/payouts/callback.
type DispatchOutcomeDTO struct {
	PayoutID       int64  `json:"payout_id"`
	Status         string `json:"status"`
	ProviderRef    string `json:"provider_ref,omitempty"`
	FailureCode    string `json:"failure_code,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
}

func (dto DispatchOutcomeDTO) Validate() error {
	if dto.PayoutID <= 0 {
		return errors.NewValidationFieldError("payout_id", "payout_id is required", errors.ErrCodeValidationFailed)
	}
	if !IsKnownStatus(dto.Status) || dto.Status == StatusPending {
		return errors.NewValidationFieldError("status", "unknown dispatch status", errors.ErrCodeValidationFailed)
	}
	if IsReleaseStatus(dto.Status) && dto.FailureCode == "" {
		return errors.NewValidationFieldError("failure_code", "failure_code is required for a failed outcome", errors.ErrCodeValidationFailed)
	}
	return nil
}
