package earning

import (
	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/core/common/validation"
)

// AdminReasonDTO carries the mandatory reason for dispute/cancel actions.
type AdminReasonDTO struct {
	Reason string `json:"reason"`
}

func (dto AdminReasonDTO) Validate() error {
	validator := validation.NewValidator()
	validator.Field("reason", dto.Reason).Required().MaxLen(500, errors.ErrCodeMissingReason)
	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// BulkActionDTO selects earnings for a bulk admin transition.
type BulkActionDTO struct {
	EarningIDs []int64 `json:"earning_ids"`
	Reason     string  `json:"reason,omitempty"`
}

func (dto BulkActionDTO) Validate(reasonRequired bool) error {
	if len(dto.EarningIDs) == 0 {
		return errors.NewValidationError("earning_ids must not be empty", errors.ErrCodeValidationFailed)
	}
	if len(dto.EarningIDs) > 500 {
		return errors.NewValidationError("earning_ids is limited to 500 per request", errors.ErrCodeValidationFailed)
	}
	if reasonRequired && dto.Reason == "" {
		return errors.NewValidationError("a reason is required for this action", errors.ErrCodeMissingReason)
	}
	return nil
}

// SummaryResponse is the per-status count/total matrix for one beneficiary.
type SummaryResponse struct {
	BeneficiaryID int64                      `json:"beneficiary_id"`
	Statuses      map[string]StatusAggregate `json:"statuses"`
}
