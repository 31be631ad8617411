package payout

import (
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/transport"
)

// WebhookHandler receives asynchronous dispatch outcomes from the payment
// rails.
type WebhookHandler struct {
	*transport.BaseHandler
	service *Service
	logger  *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service *Service, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

type outcomeResponse struct {
	Status           string `json:"status"`
	Applied          bool   `json:"applied"`
	PayoutStatus     string `json:"payout_status"`
	EarningsPaid     int64  `json:"earnings_paid,omitempty"`
	EarningsReleased int64  `json:"earnings_released,omitempty"`
}

// HandleDispatchOutcome handles POST /api/v1/payouts/callback. Outcomes the
// rank guard rejects are answered 200 with applied=false so the rails stop
// redelivering; only genuine processing failures (storage errors) return 5xx
// and trigger a retry.
func (h *WebhookHandler) HandleDispatchOutcome(w http.ResponseWriter, r *http.Request) {
	var dto DispatchOutcomeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.logger.Error("invalid dispatch callback payload", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := dto.Validate(); err != nil {
		h.logger.Error("dispatch callback validation failed", "error", err, "payout_id", dto.PayoutID)
		h.HandleServiceError(w, err)
		return
	}

	h.logger.Info("received dispatch outcome",
		"payout_id", dto.PayoutID,
		"status", dto.Status,
		"provider_ref", dto.ProviderRef,
		"failure_code", dto.FailureCode)

	p, outcome, err := h.service.ApplyDispatchOutcome(r.Context(),
		dto.PayoutID, dto.Status, dto.ProviderRef, dto.FailureCode, dto.FailureMessage)
	if err != nil {
		h.logger.Error("failed to apply dispatch outcome", "error", err, "payout_id", dto.PayoutID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, outcomeResponse{
		Status:           "recorded",
		Applied:          outcome.Applied,
		PayoutStatus:     p.Status,
		EarningsPaid:     outcome.EarningsPaid,
		EarningsReleased: outcome.EarningsReleased,
	})
}
