package billing

import (
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/transport"
)

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

type webhookResponse struct {
	Status     string  `json:"status"`
	Duplicate  bool    `json:"duplicate,omitempty"`
	EarningIDs []int64 `json:"earning_ids,omitempty"`
	Cancelled  int64   `json:"cancelled,omitempty"`
}

// HandleBillingFact handles POST /api/v1/billing/callback. Duplicates are
// answered 200 so the provider stops redelivering; configuration errors are
// answered 500 so it retries after the rate table is fixed.
func (h *WebhookHandler) HandleBillingFact(w http.ResponseWriter, r *http.Request) {
	var req BillingFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("invalid billing callback payload", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.logger.Error("billing callback validation failed", "error", err,
			"subscription_ref", req.SubscriptionRef)
		h.HandleServiceError(w, err)
		return
	}

	h.logger.Info("received billing fact",
		"subscription_ref", req.SubscriptionRef,
		"external_payment_id", req.ExternalPaymentID,
		"billing_reason", req.BillingReason,
		"gross_amount", req.GrossAmount,
		"gifted", req.IsGifted)

	result, err := h.service.IngestBillingFact(r.Context(), req.ToBillingFact(), req.EventID)
	if err != nil {
		h.logger.Error("failed to ingest billing fact", "error", err,
			"subscription_ref", req.SubscriptionRef,
			"external_payment_id", req.ExternalPaymentID)
		h.HandleServiceError(w, err)
		return
	}

	if result.Duplicate {
		h.WriteJSON(w, http.StatusOK, webhookResponse{Status: "duplicate", Duplicate: true})
		return
	}

	h.WriteJSON(w, http.StatusOK, webhookResponse{Status: "processed", EarningIDs: result.EarningIDs})
}

// HandleReversal handles POST /api/v1/billing/reversal. Reversal is
// idempotent, so an already-reversed subscription still answers 200 with
// cancelled=0.
func (h *WebhookHandler) HandleReversal(w http.ResponseWriter, r *http.Request) {
	var req ReversalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("invalid reversal payload", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.logger.Error("reversal validation failed", "error", err,
			"subscription_ref", req.SubscriptionRef)
		h.HandleServiceError(w, err)
		return
	}

	count, err := h.service.ReverseForSubscription(r.Context(), req.SubscriptionRef, req.Reason)
	if err != nil {
		h.logger.Error("failed to reverse subscription", "error", err,
			"subscription_ref", req.SubscriptionRef)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, webhookResponse{Status: "reversed", Cancelled: count})
}
