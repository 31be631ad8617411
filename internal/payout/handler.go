package payout

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/transport"
)

type ServiceAPI interface {
	RequestPayout(ctx context.Context, beneficiaryID int64, currency, method, destinationRef string, minAmount int64) (*Payout, error)
	GetPayout(id int64) (*Payout, error)
	PayoutHistory(beneficiaryID int64, limit, offset int) ([]*Payout, error)
}

type Handler struct {
	transport.BaseHandler
	Service ServiceAPI
	Logger  *slog.Logger
}

func NewHandler(service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.BaseHandler{Logger: logger},
		Service:     service,
		Logger:      logger,
	}
}

// RequestPayout handles POST /api/v1/payouts
func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	var dto RequestPayoutDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	p, err := h.Service.RequestPayout(r.Context(), dto.BeneficiaryID, dto.Currency, dto.Method, dto.DestinationAccountRef, dto.MinAmount)
	if err != nil {
		h.Logger.Error("RequestPayout: service error", "error", err, "beneficiary_id", dto.BeneficiaryID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, p)
}

// GetPayout handles GET /api/v1/payouts/{id}
func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.HandleError(w, errors.NewValidationError("invalid payout id", errors.ErrCodeValidationFailed))
		return
	}

	p, err := h.Service.GetPayout(id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, p)
}

// ListPayouts handles GET /api/v1/payouts?beneficiary_id=
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	beneficiaryID, err := strconv.ParseInt(r.URL.Query().Get("beneficiary_id"), 10, 64)
	if err != nil {
		h.HandleError(w, errors.NewValidationError("beneficiary_id is required", errors.ErrCodeValidationFailed))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payouts, err := h.Service.PayoutHistory(beneficiaryID, limit, offset)
	if err != nil {
		h.Logger.Error("ListPayouts: service error", "error", err, "beneficiary_id", beneficiaryID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payouts": payouts,
		"count":   len(payouts),
	})
}
