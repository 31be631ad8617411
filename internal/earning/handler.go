package earning

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/transport"
)

type ServiceAPI interface {
	GetEarning(id int64) (*Earning, error)
	ListEarnings(beneficiaryID int64, filters ListFilters) ([]*Earning, error)
	EarningsSummary(beneficiaryID int64) (map[string]StatusAggregate, error)
	ApproveEarning(id int64, actor string) (*Earning, error)
	DisputeEarning(id int64, actor, reason string) (*Earning, error)
	CancelEarning(id int64, actor, reason string) (*Earning, error)
	BulkApprove(ids []int64, actor string) (*BulkResult, error)
	BulkDispute(ids []int64, actor, reason string) (*BulkResult, error)
	BulkCancel(ids []int64, actor, reason string) (*BulkResult, error)
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

// ListEarnings handles GET /api/v1/earnings?beneficiary_id=&status=&source=
func (h *Handler) ListEarnings(w http.ResponseWriter, r *http.Request) {
	beneficiaryID, err := queryInt64(r, "beneficiary_id")
	if err != nil {
		h.HandleError(w, errors.NewValidationError("beneficiary_id is required", errors.ErrCodeValidationFailed))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	filters := ListFilters{
		Status: r.URL.Query().Get("status"),
		Source: r.URL.Query().Get("source"),
		Limit:  limit,
		Offset: offset,
	}

	earnings, err := h.Service.ListEarnings(beneficiaryID, filters)
	if err != nil {
		h.Logger.Error("ListEarnings: service error", "error", err, "beneficiary_id", beneficiaryID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"earnings": earnings,
		"count":    len(earnings),
	})
}

// GetEarning handles GET /api/v1/earnings/{id}
func (h *Handler) GetEarning(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.HandleError(w, errors.NewValidationError("invalid earning id", errors.ErrCodeValidationFailed))
		return
	}

	e, err := h.Service.GetEarning(id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, e)
}

// GetSummary handles GET /api/v1/earnings/summary?beneficiary_id=
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	beneficiaryID, err := queryInt64(r, "beneficiary_id")
	if err != nil {
		h.HandleError(w, errors.NewValidationError("beneficiary_id is required", errors.ErrCodeValidationFailed))
		return
	}

	summary, err := h.Service.EarningsSummary(beneficiaryID)
	if err != nil {
		h.Logger.Error("GetSummary: service error", "error", err, "beneficiary_id", beneficiaryID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, SummaryResponse{
		BeneficiaryID: beneficiaryID,
		Statuses:      summary,
	})
}

// ApproveEarning handles PATCH /api/v1/admin/earnings/{id}/approve
func (h *Handler) ApproveEarning(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.HandleError(w, errors.NewValidationError("invalid earning id", errors.ErrCodeValidationFailed))
		return
	}

	actor := errors.ActorFromContext(r.Context())
	updated, err := h.Service.ApproveEarning(id, actor)
	if err != nil {
		h.Logger.Error("ApproveEarning: service error", "error", err, "earning_id", id, "actor", actor)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, updated)
}

// DisputeEarning handles PATCH /api/v1/admin/earnings/{id}/dispute
func (h *Handler) DisputeEarning(w http.ResponseWriter, r *http.Request) {
	h.reasonedTransition(w, r, h.Service.DisputeEarning)
}

// CancelEarning handles PATCH /api/v1/admin/earnings/{id}/cancel
func (h *Handler) CancelEarning(w http.ResponseWriter, r *http.Request) {
	h.reasonedTransition(w, r, h.Service.CancelEarning)
}

func (h *Handler) reasonedTransition(w http.ResponseWriter, r *http.Request, apply func(id int64, actor, reason string) (*Earning, error)) {
	id, err := pathID(r)
	if err != nil {
		h.HandleError(w, errors.NewValidationError("invalid earning id", errors.ErrCodeValidationFailed))
		return
	}

	var dto AdminReasonDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	actor := errors.ActorFromContext(r.Context())
	updated, err := apply(id, actor, dto.Reason)
	if err != nil {
		h.Logger.Error("earning transition: service error", "error", err, "earning_id", id, "actor", actor)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, updated)
}

// BulkApprove handles POST /api/v1/admin/earnings/bulk/approve
func (h *Handler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var dto BulkActionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	if err := dto.Validate(false); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	actor := errors.ActorFromContext(r.Context())
	result, err := h.Service.BulkApprove(dto.EarningIDs, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

// BulkDispute handles POST /api/v1/admin/earnings/bulk/dispute
func (h *Handler) BulkDispute(w http.ResponseWriter, r *http.Request) {
	h.bulkReasoned(w, r, h.Service.BulkDispute)
}

// BulkCancel handles POST /api/v1/admin/earnings/bulk/cancel
func (h *Handler) BulkCancel(w http.ResponseWriter, r *http.Request) {
	h.bulkReasoned(w, r, h.Service.BulkCancel)
}

func (h *Handler) bulkReasoned(w http.ResponseWriter, r *http.Request, apply func(ids []int64, actor, reason string) (*BulkResult, error)) {
	var dto BulkActionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	if err := dto.Validate(true); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	actor := errors.ActorFromContext(r.Context())
	result, err := apply(dto.EarningIDs, actor, dto.Reason)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func queryInt64(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
}
