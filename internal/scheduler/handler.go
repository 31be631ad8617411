package scheduler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/referralkit/commission-ledger/internal/transport"
)

// Handler exposes the manual sweep trigger for operators who do not want to
// wait for the next scheduled run.
type Handler struct {
	transport.BaseHandler
	sweeper *Sweeper
	logger  *slog.Logger
}

func NewHandler(sweeper *Sweeper, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.BaseHandler{Logger: logger},
		sweeper:     sweeper,
		logger:      logger,
	}
}

// TriggerSweep handles POST /api/v1/admin/sweep
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	matured, err := h.sweeper.Sweep(r.Context(), time.Now())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "swept",
		"matured": matured,
	})
}
