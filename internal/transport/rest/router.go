package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-redis/redis/v8"

	"github.com/referralkit/commission-ledger/internal/billing"
	"github.com/referralkit/commission-ledger/internal/earning"
	"github.com/referralkit/commission-ledger/internal/payout"
	"github.com/referralkit/commission-ledger/internal/scheduler"
	"github.com/referralkit/commission-ledger/internal/transport/middleware"
	"github.com/referralkit/commission-ledger/internal/transport/swagger"
)

// RouterConfig carries the transport-level settings the router wires into
// its middleware chain.
type RouterConfig struct {
	AllowedOrigins string
	AdminAPIKey    string
}

func RegisterAllRoutes(
	router *chi.Mux,
	cfg RouterConfig,
	db *sql.DB,
	redisClient *redis.Client,
	billingWebhook *billing.WebhookHandler,
	earningHandler *earning.Handler,
	payoutHandler *payout.Handler,
	payoutWebhook *payout.WebhookHandler,
	sweepHandler *scheduler.Handler,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db, redisClient)

	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// OpenAPI spec and Swagger UI live at root, outside the API prefix
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// provider-facing webhooks
		if billingWebhook != nil {
			r.Post("/billing/callback", billingWebhook.HandleBillingFact)
			r.Post("/billing/reversal", billingWebhook.HandleReversal)
		}
		if payoutWebhook != nil {
			r.Post("/payouts/callback", payoutWebhook.HandleDispatchOutcome)
		}

		// beneficiary-facing ledger reads
		if earningHandler != nil {
			r.Route("/earnings", func(er chi.Router) {
				er.Get("/", earningHandler.ListEarnings)
				er.Get("/summary", earningHandler.GetSummary)
				er.Get("/{id}", earningHandler.GetEarning)
			})
		}

		if payoutHandler != nil {
			r.Route("/payouts", func(pr chi.Router) {
				pr.Post("/", payoutHandler.RequestPayout)
				pr.Get("/", payoutHandler.ListPayouts)
				pr.Get("/{id}", payoutHandler.GetPayout)
			})
		}

		// admin surface: API-key protected, every mutation audited by actor
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(middleware.RequireAPIKey(cfg.AdminAPIKey))
			ar.Use(middleware.ActorContext)

			if earningHandler != nil {
				ar.Patch("/earnings/{id}/approve", earningHandler.ApproveEarning)
				ar.Patch("/earnings/{id}/dispute", earningHandler.DisputeEarning)
				ar.Patch("/earnings/{id}/cancel", earningHandler.CancelEarning)
				ar.Post("/earnings/bulk/approve", earningHandler.BulkApprove)
				ar.Post("/earnings/bulk/dispute", earningHandler.BulkDispute)
				ar.Post("/earnings/bulk/cancel", earningHandler.BulkCancel)
			}

			if sweepHandler != nil {
				ar.Post("/sweep", sweepHandler.TriggerSweep)
			}
		})
	})
}
