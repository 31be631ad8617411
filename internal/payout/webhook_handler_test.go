package payout_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/core/events"
	"github.com/referralkit/commission-ledger/internal/payout"
	"github.com/referralkit/commission-ledger/internal/transport"
)

var _ = Describe("PayoutWebhookHandler", func() {
	var (
		handler *payout.WebhookHandler
		repo    *mockPayoutRepository
		created *payout.Payout
		ctx     context.Context
	)

	cfg := errors.PayoutConfig{
		MinimumAmounts: map[string]int64{"USD": 500},
		Fees:           map[string]errors.FeeConfig{"bank_transfer": {Flat: 100}},
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockPayoutRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service := payout.NewService(repo, nil, events.NewEventBus(logger), cfg, logger)
		handler = payout.NewWebhookHandler(transport.NewBaseHandler(logger), service, logger)

		repo.addEligible(800)
		var err error
		created, err = service.RequestPayout(ctx, 7, "USD", "bank_transfer", "acct_123", 0)
		Expect(err).ToNot(HaveOccurred())
	})

	post := func(body map[string]interface{}) *httptest.ResponseRecorder {
		payload, err := json.Marshal(body)
		Expect(err).ToNot(HaveOccurred())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts/callback", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.HandleDispatchOutcome(rec, req)
		return rec
	}

	It("answers 200 with applied=true for a live outcome", func() {
		repo.outcomeResult = &payout.OutcomeResult{Applied: true, EarningsPaid: 1}

		rec := post(map[string]interface{}{
			"payout_id":    created.ID,
			"status":       payout.StatusPaid,
			"provider_ref": "tr_001",
		})

		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["applied"]).To(BeTrue())
		Expect(resp["payout_status"]).To(Equal(payout.StatusPaid))
	})

	It("answers 200 with applied=false for a stale outcome so the rails stop redelivering", func() {
		repo.outcomeResult = &payout.OutcomeResult{Applied: false}

		rec := post(map[string]interface{}{
			"payout_id": created.ID,
			"status":    payout.StatusProcessing,
		})

		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["applied"]).To(BeFalse())
	})

	It("answers 400 for an unknown status", func() {
		rec := post(map[string]interface{}{
			"payout_id": created.ID,
			"status":    "teleported",
		})

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("requires a failure code on a failed outcome", func() {
		rec := post(map[string]interface{}{
			"payout_id": created.ID,
			"status":    payout.StatusFailed,
		})

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})
