package billing_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/referralkit/commission-ledger/internal/billing"
	"github.com/referralkit/commission-ledger/internal/commission"
	"github.com/referralkit/commission-ledger/internal/core/events"
	"github.com/referralkit/commission-ledger/internal/transport"
)

var _ = Describe("BillingWebhookHandler", func() {
	var (
		handler *billing.WebhookHandler
		repo    *mockBillingRepository
		ledger  *mockLedgerRepository
	)

	rates := map[string]int64{"pro": 800}

	BeforeEach(func() {
		repo = newMockBillingRepository()
		ledger = &mockLedgerRepository{cancelled: make(map[string]int64)}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		engine := commission.NewEngine(rates, 1000, commission.TimedHold(30), logger)
		service := billing.NewService(repo, ledger, engine, nil, events.NewEventBus(logger), logger)
		handler = billing.NewWebhookHandler(transport.NewBaseHandler(logger), service, logger)
	})

	post := func(path string, body map[string]interface{}, handle http.HandlerFunc) *httptest.ResponseRecorder {
		payload, err := json.Marshal(body)
		Expect(err).ToNot(HaveOccurred())
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		handle(rec, req)
		return rec
	}

	validFact := func() map[string]interface{} {
		return map[string]interface{}{
			"event_id":             "evt_001",
			"subscription_ref":     "sub_001",
			"external_payment_id":  "pay_001",
			"counterparty_user_id": 42,
			"gross_amount":         10000,
			"currency":             "USD",
			"plan":                 "pro",
			"billing_reason":       "first",
			"beneficiary_chain":    []int64{7},
		}
	}

	Describe("HandleBillingFact", func() {
		It("answers 200 with the created earning ids", func() {
			rec := post("/api/v1/billing/callback", validFact(), handler.HandleBillingFact)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("processed"))
			Expect(resp["earning_ids"]).To(HaveLen(1))
		})

		It("answers 200 with duplicate=true on redelivery", func() {
			rec := post("/api/v1/billing/callback", validFact(), handler.HandleBillingFact)
			Expect(rec.Code).To(Equal(http.StatusOK))

			redelivery := validFact()
			redelivery["event_id"] = "evt_002"
			rec = post("/api/v1/billing/callback", redelivery, handler.HandleBillingFact)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["duplicate"]).To(BeTrue())
			Expect(repo.created).To(HaveLen(1))
		})

		It("answers 400 for a fact missing required fields", func() {
			bad := validFact()
			delete(bad, "external_payment_id")

			rec := post("/api/v1/billing/callback", bad, handler.HandleBillingFact)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("answers 500 for an unknown plan so the provider redelivers", func() {
			bad := validFact()
			bad["plan"] = "enterprise"

			rec := post("/api/v1/billing/callback", bad, handler.HandleBillingFact)

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			// the dedup key was not consumed; the retry will succeed
			Expect(repo.calls).To(BeZero())
		})
	})

	Describe("HandleReversal", func() {
		It("answers 200 with the cancelled count", func() {
			ledger.cancelled["sub_001"] = 2

			rec := post("/api/v1/billing/reversal", map[string]interface{}{
				"subscription_ref": "sub_001",
				"reason":           "refund",
			}, handler.HandleReversal)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["cancelled"]).To(BeEquivalentTo(2))
		})

		It("requires a reason", func() {
			rec := post("/api/v1/billing/reversal", map[string]interface{}{
				"subscription_ref": "sub_001",
			}, handler.HandleReversal)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
