package commission_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/commission"
)

func TestCommissionEngine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Commission Engine Suite")
}

var _ = Describe("Engine", func() {
	var (
		engine *commission.Engine
		logger *slog.Logger
		now    time.Time
	)

	rates := map[string]int64{
		"starter": 500,
		"pro":     800,
		"agency":  1000,
	}

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		engine = commission.NewEngine(rates, 1000, commission.TimedHold(30), logger)
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	fact := func(chain ...int64) commission.BillingFact {
		return commission.BillingFact{
			SubscriptionRef:    "sub_001",
			ExternalPaymentID:  "pay_001",
			CounterpartyUserID: 42,
			GrossAmount:        10000,
			Currency:           "USD",
			Plan:               "pro",
			BillingReason:      commission.BillingReasonFirst,
			BeneficiaryChain:   chain,
		}
	}

	Describe("ComputeEarnings", func() {
		Context("with a single-tier chain", func() {
			It("computes tier 1 as a share of gross", func() {
				drafts, err := engine.ComputeEarnings(fact(7), now)

				Expect(err).ToNot(HaveOccurred())
				Expect(drafts).To(HaveLen(1))
				Expect(drafts[0].BeneficiaryID).To(Equal(int64(7)))
				Expect(drafts[0].TierLevel).To(Equal(1))
				Expect(drafts[0].CommissionRateBps).To(Equal(int64(800)))
				Expect(drafts[0].CommissionAmount).To(Equal(int64(800)))
				Expect(drafts[0].GrossAmount).To(Equal(int64(10000)))
				Expect(drafts[0].Source).To(Equal(commission.SourcePurchase))
			})

			It("floors fractional minor units", func() {
				f := fact(7)
				f.GrossAmount = 999
				f.Plan = "starter"

				drafts, err := engine.ComputeEarnings(f, now)

				Expect(err).ToNot(HaveOccurred())
				// 999 * 500 / 10000 = 49.95, floored
				Expect(drafts[0].CommissionAmount).To(Equal(int64(49)))
			})
		})

		Context("with a two-tier chain", func() {
			It("bases tier 2 on tier 1's commission, not on gross", func() {
				drafts, err := engine.ComputeEarnings(fact(7, 8), now)

				Expect(err).ToNot(HaveOccurred())
				Expect(drafts).To(HaveLen(2))

				Expect(drafts[0].CommissionAmount).To(Equal(int64(800)))
				Expect(drafts[1].BeneficiaryID).To(Equal(int64(8)))
				Expect(drafts[1].TierLevel).To(Equal(2))
				Expect(drafts[1].CommissionRateBps).To(Equal(int64(1000)))
				// 10% of 800, not 10% of 10000
				Expect(drafts[1].CommissionAmount).To(Equal(int64(80)))
			})
		})

		Context("with a gifted subscription", func() {
			It("produces no earnings regardless of chain", func() {
				f := fact(7, 8)
				f.IsGifted = true

				drafts, err := engine.ComputeEarnings(f, now)

				Expect(err).ToNot(HaveOccurred())
				Expect(drafts).To(BeEmpty())
			})
		})

		Context("with no beneficiary chain", func() {
			It("produces no earnings", func() {
				drafts, err := engine.ComputeEarnings(fact(), now)

				Expect(err).ToNot(HaveOccurred())
				Expect(drafts).To(BeEmpty())
			})
		})

		Context("with an unknown plan", func() {
			It("fails with a configuration error instead of defaulting to zero", func() {
				f := fact(7)
				f.Plan = "enterprise"

				drafts, err := engine.ComputeEarnings(f, now)

				Expect(drafts).To(BeNil())
				appErr, ok := errors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(errors.ErrorTypeConfig))
				Expect(appErr.Code).To(Equal(errors.ErrCodeMissingPlanRate))
			})
		})

		Context("with a non-positive gross amount", func() {
			It("rejects the fact", func() {
				f := fact(7)
				f.GrossAmount = 0

				_, err := engine.ComputeEarnings(f, now)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("for a renewal", func() {
			It("labels the lines as renewal and carries the origin reference", func() {
				origin := int64(555)
				f := fact(7)
				f.BillingReason = commission.BillingReasonRenewal
				f.OriginEarningID = &origin

				drafts, err := engine.ComputeEarnings(f, now)

				Expect(err).ToNot(HaveOccurred())
				Expect(drafts[0].Source).To(Equal(commission.SourceRenewal))
				Expect(drafts[0].OriginEarningID).To(pointTo(origin))
			})
		})

		It("derives the eligibility timestamp from the hold policy", func() {
			drafts, err := engine.ComputeEarnings(fact(7), now)

			Expect(err).ToNot(HaveOccurred())
			Expect(drafts[0].PaymentCompletedAt).To(Equal(now))
			Expect(drafts[0].EligibleForPayoutAt).To(Equal(now.AddDate(0, 0, 30)))
		})
	})

	Describe("HoldPolicy", func() {
		It("waived hold is eligible immediately", func() {
			p := commission.WaivedHold()
			Expect(p.EligibleAt(now)).To(Equal(now))
		})

		It("timed hold adds the configured days", func() {
			p := commission.TimedHold(30)
			Expect(p.EligibleAt(now)).To(Equal(now.AddDate(0, 0, 30)))
		})
	})
})

// pointTo matches a *int64 against an expected value.
func pointTo(expected int64) OmegaMatcher {
	return WithTransform(func(p *int64) int64 {
		if p == nil {
			return -1
		}
		return *p
	}, Equal(expected))
}
