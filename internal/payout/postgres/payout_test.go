package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	errors "github.com/referralkit/commission-ledger/internal"
	earningDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/earning"
	payoutDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/payout"
	"github.com/referralkit/commission-ledger/internal/earning"
	"github.com/referralkit/commission-ledger/internal/payout"
)

func TestPayoutRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "PayoutRepository Suite")
}

var _ = Describe("PayoutRepository", func() {
	var (
		db   *gorm.DB
		repo *PayoutRepository
		now  time.Time
	)

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&earningDatamodel.Earning{}, &payoutDatamodel.Payout{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewPayoutRepository(db)
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		err = sqlDB.Close()
		Expect(err).NotTo(HaveOccurred())
	})

	seedEarning := func(mutate func(*earningDatamodel.Earning)) *earningDatamodel.Earning {
		completed := now.AddDate(0, 0, -31)
		eligible := completed.AddDate(0, 0, 30)
		e := &earningDatamodel.Earning{
			BeneficiaryID:       7,
			CounterpartyUserID:  42,
			BillingSubjectRef:   "sub_001",
			Source:              "purchase",
			TierLevel:           1,
			GrossAmount:         10000,
			CommissionRateBps:   800,
			CommissionAmount:    500,
			Currency:            "USD",
			Status:              earning.StatusApproved,
			PaymentCompletedAt:  &completed,
			HoldPolicy:          "timed",
			HoldPeriodDays:      30,
			EligibleForPayoutAt: &eligible,
		}
		if mutate != nil {
			mutate(e)
		}
		Expect(db.Create(e).Error).NotTo(HaveOccurred())
		return e
	}

	newPayout := func(amount int64, count int) *payout.Payout {
		return &payout.Payout{
			BeneficiaryID:         7,
			DestinationAccountRef: "acct_123",
			Method:                "bank_transfer",
			Amount:                amount,
			FeeFlat:               100,
			FeeTotal:              100,
			NetAmount:             amount - 100,
			Currency:              "USD",
			Status:                payout.StatusPending,
			EarningsCount:         count,
			RequestedAt:           now,
		}
	}

	Describe("EligibleEarnings", func() {
		It("returns only approved, unlinked, non-gifted, matured lines in completion order", func() {
			older := seedEarning(func(e *earningDatamodel.Earning) {
				completed := now.AddDate(0, 0, -60)
				eligible := completed.AddDate(0, 0, 30)
				e.PaymentCompletedAt = &completed
				e.EligibleForPayoutAt = &eligible
			})
			newer := seedEarning(nil)
			seedEarning(func(e *earningDatamodel.Earning) { e.Status = earning.StatusPending })
			seedEarning(func(e *earningDatamodel.Earning) { e.IsGifted = true })
			seedEarning(func(e *earningDatamodel.Earning) { e.Currency = "EUR" })
			linked := int64(999)
			seedEarning(func(e *earningDatamodel.Earning) { e.PayoutID = &linked })
			seedEarning(func(e *earningDatamodel.Earning) {
				eligible := now.AddDate(0, 0, 1)
				e.EligibleForPayoutAt = &eligible
			})

			rows, err := repo.EligibleEarnings(7, "USD", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].ID).To(Equal(older.ID))
			Expect(rows[1].ID).To(Equal(newer.ID))
		})
	})

	Describe("CreateWithLinks", func() {
		It("creates the payout and claims the earnings atomically", func() {
			e1 := seedEarning(nil)
			e2 := seedEarning(func(e *earningDatamodel.Earning) { e.CommissionAmount = 300 })

			p := newPayout(800, 2)
			err := repo.CreateWithLinks(p, []int64{e1.ID, e2.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.ID).NotTo(BeZero())

			var linked []earningDatamodel.Earning
			Expect(db.Where("payout_id = ?", p.ID).Find(&linked).Error).NotTo(HaveOccurred())
			Expect(linked).To(HaveLen(2))
		})

		It("rolls the payout back when a claimed earning was taken concurrently", func() {
			e1 := seedEarning(nil)
			claimed := int64(555)
			e2 := seedEarning(func(e *earningDatamodel.Earning) { e.PayoutID = &claimed })

			p := newPayout(800, 2)
			err := repo.CreateWithLinks(p, []int64{e1.ID, e2.ID})
			Expect(err).To(Equal(errors.ErrEligiblePoolChanged))

			var payoutCount int64
			Expect(db.Model(&payoutDatamodel.Payout{}).Count(&payoutCount).Error).NotTo(HaveOccurred())
			Expect(payoutCount).To(BeZero())

			var untouched earningDatamodel.Earning
			Expect(db.First(&untouched, e1.ID).Error).NotTo(HaveOccurred())
			Expect(untouched.PayoutID).To(BeNil())
		})
	})

	Describe("ApplyOutcome", func() {
		var (
			p  *payout.Payout
			e1 *earningDatamodel.Earning
		)

		BeforeEach(func() {
			e1 = seedEarning(nil)
			p = newPayout(500, 1)
			Expect(repo.CreateWithLinks(p, []int64{e1.ID})).NotTo(HaveOccurred())
		})

		ref := func(s string) *string { return &s }

		It("marks the linked earnings paid when the payout is paid", func() {
			result, err := repo.ApplyOutcome(p.ID, payout.StatusPaid, ref("tr_001"), nil, nil, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Applied).To(BeTrue())
			Expect(result.EarningsPaid).To(Equal(int64(1)))

			got, err := repo.GetByID(p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(payout.StatusPaid))
			Expect(*got.ProviderRef).To(Equal("tr_001"))
			Expect(got.PaidAt).NotTo(BeNil())

			var e earningDatamodel.Earning
			Expect(db.First(&e, e1.ID).Error).NotTo(HaveOccurred())
			Expect(e.Status).To(Equal(earning.StatusPaid))
			Expect(e.PaidAt).NotTo(BeNil())
		})

		It("releases the linked earnings back to the pool on failure", func() {
			result, err := repo.ApplyOutcome(p.ID, payout.StatusFailed, nil, ref("insufficient_rails"), ref("account closed"), now)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Applied).To(BeTrue())
			Expect(result.EarningsReleased).To(Equal(int64(1)))

			got, err := repo.GetByID(p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(payout.StatusFailed))
			Expect(*got.FailureCode).To(Equal("insufficient_rails"))

			// the earning stays approved and unlinked, ready for the next payout
			var e earningDatamodel.Earning
			Expect(db.First(&e, e1.ID).Error).NotTo(HaveOccurred())
			Expect(e.Status).To(Equal(earning.StatusApproved))
			Expect(e.PayoutID).To(BeNil())
		})

		It("ignores a stale processing outcome after the payout is paid", func() {
			_, err := repo.ApplyOutcome(p.ID, payout.StatusPaid, ref("tr_001"), nil, nil, now)
			Expect(err).NotTo(HaveOccurred())

			result, err := repo.ApplyOutcome(p.ID, payout.StatusProcessing, ref("tr_001"), nil, nil, now.Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Applied).To(BeFalse())
			Expect(result.EarningsPaid).To(BeZero())

			got, _ := repo.GetByID(p.ID)
			Expect(got.Status).To(Equal(payout.StatusPaid))
		})

		It("ignores a duplicated paid outcome", func() {
			result, err := repo.ApplyOutcome(p.ID, payout.StatusPaid, ref("tr_001"), nil, nil, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Applied).To(BeTrue())

			result, err = repo.ApplyOutcome(p.ID, payout.StatusPaid, ref("tr_001"), nil, nil, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Applied).To(BeFalse())
		})

		It("steps through processing and in_transit before paid", func() {
			result, err := repo.ApplyOutcome(p.ID, payout.StatusProcessing, nil, nil, nil, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Applied).To(BeTrue())

			result, err = repo.ApplyOutcome(p.ID, payout.StatusInTransit, ref("tr_001"), nil, nil, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Applied).To(BeTrue())

			result, err = repo.ApplyOutcome(p.ID, payout.StatusPaid, ref("tr_001"), nil, nil, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Applied).To(BeTrue())

			got, _ := repo.GetByID(p.ID)
			Expect(got.ProcessedAt).NotTo(BeNil())
			Expect(got.PaidAt).NotTo(BeNil())
		})
	})

	Describe("ListByBeneficiary", func() {
		It("orders history newest first", func() {
			p1 := newPayout(500, 1)
			p1.RequestedAt = now.Add(-time.Hour)
			Expect(db.Create(payout.ToDataModel(p1)).Error).NotTo(HaveOccurred())
			p2 := newPayout(300, 1)
			Expect(db.Create(payout.ToDataModel(p2)).Error).NotTo(HaveOccurred())

			rows, err := repo.ListByBeneficiary(7, 50, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].Amount).To(Equal(int64(300)))
			Expect(rows[1].Amount).To(Equal(int64(500)))
		})
	})
})
