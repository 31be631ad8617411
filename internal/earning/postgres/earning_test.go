package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	earningDatamodel "github.com/referralkit/commission-ledger/internal/core/datamodel/earning"
	"github.com/referralkit/commission-ledger/internal/earning"
)

func TestEarningRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "EarningRepository Suite")
}

var _ = Describe("EarningRepository", func() {
	var (
		db   *gorm.DB
		repo *EarningRepository
		now  time.Time
	)

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&earningDatamodel.Earning{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewEarningRepository(db)
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		err = sqlDB.Close()
		Expect(err).NotTo(HaveOccurred())
	})

	seed := func(mutate func(*earningDatamodel.Earning)) *earningDatamodel.Earning {
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
			CommissionAmount:    800,
			Currency:            "USD",
			Status:              earning.StatusPending,
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

	Describe("ApproveIfPending", func() {
		It("approves a pending earning exactly once", func() {
			e := seed(nil)

			ok, err := repo.ApproveIfPending(e.ID, "admin-1", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			// second approval matches zero rows
			ok, err = repo.ApproveIfPending(e.ID, "admin-2", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			got, err := repo.GetByID(e.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(earning.StatusApproved))
			Expect(*got.ApprovedBy).To(Equal("admin-1"))
		})

		It("refuses gifted lines", func() {
			e := seed(func(e *earningDatamodel.Earning) { e.IsGifted = true })

			ok, err := repo.ApproveIfPending(e.ID, "admin-1", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("DisputeIfOpen", func() {
		It("clears the payout link in the same update", func() {
			payoutID := int64(99)
			e := seed(func(e *earningDatamodel.Earning) {
				e.Status = earning.StatusApproved
				e.PayoutID = &payoutID
			})

			ok, err := repo.DisputeIfOpen(e.ID, "admin-1", "chargeback", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			got, err := repo.GetByID(e.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(earning.StatusDisputed))
			Expect(got.PayoutID).To(BeNil())
		})

		It("refuses paid lines", func() {
			e := seed(func(e *earningDatamodel.Earning) { e.Status = earning.StatusPaid })

			ok, err := repo.DisputeIfOpen(e.ID, "admin-1", "too late", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("SweepMature", func() {
		It("approves only lines whose hold window has elapsed", func() {
			matured := seed(nil)
			young := seed(func(e *earningDatamodel.Earning) {
				completed := now.AddDate(0, 0, -29)
				eligible := completed.AddDate(0, 0, 30)
				e.PaymentCompletedAt = &completed
				e.EligibleForPayoutAt = &eligible
			})

			count, beneficiaries, err := repo.SweepMature(now)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
			Expect(beneficiaries).To(HaveLen(1))
			Expect(beneficiaries[0].BeneficiaryID).To(Equal(int64(7)))
			Expect(beneficiaries[0].Count).To(Equal(int64(1)))

			got, _ := repo.GetByID(matured.ID)
			Expect(got.Status).To(Equal(earning.StatusApproved))
			Expect(*got.ApprovedBy).To(Equal("hold-period-scheduler"))

			got, _ = repo.GetByID(young.ID)
			Expect(got.Status).To(Equal(earning.StatusPending))
		})

		It("is a no-op when re-run immediately", func() {
			seed(nil)

			count, _, err := repo.SweepMature(now)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))

			count, beneficiaries, err := repo.SweepMature(now)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(0)))
			Expect(beneficiaries).To(BeEmpty())
		})

		It("skips gifted lines even when their window elapsed", func() {
			seed(func(e *earningDatamodel.Earning) { e.IsGifted = true })

			count, _, err := repo.SweepMature(now)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(0)))
		})

		It("matures a line exactly at the boundary", func() {
			seed(func(e *earningDatamodel.Earning) {
				completed := now.AddDate(0, 0, -30)
				eligible := completed.AddDate(0, 0, 30) // equals now
				e.PaymentCompletedAt = &completed
				e.EligibleForPayoutAt = &eligible
			})

			count, _, err := repo.SweepMature(now)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})
	})

	Describe("CancelOpenBySubscription", func() {
		It("cancels open lines, releases payout links, and leaves paid lines alone", func() {
			payoutID := int64(55)
			open := seed(func(e *earningDatamodel.Earning) {
				e.Status = earning.StatusApproved
				e.PayoutID = &payoutID
			})
			paid := seed(func(e *earningDatamodel.Earning) { e.Status = earning.StatusPaid })
			other := seed(func(e *earningDatamodel.Earning) { e.BillingSubjectRef = "sub_002" })

			count, err := repo.CancelOpenBySubscription("sub_001", "reversal-handler", "refund", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))

			got, _ := repo.GetByID(open.ID)
			Expect(got.Status).To(Equal(earning.StatusCancelled))
			Expect(got.PayoutID).To(BeNil())

			got, _ = repo.GetByID(paid.ID)
			Expect(got.Status).To(Equal(earning.StatusPaid))

			got, _ = repo.GetByID(other.ID)
			Expect(got.Status).To(Equal(earning.StatusPending))
		})

		It("cancels nothing on a second invocation", func() {
			seed(nil)

			count, err := repo.CancelOpenBySubscription("sub_001", "reversal-handler", "refund", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))

			count, err = repo.CancelOpenBySubscription("sub_001", "reversal-handler", "refund", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(0)))
		})
	})

	Describe("FirstPurchaseEarning", func() {
		It("finds the tier-1 purchase line", func() {
			first := seed(nil)
			seed(func(e *earningDatamodel.Earning) { e.TierLevel = 2 })
			seed(func(e *earningDatamodel.Earning) { e.Source = "renewal" })

			got, err := repo.FirstPurchaseEarning("sub_001")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.ID).To(Equal(first.ID))
		})

		It("returns nil without error when the subscription has no purchase line", func() {
			got, err := repo.FirstPurchaseEarning("sub_missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})
	})

	Describe("ListByBeneficiary and Summary", func() {
		It("filters by status and aggregates per status", func() {
			seed(nil)
			seed(func(e *earningDatamodel.Earning) { e.Status = earning.StatusApproved; e.CommissionAmount = 500 })
			seed(func(e *earningDatamodel.Earning) { e.Status = earning.StatusApproved; e.CommissionAmount = 300 })
			seed(func(e *earningDatamodel.Earning) { e.BeneficiaryID = 8 })

			list, err := repo.ListByBeneficiary(7, earning.ListFilters{Status: earning.StatusApproved, Limit: 50})
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))

			summary, err := repo.Summary(7)
			Expect(err).NotTo(HaveOccurred())

			byStatus := make(map[string]earning.StatusAggregate)
			for _, row := range summary {
				byStatus[row.Status] = row
			}
			Expect(byStatus[earning.StatusApproved].Count).To(Equal(int64(2)))
			Expect(byStatus[earning.StatusApproved].Total).To(Equal(int64(800)))
			Expect(byStatus[earning.StatusPending].Count).To(Equal(int64(1)))
		})
	})
})
