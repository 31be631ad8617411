package earning_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/earning"
)

func TestEarningService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Earning Service Suite")
}

// Mock repository for testing
type mockEarningRepository struct {
	earnings map[int64]*earning.Earning
	summary  []earning.StatusAggregate
	getError error
	nextID   int64
}

func newMockEarningRepository() *mockEarningRepository {
	return &mockEarningRepository{
		earnings: make(map[int64]*earning.Earning),
		nextID:   1,
	}
}

func (m *mockEarningRepository) add(status string, gifted bool) *earning.Earning {
	e := &earning.Earning{
		ID:            m.nextID,
		BeneficiaryID: 7,
		Status:        status,
		IsGifted:      gifted,
		Currency:      "USD",
	}
	m.earnings[e.ID] = e
	m.nextID++
	return e
}

func (m *mockEarningRepository) GetByID(id int64) (*earning.Earning, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	e, ok := m.earnings[id]
	if !ok {
		return nil, errors.ErrEarningNotFound
	}
	return e, nil
}

func (m *mockEarningRepository) ListByBeneficiary(beneficiaryID int64, filters earning.ListFilters) ([]*earning.Earning, error) {
	result := make([]*earning.Earning, 0)
	for _, e := range m.earnings {
		if e.BeneficiaryID != beneficiaryID {
			continue
		}
		if filters.Status != "" && e.Status != filters.Status {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *mockEarningRepository) Summary(beneficiaryID int64) ([]earning.StatusAggregate, error) {
	return m.summary, nil
}

func (m *mockEarningRepository) ApproveIfPending(id int64, actor string, now time.Time) (bool, error) {
	e, ok := m.earnings[id]
	if !ok || e.Status != earning.StatusPending || e.IsGifted {
		return false, nil
	}
	e.Status = earning.StatusApproved
	e.ApprovedAt = &now
	e.ApprovedBy = &actor
	return true, nil
}

func (m *mockEarningRepository) DisputeIfOpen(id int64, actor, reason string, now time.Time) (bool, error) {
	e, ok := m.earnings[id]
	if !ok || (e.Status != earning.StatusPending && e.Status != earning.StatusApproved) {
		return false, nil
	}
	e.Status = earning.StatusDisputed
	e.DisputedAt = &now
	e.DisputedBy = &actor
	e.DisputeReason = &reason
	e.PayoutID = nil
	return true, nil
}

func (m *mockEarningRepository) CancelIfOpen(id int64, actor, reason string, now time.Time) (bool, error) {
	e, ok := m.earnings[id]
	if !ok || (e.Status != earning.StatusPending && e.Status != earning.StatusApproved) {
		return false, nil
	}
	e.Status = earning.StatusCancelled
	e.CancelledAt = &now
	e.CancelledBy = &actor
	e.CancelReason = &reason
	e.PayoutID = nil
	return true, nil
}

var _ = Describe("EarningService", func() {
	var (
		service *earning.Service
		repo    *mockEarningRepository
	)

	BeforeEach(func() {
		repo = newMockEarningRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = earning.NewService(repo, logger)
	})

	Describe("ApproveEarning", func() {
		It("approves a pending earning and stamps the actor", func() {
			e := repo.add(earning.StatusPending, false)

			updated, err := service.ApproveEarning(e.ID, "admin-1")

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Status).To(Equal(earning.StatusApproved))
			Expect(*updated.ApprovedBy).To(Equal("admin-1"))
		})

		It("rejects a missing actor", func() {
			e := repo.add(earning.StatusPending, false)

			_, err := service.ApproveEarning(e.ID, "")

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(errors.ErrCodeMissingActor))
		})

		It("refuses an already approved earning with a transition conflict", func() {
			e := repo.add(earning.StatusApproved, false)

			_, err := service.ApproveEarning(e.ID, "admin-1")

			Expect(err).To(Equal(errors.ErrInvalidTransition))
		})

		It("reports not-found for an unknown id", func() {
			_, err := service.ApproveEarning(99999, "admin-1")

			Expect(err).To(Equal(errors.ErrEarningNotFound))
		})

		It("never approves a gifted line", func() {
			e := repo.add(earning.StatusPending, true)

			_, err := service.ApproveEarning(e.ID, "admin-1")

			Expect(err).To(Equal(errors.ErrInvalidTransition))
			Expect(repo.earnings[e.ID].Status).To(Equal(earning.StatusPending))
		})
	})

	Describe("DisputeEarning", func() {
		It("disputes an approved earning and records the reason", func() {
			e := repo.add(earning.StatusApproved, false)

			updated, err := service.DisputeEarning(e.ID, "admin-1", "chargeback claim")

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Status).To(Equal(earning.StatusDisputed))
			Expect(*updated.DisputeReason).To(Equal("chargeback claim"))
		})

		It("requires a reason", func() {
			e := repo.add(earning.StatusApproved, false)

			_, err := service.DisputeEarning(e.ID, "admin-1", "")

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(errors.ErrCodeMissingReason))
		})

		It("never disputes a paid earning", func() {
			e := repo.add(earning.StatusPaid, false)

			_, err := service.DisputeEarning(e.ID, "admin-1", "too late")

			Expect(err).To(Equal(errors.ErrInvalidTransition))
			Expect(repo.earnings[e.ID].Status).To(Equal(earning.StatusPaid))
		})
	})

	Describe("CancelEarning", func() {
		It("cancels a pending earning", func() {
			e := repo.add(earning.StatusPending, false)

			updated, err := service.CancelEarning(e.ID, "admin-1", "fraud signal")

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Status).To(Equal(earning.StatusCancelled))
		})

		It("never cancels a cancelled earning twice", func() {
			e := repo.add(earning.StatusCancelled, false)

			_, err := service.CancelEarning(e.ID, "admin-1", "again")

			Expect(err).To(Equal(errors.ErrInvalidTransition))
		})
	})

	Describe("EarningsSummary", func() {
		It("zero-fills statuses with no rows", func() {
			repo.summary = []earning.StatusAggregate{
				{Status: earning.StatusApproved, Count: 2, Total: 1300},
			}

			summary, err := service.EarningsSummary(7)

			Expect(err).ToNot(HaveOccurred())
			Expect(summary).To(HaveLen(5))
			Expect(summary[earning.StatusApproved].Total).To(Equal(int64(1300)))
			Expect(summary[earning.StatusPending].Count).To(Equal(int64(0)))
			Expect(summary[earning.StatusPaid].Count).To(Equal(int64(0)))
		})
	})

	Describe("Bulk transitions", func() {
		It("partitions ids into updated and skipped", func() {
			pending := repo.add(earning.StatusPending, false)
			paid := repo.add(earning.StatusPaid, false)
			approved := repo.add(earning.StatusApproved, false)

			result, err := service.BulkApprove([]int64{pending.ID, paid.ID, approved.ID}, "admin-1")

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Updated).To(Equal([]int64{pending.ID}))
			Expect(result.Skipped).To(ConsistOf(paid.ID, approved.ID))
		})

		It("bulk cancel requires a reason", func() {
			e := repo.add(earning.StatusPending, false)

			_, err := service.BulkCancel([]int64{e.ID}, "admin-1", "")

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(errors.ErrCodeMissingReason))
		})
	})
})
