package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/referralkit/commission-ledger/internal/core/events"
	"github.com/referralkit/commission-ledger/internal/earning"
	"github.com/referralkit/commission-ledger/internal/scheduler"
)

func TestSweeper(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sweeper Suite")
}

type mockLedgerRepository struct {
	count         int64
	beneficiaries []earning.BeneficiaryCount
	err           error
	calls         int
}

func (m *mockLedgerRepository) SweepMature(now time.Time) (int64, []earning.BeneficiaryCount, error) {
	m.calls++
	if m.err != nil {
		return 0, nil, m.err
	}
	count := m.count
	beneficiaries := m.beneficiaries
	// the repository's conditional update matures each line at most once
	m.count = 0
	m.beneficiaries = nil
	return count, beneficiaries, nil
}

var _ = Describe("Sweeper", func() {
	var (
		sweeper  *scheduler.Sweeper
		repo     *mockLedgerRepository
		eventBus *events.EventBus
		matured  chan events.Event
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = &mockLedgerRepository{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		eventBus = events.NewEventBus(logger)

		matured = make(chan events.Event, 10)
		eventBus.Subscribe(events.EventTypeEarningsMatured, func(ctx context.Context, event events.Event) error {
			matured <- event
			return nil
		})

		sweeper = scheduler.NewSweeper(repo, eventBus, logger)
	})

	It("returns the matured count and notifies each beneficiary", func() {
		repo.count = 3
		repo.beneficiaries = []earning.BeneficiaryCount{
			{BeneficiaryID: 7, Count: 2},
			{BeneficiaryID: 8, Count: 1},
		}

		count, err := sweeper.Sweep(ctx, time.Now())

		Expect(err).ToNot(HaveOccurred())
		Expect(count).To(Equal(int64(3)))
		Eventually(matured).Should(Receive())
		Eventually(matured).Should(Receive())
	})

	It("publishes nothing when nothing matured", func() {
		count, err := sweeper.Sweep(ctx, time.Now())

		Expect(err).ToNot(HaveOccurred())
		Expect(count).To(BeZero())
		Consistently(matured, 50*time.Millisecond).ShouldNot(Receive())
	})

	It("matures zero lines on an immediate re-run", func() {
		repo.count = 2
		repo.beneficiaries = []earning.BeneficiaryCount{{BeneficiaryID: 7, Count: 2}}

		count, err := sweeper.Sweep(ctx, time.Now())
		Expect(err).ToNot(HaveOccurred())
		Expect(count).To(Equal(int64(2)))

		count, err = sweeper.Sweep(ctx, time.Now())
		Expect(err).ToNot(HaveOccurred())
		Expect(count).To(BeZero())
		Expect(repo.calls).To(Equal(2))
	})

	It("propagates a storage failure", func() {
		repo.err = errors.New("connection reset")

		_, err := sweeper.Sweep(ctx, time.Now())

		Expect(err).To(HaveOccurred())
	})
})
