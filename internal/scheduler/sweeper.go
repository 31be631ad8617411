package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/referralkit/commission-ledger/internal/core/events"
	"github.com/referralkit/commission-ledger/internal/earning"
)

// LedgerRepository is the slice of the earning repository the sweeper needs.
type LedgerRepository interface {
	SweepMature(now time.Time) (int64, []earning.BeneficiaryCount, error)
}

// Sweeper matures pending earnings whose hold window has elapsed. The whole
// sweep is one conditional bulk update in the repository, so overlapping runs
// across instances approve each line exactly once.
type Sweeper struct {
	repo     LedgerRepository
	eventBus *events.EventBus
	logger   *slog.Logger
}

func NewSweeper(repo LedgerRepository, eventBus *events.EventBus, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Sweep approves every eligible pending earning as of now and returns how
// many matured. Re-running immediately afterwards matures zero lines.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	started := time.Now()

	count, beneficiaries, err := s.repo.SweepMature(now)
	if err != nil {
		s.logger.Error("hold-period sweep failed", "error", err)
		return 0, err
	}

	if count == 0 {
		s.logger.Debug("hold-period sweep matured nothing", "as_of", now)
		return 0, nil
	}

	// summary refreshes ride the event bus; a lost event only delays a
	// recomputation that the next read performs anyway
	for _, b := range beneficiaries {
		s.eventBus.Publish(ctx, events.NewEarningsMaturedEvent(b.BeneficiaryID, b.Count))
	}

	s.logger.Info("hold-period sweep complete",
		"as_of", now,
		"matured", count,
		"beneficiaries", len(beneficiaries),
		"duration_ms", time.Since(started).Milliseconds())

	return count, nil
}
