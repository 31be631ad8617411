package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	payoutPostgres "github.com/referralkit/commission-ledger/internal/payout/postgres"
	"github.com/referralkit/commission-ledger/internal/payoutgateway"
	"github.com/referralkit/commission-ledger/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background worker pools",
	Long:  `Start and manage worker pools, like the payout dispatch resubmitter`,
}

var dispatchWorkerCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Start the payout dispatch worker",
	Long: `Resubmit pending payouts whose dispatch never reached the payment rails.
A payout stays pending until the rails acknowledge it, so this worker
periodically sweeps the stale pending backlog back into the dispatch queue.`,
	Run: func(cmd *cobra.Command, args []string) {
		startDispatchWorker()
	},
}

var (
	dispatchInterval  time.Duration
	dispatchMinAge    time.Duration
	dispatchBatchSize int
)

func startDispatchWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"))
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize gorm: %v\n", err)
		os.Exit(1)
	}

	repo := payoutPostgres.NewPayoutRepository(gormDB)
	gateway := payoutgateway.NewClient(config.Payout, log)

	log.Info("dispatch worker started",
		"interval", dispatchInterval,
		"min_age", dispatchMinAge,
		"batch_size", dispatchBatchSize)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	resubmit := func() {
		cutoff := time.Now().Add(-dispatchMinAge)
		stale, err := repo.ListStalePending(cutoff, dispatchBatchSize)
		if err != nil {
			log.Error("failed to list stale pending payouts", "error", err)
			return
		}
		if len(stale) == 0 {
			log.Debug("no stale pending payouts")
			return
		}

		ctx := context.Background()
		for _, p := range stale {
			if err := gateway.SubmitPayout(ctx, p); err != nil {
				// queue is full; the rest of the batch would not fit either
				log.Warn("resubmission stopped, dispatch queue full",
					"payout_id", p.ID, "remaining", len(stale))
				return
			}
			log.Info("stale payout resubmitted", "payout_id", p.ID, "requested_at", p.RequestedAt)
		}
	}

	resubmit()

	for {
		select {
		case <-ticker.C:
			resubmit()
		case sig := <-sigChan:
			log.Info("received signal, shutting down dispatch worker", "signal", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			shutdownDone := make(chan struct{})
			go func() {
				gateway.Shutdown()
				close(shutdownDone)
			}()

			select {
			case <-shutdownDone:
				log.Info("dispatch worker shutdown complete")
			case <-ctx.Done():
				log.Warn("shutdown timeout reached, forcing exit")
			}
			return
		}
	}
}

func init() {
	dispatchWorkerCmd.Flags().DurationVar(&dispatchInterval, "interval", 5*time.Minute, "How often to sweep the pending backlog")
	dispatchWorkerCmd.Flags().DurationVar(&dispatchMinAge, "min-age", 10*time.Minute, "Only resubmit payouts pending at least this long")
	dispatchWorkerCmd.Flags().IntVar(&dispatchBatchSize, "batch-size", 100, "Maximum payouts resubmitted per sweep")

	workerCmd.AddCommand(dispatchWorkerCmd)
	rootCmd.AddCommand(workerCmd)
}
