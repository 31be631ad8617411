package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/referralkit/commission-ledger/internal/core/events"
	earningPostgres "github.com/referralkit/commission-ledger/internal/earning/postgres"
	"github.com/referralkit/commission-ledger/internal/scheduler"
	"github.com/referralkit/commission-ledger/pkg/logger"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Start the hold-period scheduler",
	Long:  `Run the recurring sweep that matures pending earnings whose hold window has elapsed`,
	Run: func(cmd *cobra.Command, args []string) {
		startScheduler()
	},
}

var runOnce bool

func init() {
	schedulerCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single sweep and exit")
}

func startScheduler() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"))
	log := logger.LoggerWrapper()

	db, err := sqlx.Connect("pgx", config.Database.Source)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		log.Error("failed to initialize gorm", "error", err)
		os.Exit(1)
	}

	eventBus := events.NewEventBus(log)
	earningRepo := earningPostgres.NewEarningRepository(gormDB)
	sweeper := scheduler.NewSweeper(earningRepo, eventBus, log)

	if runOnce {
		if _, err := sweeper.Sweep(context.Background(), time.Now()); err != nil {
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	_, err = c.AddFunc(config.Scheduler.SweepSchedule, func() {
		// each run is independently conditional, so an overlapping or missed
		// run never double-approves
		if _, err := sweeper.Sweep(context.Background(), time.Now()); err != nil {
			log.Error("scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		log.Error("invalid sweep schedule", "error", err, "schedule", config.Scheduler.SweepSchedule)
		os.Exit(1)
	}

	c.Start()
	log.Info("hold-period scheduler started", "schedule", config.Scheduler.SweepSchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("received signal, shutting down scheduler", "signal", sig)

	ctx := c.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		log.Warn("shutdown timeout reached, forcing exit")
	}
	log.Info("scheduler stopped")
}
