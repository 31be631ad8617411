package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/internal/billing"
	billingPostgres "github.com/referralkit/commission-ledger/internal/billing/postgres"
	"github.com/referralkit/commission-ledger/internal/commission"
	"github.com/referralkit/commission-ledger/internal/core/events"
	"github.com/referralkit/commission-ledger/internal/earning"
	earningPostgres "github.com/referralkit/commission-ledger/internal/earning/postgres"
	"github.com/referralkit/commission-ledger/internal/notification"
	"github.com/referralkit/commission-ledger/internal/payout"
	payoutPostgres "github.com/referralkit/commission-ledger/internal/payout/postgres"
	"github.com/referralkit/commission-ledger/internal/payoutgateway"
	"github.com/referralkit/commission-ledger/internal/scheduler"
	"github.com/referralkit/commission-ledger/internal/transport"
	"github.com/referralkit/commission-ledger/internal/transport/rest"
	"github.com/referralkit/commission-ledger/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle billing callbacks, ledger reads and payout requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Redis    *redis.Client
	Router   *chi.Mux
	Gateway  *payoutgateway.Client
	EventBus *events.EventBus
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if deps.Gateway != nil {
			deps.Gateway.Shutdown()
		}
		if deps.Redis != nil {
			if err := deps.Redis.Close(); err != nil {
				deps.Logger.Error("redis close error", "error", err)
			}
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	var redisClient *redis.Client
	if config.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
	}

	eventBus := events.NewEventBus(log)

	// ledger core
	engine := commission.NewEngine(
		config.Commission.PlanRatesBps,
		config.Commission.SubAffiliateRateBps,
		commission.TimedHold(config.Commission.HoldPeriodDays),
		log,
	)

	earningRepo := earningPostgres.NewEarningRepository(gormDB)
	earningService := earning.NewService(earningRepo, log)
	earningHandler := earning.NewHandler(earningService, log)

	var eventCache billing.EventCache
	if redisClient != nil {
		eventCache = billing.NewRedisEventCache(redisClient, config.Redis.EventTTL)
	}

	billingRepo := billingPostgres.NewBillingRepository(gormDB)
	billingService := billing.NewService(billingRepo, earningRepo, engine, eventCache, eventBus, log)
	billingWebhook := billing.NewWebhookHandler(transport.NewBaseHandler(log), billingService, log)

	// payout batching and dispatch
	gateway := payoutgateway.NewClient(config.Payout, log)
	payoutRepo := payoutPostgres.NewPayoutRepository(gormDB)
	payoutService := payout.NewService(payoutRepo, gateway, eventBus, config.Payout, log)
	payoutHandler := payout.NewHandler(payoutService, log)
	payoutWebhook := payout.NewWebhookHandler(transport.NewBaseHandler(log), payoutService, log)

	// manual sweep trigger; the recurring run lives in the scheduler command
	sweeper := scheduler.NewSweeper(earningRepo, eventBus, log)
	sweepHandler := scheduler.NewHandler(sweeper, log)

	notifier := notification.NewEventHandler(&notification.LogNotifier{Logger: log}, log)
	notifier.RegisterEventHandlers(eventBus)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(
		router,
		rest.RouterConfig{
			AllowedOrigins: config.Server.AllowedOrigins,
			AdminAPIKey:    config.Server.APIKey,
		},
		db.DB,
		redisClient,
		billingWebhook,
		earningHandler,
		payoutHandler,
		payoutWebhook,
		sweepHandler,
		log,
	)

	return &Dependencies{
		Config:   config,
		DB:       db,
		Redis:    redisClient,
		Router:   router,
		Gateway:  gateway,
		EventBus: eventBus,
		Logger:   log,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
