package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Commission    CommissionConfig    `mapstructure:"commission"`
	Payout        PayoutConfig        `mapstructure:"payout"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	APIKey            string        `mapstructure:"api_key"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

// RedisConfig backs the optional 24h event-id short-circuit cache. The
// durable idempotency record is the ground truth; redis only saves a round
// trip on hot replays, so an empty Addr disables it entirely.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	EventTTL time.Duration `mapstructure:"event_ttl"`
}

// CommissionConfig is the rate-configuration boundary of the engine. Rates
// are basis points so commission math stays in exact integer arithmetic.
type CommissionConfig struct {
	PlanRatesBps        map[string]int64 `mapstructure:"plan_rates_bps"`
	SubAffiliateRateBps int64            `mapstructure:"sub_affiliate_rate_bps"`
	HoldPeriodDays      int              `mapstructure:"hold_period_days"`
}

type PayoutConfig struct {
	// MinimumAmounts is keyed by ISO currency code, values in minor units.
	MinimumAmounts map[string]int64     `mapstructure:"minimum_amounts"`
	Fees           map[string]FeeConfig `mapstructure:"fees"`
	DispatchURL    string               `mapstructure:"dispatch_url"`
	CallbackURL    string               `mapstructure:"callback_url"`
	DispatchAPIKey string               `mapstructure:"dispatch_api_key"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	MaxWorkers     int                  `mapstructure:"max_workers"`
	JobQueueSize   int                  `mapstructure:"job_queue_size"`
}

// FeeConfig is one payout-method entry of the fee schedule:
// fee = flat + floor(amount * percent_bps / 10000).
type FeeConfig struct {
	Flat       int64 `mapstructure:"flat"`
	PercentBps int64 `mapstructure:"percent_bps"`
}

type SchedulerConfig struct {
	SweepSchedule string `mapstructure:"sweep_schedule"`
	BatchLogEvery int    `mapstructure:"batch_log_every"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- ENV LOADING -----------------

func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("SERVER_ALLOWED_ORIGINS", "*"),
			APIKey:            getEnv("SERVER_API_KEY", ""),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
			WriteTimeout:      15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Source:          getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			EventTTL: 24 * time.Hour,
		},
		Commission: CommissionConfig{
			PlanRatesBps: map[string]int64{
				"starter": 500,
				"pro":     800,
				"agency":  1000,
			},
			SubAffiliateRateBps: 1000,
			HoldPeriodDays:      getEnvAsInt("COMMISSION_HOLD_DAYS", 30),
		},
		Payout: PayoutConfig{
			MinimumAmounts: map[string]int64{
				"USD": 5000,
				"EUR": 5000,
			},
			Fees: map[string]FeeConfig{
				"bank_transfer": {Flat: 100, PercentBps: 0},
				"paypal":        {Flat: 30, PercentBps: 290},
			},
			DispatchURL:    getEnv("PAYOUT_DISPATCH_URL", ""),
			CallbackURL:    getEnv("PAYOUT_CALLBACK_URL", ""),
			DispatchAPIKey: getEnv("PAYOUT_DISPATCH_API_KEY", ""),
			Timeout:        30 * time.Second,
			MaxWorkers:     getEnvAsInt("PAYOUT_MAX_WORKERS", 5),
			JobQueueSize:   getEnvAsInt("PAYOUT_JOB_QUEUE_SIZE", 100),
		},
		Scheduler: SchedulerConfig{
			SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 15m"),
			BatchLogEvery: 500,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Commission.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("commission config: %v", err))
	}

	if err := c.Payout.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payout config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *CommissionConfig) Validate() error {
	if len(c.PlanRatesBps) == 0 {
		return errors.New("plan_rates_bps must define at least one plan")
	}
	for plan, bps := range c.PlanRatesBps {
		if bps < 0 || bps > 10000 {
			return fmt.Errorf("plan %s rate %d bps out of range [0, 10000]", plan, bps)
		}
	}
	if c.SubAffiliateRateBps < 0 || c.SubAffiliateRateBps > 10000 {
		return fmt.Errorf("sub_affiliate_rate_bps %d out of range [0, 10000]", c.SubAffiliateRateBps)
	}
	if c.HoldPeriodDays < 0 {
		return errors.New("hold_period_days cannot be negative")
	}
	return nil
}

func (c *PayoutConfig) Validate() error {
	for currency, min := range c.MinimumAmounts {
		if len(currency) != 3 {
			return fmt.Errorf("minimum_amounts key %q is not an ISO currency code", currency)
		}
		if min < 0 {
			return fmt.Errorf("minimum payout for %s cannot be negative", currency)
		}
	}
	for method, fee := range c.Fees {
		if fee.Flat < 0 || fee.PercentBps < 0 || fee.PercentBps > 10000 {
			return fmt.Errorf("fee schedule for method %s is invalid", method)
		}
	}
	return nil
}
