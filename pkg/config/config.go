package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else; the rest of
// the system treats these values as validated constants.
type Config struct {
	// Server
	Env        string // development, staging, production
	HealthPort string

	// Logging
	LogLevel  string
	LogFormat string

	// Data layout (flat per-day files)
	Paths PathsConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Risk limits
	Risk RiskConfig

	// Position sizing
	Sizing SizingConfig

	// Signal computation
	Signal SignalConfig

	// Execution
	Execution ExecutionConfig

	// Failure notifications
	WebhookURL string

	// Cap on outbound HTTP requests per second (webhook and any
	// future broker transport share one client).
	OutboundRateLimitRPS int
}

// PathsConfig holds the on-disk layout for durable state.
type PathsConfig struct {
	DataDir        string
	PricesDir      string
	SnapshotsDir   string
	ExecutionsDir  string
	AuditDir       string
	StatusFile     string
	KillSwitchFile string
}

// SchedulerConfig holds scheduler loop and job retry settings.
type SchedulerConfig struct {
	TickInterval   time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration

	// Job trigger specs: "HH:MM" daily, or "DAY HH:MM" weekly, UTC.
	SnapshotSchedule   string
	ExecutionsSchedule string
	RebalanceSchedule  string
}

// RiskConfig holds the pre-trade risk limits.
type RiskConfig struct {
	MaxPositionPct    float64
	MaxTurnoverPct    float64
	ExitRankThreshold int
}

// SizingConfig holds position sizing parameters.
type SizingConfig struct {
	TopN              int
	MinTradeThreshold float64
	MinTradeShares    int
	MinTradeValue     float64
}

// SignalConfig holds the momentum signal parameters.
type SignalConfig struct {
	Universe       []string
	LookbackMonths int
	SkipMonths     int
}

// ExecutionConfig holds order execution parameters.
type ExecutionConfig struct {
	Mode              string // dry_run or live
	ConfirmToken      string // must match the live confirmation literal for scheduled live runs
	OrderType         string // MKT, MOC or LMT
	LimitOffsetBps    int
	SubmitRetries     int
	SubmitRetryDelay  time.Duration
	MaxSnapshotAge    time.Duration
	StaleSnapshotWarn time.Duration
	PaperCash         float64 // starting cash for the paper gateway
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		Env:        getEnv("ENV", "development"),
		HealthPort: getEnv("HEALTH_PORT", "8080"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		Paths: PathsConfig{
			DataDir:        dataDir,
			PricesDir:      getEnv("PRICES_DIR", filepath.Join(dataDir, "prices")),
			SnapshotsDir:   getEnv("SNAPSHOTS_DIR", filepath.Join(dataDir, "snapshots")),
			ExecutionsDir:  getEnv("EXECUTIONS_DIR", filepath.Join(dataDir, "executions")),
			AuditDir:       getEnv("AUDIT_DIR", filepath.Join(dataDir, "audit")),
			StatusFile:     getEnv("STATUS_FILE", filepath.Join(dataDir, "scheduler_status.json")),
			KillSwitchFile: getEnv("KILL_SWITCH_FILE", filepath.Join(dataDir, ".kill_switch")),
		},

		Scheduler: SchedulerConfig{
			TickInterval:       getEnvAsDuration("SCHEDULER_TICK_INTERVAL", "15s"),
			MaxRetries:         getEnvAsInt("JOB_MAX_RETRIES", 3),
			RetryBaseDelay:     getEnvAsDuration("JOB_RETRY_BASE_DELAY", "1m"),
			SnapshotSchedule:   getEnv("SNAPSHOT_SCHEDULE", "16:35"),
			ExecutionsSchedule: getEnv("EXECUTIONS_SCHEDULE", "16:45"),
			RebalanceSchedule:  getEnv("REBALANCE_SCHEDULE", "MON 08:00"),
		},

		Risk: RiskConfig{
			MaxPositionPct:    getEnvAsFloat("MAX_POSITION_PCT", 0.25),
			MaxTurnoverPct:    getEnvAsFloat("MAX_TURNOVER_PCT", 0.50),
			ExitRankThreshold: getEnvAsInt("EXIT_RANK_THRESHOLD", 5),
		},

		Sizing: SizingConfig{
			TopN:              getEnvAsInt("TOP_N", 3),
			MinTradeThreshold: getEnvAsFloat("MIN_TRADE_THRESHOLD", 0.02),
			MinTradeShares:    getEnvAsInt("MIN_TRADE_SHARES", 1),
			MinTradeValue:     getEnvAsFloat("MIN_TRADE_VALUE", 100),
		},

		Signal: SignalConfig{
			Universe:       getEnvAsList("UNIVERSE", "SXLB,SXLE,SXLF,SXLI,SXLK,SXLP,SXLU,SXLV,SXLY"),
			LookbackMonths: getEnvAsInt("MOMENTUM_LOOKBACK_MONTHS", 12),
			SkipMonths:     getEnvAsInt("MOMENTUM_SKIP_MONTHS", 1),
		},

		Execution: ExecutionConfig{
			Mode:              getEnv("EXECUTION_MODE", "dry_run"),
			ConfirmToken:      getEnv("EXECUTION_CONFIRM", ""),
			OrderType:         getEnv("ORDER_TYPE", "MOC"),
			LimitOffsetBps:    getEnvAsInt("LIMIT_OFFSET_BPS", 10),
			SubmitRetries:     getEnvAsInt("SUBMIT_RETRIES", 2),
			SubmitRetryDelay:  getEnvAsDuration("SUBMIT_RETRY_DELAY", "2s"),
			MaxSnapshotAge:    getEnvAsDuration("MAX_SNAPSHOT_AGE", "48h"),
			StaleSnapshotWarn: getEnvAsDuration("STALE_SNAPSHOT_WARN", "24h"),
			PaperCash:         getEnvAsFloat("PAPER_CASH", 100000),
		},

		WebhookURL: getEnv("FAILURE_WEBHOOK_URL", ""),

		OutboundRateLimitRPS: getEnvAsInt("OUTBOUND_RATE_LIMIT_RPS", 5),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants. A malformed limit is an
// operator error: fail fast, never retry.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Execution.Mode != "dry_run" && c.Execution.Mode != "live" {
		return fmt.Errorf("EXECUTION_MODE must be dry_run or live, got %q", c.Execution.Mode)
	}

	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 1 {
		return fmt.Errorf("MAX_POSITION_PCT must be in (0, 1], got %v", c.Risk.MaxPositionPct)
	}

	if c.Risk.MaxTurnoverPct <= 0 || c.Risk.MaxTurnoverPct > 2 {
		return fmt.Errorf("MAX_TURNOVER_PCT must be in (0, 2], got %v", c.Risk.MaxTurnoverPct)
	}

	if c.Sizing.TopN <= 0 {
		return fmt.Errorf("TOP_N must be positive, got %d", c.Sizing.TopN)
	}

	if c.Sizing.MinTradeThreshold < 0 || c.Sizing.MinTradeThreshold >= 1 {
		return fmt.Errorf("MIN_TRADE_THRESHOLD must be in [0, 1), got %v", c.Sizing.MinTradeThreshold)
	}

	if c.Scheduler.MaxRetries < 1 {
		return fmt.Errorf("JOB_MAX_RETRIES must be at least 1, got %d", c.Scheduler.MaxRetries)
	}

	if c.Scheduler.TickInterval <= 0 || c.Scheduler.TickInterval >= time.Minute {
		return fmt.Errorf("SCHEDULER_TICK_INTERVAL must be sub-minute and positive, got %v", c.Scheduler.TickInterval)
	}

	if len(c.Signal.Universe) < c.Sizing.TopN {
		return fmt.Errorf("UNIVERSE has %d instruments, TOP_N needs at least %d", len(c.Signal.Universe), c.Sizing.TopN)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsList(key, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
