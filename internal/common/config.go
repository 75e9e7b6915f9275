package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	LLM      LLMConfig
	Scraper  ScraperConfig
	Pipeline PipelineConfig
	Cleanup  CleanupConfig
	Redis    RedisConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres or sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	MigrateOnStart   bool
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr         string
	GRPCAddr         string
	CronSecret       string
	ScheduleInterval time.Duration
	SeedDir          string // watched for seed files when set
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model             string
	APIKey            string
	Temperature       float32
	Timeout           time.Duration
	RequestsPerMinute int
	DailyRequestLimit int
	DailyTokenLimit   int
	TokenBuffer       int
}

// ScraperConfig holds scraper collaborator configuration
type ScraperConfig struct {
	FirecrawlAPIKey  string
	FirecrawlBaseURL string
	Timeout          time.Duration
	UserAgent        string
}

// PipelineConfig holds orchestrator budgets
type PipelineConfig struct {
	JobTimeout    time.Duration
	BatchBudget   time.Duration
	BatchLimit    int
	Concurrency   int
	RequeueFailed bool
	RetryBackoff  time.Duration
	DeniedDomains []string
	LockFile      string
}

// CleanupConfig holds batch cleanup configuration
type CleanupConfig struct {
	BatchSize int
	Region    RegionBounds
}

// RegionBounds is the service area used to sanity check coordinates.
type RegionBounds struct {
	MinLat float64 `toml:"min_lat"`
	MaxLat float64 `toml:"max_lat"`
	MinLng float64 `toml:"min_lng"`
	MaxLng float64 `toml:"max_lng"`
}

// Contains reports whether the point is inside the bounds.
func (r RegionBounds) Contains(lat, lng float64) bool {
	return lat >= r.MinLat && lat <= r.MaxLat && lng >= r.MinLng && lng <= r.MaxLng
}

// RedisConfig holds usage tracker storage configuration
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // json, text or auto
	File   string
}

// fileConfig is the subset of settings accepted from a TOML file. Secrets stay
// in the environment.
type fileConfig struct {
	Database struct {
		Driver string `toml:"driver"`
		DSN    string `toml:"dsn"`
	} `toml:"database"`
	Server struct {
		HTTPAddr                string `toml:"http_addr"`
		GRPCAddr                string `toml:"grpc_addr"`
		ScheduleIntervalSeconds int    `toml:"schedule_interval_seconds"`
		SeedDir                 string `toml:"seed_dir"`
	} `toml:"server"`
	LLM struct {
		Model             string `toml:"model"`
		RequestsPerMinute int    `toml:"requests_per_minute"`
		DailyRequestLimit int    `toml:"daily_request_limit"`
		DailyTokenLimit   int    `toml:"daily_token_limit"`
	} `toml:"llm"`
	Pipeline struct {
		JobTimeoutSeconds  int      `toml:"job_timeout_seconds"`
		BatchBudgetSeconds int      `toml:"batch_budget_seconds"`
		BatchLimit         int      `toml:"batch_limit"`
		Concurrency        int      `toml:"concurrency"`
		RequeueFailed      bool     `toml:"requeue_failed"`
		DeniedDomains      []string `toml:"denied_domains"`
	} `toml:"pipeline"`
	Cleanup struct {
		BatchSize int           `toml:"batch_size"`
		Region    *RegionBounds `toml:"region"`
	} `toml:"cleanup"`
}

// DefaultRegion covers the Charleston, SC metro area.
var DefaultRegion = RegionBounds{MinLat: 32.0, MaxLat: 34.0, MinLng: -81.0, MaxLng: -79.0}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr: ":8080",
			GRPCAddr: ":9090",
		},
		LLM: LLMConfig{
			Model:             "gemini-2.0-flash-lite-001",
			Temperature:       0.0,
			Timeout:           30 * time.Second,
			RequestsPerMinute: 15,
			DailyRequestLimit: 1500,
			DailyTokenLimit:   32000,
			TokenBuffer:       100,
		},
		Scraper: ScraperConfig{
			FirecrawlBaseURL: "https://api.firecrawl.dev",
			Timeout:          20 * time.Second,
			UserAgent:        "foodtruck-pipeline/1.0",
		},
		Pipeline: PipelineConfig{
			JobTimeout:   5 * time.Second,
			BatchBudget:  9 * time.Second,
			BatchLimit:   5,
			Concurrency:  1,
			RetryBackoff: 30 * time.Second,
			LockFile:     os.TempDir() + "/truckctl-process.lock",
		},
		Cleanup: CleanupConfig{
			BatchSize: 50,
			Region:    DefaultRegion,
		},
		Redis: RedisConfig{
			DialTimeout: 3 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// LoadDotEnv loads a .env file from the working directory when present.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// LoadConfig loads configuration from defaults, an optional TOML file named by
// CONFIG_FILE, and environment variables, in that order of precedence.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", "read config file", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return NewAppError("CONFIG_ERROR", "parse config file", err)
	}

	setString(&c.Database.Driver, fc.Database.Driver)
	setString(&c.Database.DSN, fc.Database.DSN)
	setString(&c.Server.HTTPAddr, fc.Server.HTTPAddr)
	setString(&c.Server.GRPCAddr, fc.Server.GRPCAddr)
	setSeconds(&c.Server.ScheduleInterval, fc.Server.ScheduleIntervalSeconds)
	setString(&c.Server.SeedDir, fc.Server.SeedDir)
	setString(&c.LLM.Model, fc.LLM.Model)
	setInt(&c.LLM.RequestsPerMinute, fc.LLM.RequestsPerMinute)
	setInt(&c.LLM.DailyRequestLimit, fc.LLM.DailyRequestLimit)
	setInt(&c.LLM.DailyTokenLimit, fc.LLM.DailyTokenLimit)
	setSeconds(&c.Pipeline.JobTimeout, fc.Pipeline.JobTimeoutSeconds)
	setSeconds(&c.Pipeline.BatchBudget, fc.Pipeline.BatchBudgetSeconds)
	setInt(&c.Pipeline.BatchLimit, fc.Pipeline.BatchLimit)
	setInt(&c.Pipeline.Concurrency, fc.Pipeline.Concurrency)
	if fc.Pipeline.RequeueFailed {
		c.Pipeline.RequeueFailed = true
	}
	c.Pipeline.DeniedDomains = append(c.Pipeline.DeniedDomains, fc.Pipeline.DeniedDomains...)
	setInt(&c.Cleanup.BatchSize, fc.Cleanup.BatchSize)
	if fc.Cleanup.Region != nil {
		c.Cleanup.Region = *fc.Cleanup.Region
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)
	c.Database.MigrateOnStart = getEnvAsBool("DB_MIGRATE_ON_START", c.Database.MigrateOnStart)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.CronSecret = getEnv("CRON_SECRET", c.Server.CronSecret)
	c.Server.ScheduleInterval = getEnvAsDuration("SCHEDULE_INTERVAL", c.Server.ScheduleInterval)
	c.Server.SeedDir = getEnv("SEED_DIR", c.Server.SeedDir)

	c.LLM.Model = getEnv("GEMINI_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("GEMINI_API_KEY", c.LLM.APIKey)
	c.LLM.Temperature = getEnvAsFloat32("GEMINI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("GEMINI_TIMEOUT", c.LLM.Timeout)
	c.LLM.RequestsPerMinute = getEnvAsInt("GEMINI_REQUESTS_PER_MINUTE", c.LLM.RequestsPerMinute)
	c.LLM.DailyRequestLimit = getEnvAsInt("GEMINI_DAILY_REQUEST_LIMIT", c.LLM.DailyRequestLimit)
	c.LLM.DailyTokenLimit = getEnvAsInt("GEMINI_DAILY_TOKEN_LIMIT", c.LLM.DailyTokenLimit)

	c.Scraper.FirecrawlAPIKey = getEnv("FIRECRAWL_API_KEY", c.Scraper.FirecrawlAPIKey)
	c.Scraper.FirecrawlBaseURL = getEnv("FIRECRAWL_BASE_URL", c.Scraper.FirecrawlBaseURL)
	c.Scraper.Timeout = getEnvAsDuration("SCRAPER_TIMEOUT", c.Scraper.Timeout)

	c.Pipeline.JobTimeout = getEnvAsDuration("PIPELINE_JOB_TIMEOUT", c.Pipeline.JobTimeout)
	c.Pipeline.BatchBudget = getEnvAsDuration("PIPELINE_BATCH_BUDGET", c.Pipeline.BatchBudget)
	c.Pipeline.BatchLimit = getEnvAsInt("PIPELINE_BATCH_LIMIT", c.Pipeline.BatchLimit)
	c.Pipeline.Concurrency = getEnvAsInt("PIPELINE_CONCURRENCY", c.Pipeline.Concurrency)
	c.Pipeline.RequeueFailed = getEnvAsBool("PIPELINE_REQUEUE_FAILED", c.Pipeline.RequeueFailed)
	c.Pipeline.RetryBackoff = getEnvAsDuration("PIPELINE_RETRY_BACKOFF", c.Pipeline.RetryBackoff)
	c.Pipeline.LockFile = getEnv("PIPELINE_LOCK_FILE", c.Pipeline.LockFile)
	if extra := getEnv("PIPELINE_DENIED_DOMAINS", ""); extra != "" {
		for _, d := range strings.Split(extra, ",") {
			if d = strings.TrimSpace(d); d != "" {
				c.Pipeline.DeniedDomains = append(c.Pipeline.DeniedDomains, d)
			}
		}
	}

	c.Cleanup.BatchSize = getEnvAsInt("CLEANUP_BATCH_SIZE", c.Cleanup.BatchSize)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setSeconds(dst *time.Duration, v int) {
	if v > 0 {
		*dst = time.Duration(v) * time.Second
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the settings every binary needs.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Pipeline.BatchLimit <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_BATCH_LIMIT must be positive", ErrInvalidInput)
	}
	if c.Pipeline.Concurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_CONCURRENCY must be positive", ErrInvalidInput)
	}
	if c.Pipeline.JobTimeout <= 0 || c.Pipeline.BatchBudget <= 0 {
		return NewAppError("CONFIG_ERROR", "pipeline timeouts must be positive", ErrInvalidInput)
	}
	if c.Cleanup.BatchSize <= 0 {
		return NewAppError("CONFIG_ERROR", "CLEANUP_BATCH_SIZE must be positive", ErrInvalidInput)
	}
	if c.Cleanup.Region.MinLat >= c.Cleanup.Region.MaxLat || c.Cleanup.Region.MinLng >= c.Cleanup.Region.MaxLng {
		return NewAppError("CONFIG_ERROR", "cleanup region bounds are inverted", ErrInvalidInput)
	}
	return nil
}

// ValidateServer validates the settings the daemon additionally needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.CronSecret == "" {
		return NewAppError("CONFIG_ERROR", "CRON_SECRET is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}

// ValidatePipeline validates the settings needed to run extraction.
func (c *Config) ValidatePipeline() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
	}
	return nil
}
