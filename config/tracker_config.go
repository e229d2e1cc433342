package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL  string
	DBMaxConns   int
	MongoDBURL   string
	MongoDBName  string
	RedisURL     string
	RedisPool    int
	EnsureSchema bool

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Token storage
	EncryptionKey string

	// OpenAI
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64

	// Extraction
	ExtractionCacheSize int
	RedisCacheTTL       time.Duration

	// Duplicate detection
	DedupSimilarityThreshold float64
	DedupLookbackDays        int
	DedupLookbackLimit       int

	// Timeouts
	MailFetchTimeout    time.Duration
	LLMTimeout          time.Duration
	TokenRefreshTimeout time.Duration
	SyncTimeout         time.Duration
	TokenRefreshSkew    time.Duration

	// Sync
	SyncDefaultMaxResults int
	SyncMaxResultsCap     int
	ResumeFromLastSync    bool

	// Worker
	WorkerID         string
	WorkerCount      int
	WorkerQueueSize  int
	WorkerMaxRetries int
	JobTimeout       time.Duration

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DBMaxConns:   getEnvInt("DB_MAX_CONNS", 25),
		MongoDBURL:   getEnv("MONGODB_URL", ""),
		MongoDBName:  getEnv("MONGODB_DATABASE", "tracker"),
		RedisURL:     getEnv("REDIS_URL", ""),
		RedisPool:    getEnvInt("REDIS_POOL_SIZE", 20),
		EnsureSchema: getEnvBool("ENSURE_SCHEMA", false),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 512),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0),

		// Extraction
		ExtractionCacheSize: getEnvInt("EXTRACTION_CACHE_SIZE", 1000),
		RedisCacheTTL:       getEnvDuration("REDIS_CACHE_TTL", 7*24*time.Hour),

		// Duplicate detection
		DedupSimilarityThreshold: getEnvFloat("DEDUP_SIMILARITY_THRESHOLD", 0.85),
		DedupLookbackDays:        getEnvInt("DEDUP_LOOKBACK_DAYS", 90),
		DedupLookbackLimit:       getEnvInt("DEDUP_LOOKBACK_LIMIT", 200),

		// Timeouts
		MailFetchTimeout:    seconds("MAIL_FETCH_TIMEOUT_SEC", 30),
		LLMTimeout:          seconds("LLM_TIMEOUT_SEC", 30),
		TokenRefreshTimeout: seconds("TOKEN_REFRESH_TIMEOUT_SEC", 15),
		SyncTimeout:         seconds("SYNC_TIMEOUT_SEC", 300),
		TokenRefreshSkew:    getEnvDuration("TOKEN_REFRESH_SKEW", 5*time.Minute),

		// Sync
		SyncDefaultMaxResults: getEnvInt("SYNC_DEFAULT_MAX_RESULTS", 50),
		SyncMaxResultsCap:     getEnvInt("SYNC_MAX_RESULTS_CAP", 500),
		ResumeFromLastSync:    getEnvBool("RESUME_FROM_LAST_SYNC", false),

		// Worker
		WorkerID:         getEnv("WORKER_ID", generateWorkerID()),
		WorkerCount:      getEnvInt("WORKER_COUNT", 4),
		WorkerQueueSize:  getEnvInt("WORKER_QUEUE_SIZE", 100),
		WorkerMaxRetries: getEnvInt("WORKER_MAX_RETRIES", 3),
		JobTimeout:       seconds("JOB_TIMEOUT_SEC", 360),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.DedupSimilarityThreshold <= 0 || c.DedupSimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("DEDUP_SIMILARITY_THRESHOLD must be in (0, 1], got %v", c.DedupSimilarityThreshold))
	}
	if c.ExtractionCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("EXTRACTION_CACHE_SIZE must be positive, got %d", c.ExtractionCacheSize))
	}
	if c.SyncDefaultMaxResults > c.SyncMaxResultsCap {
		errs = append(errs, fmt.Errorf("SYNC_DEFAULT_MAX_RESULTS (%d) exceeds SYNC_MAX_RESULTS_CAP (%d)", c.SyncDefaultMaxResults, c.SyncMaxResultsCap))
	}
	return errors.Join(errs...)
}

// DedupLookback is the duplicate search window as a duration.
func (c *Config) DedupLookback() time.Duration {
	return time.Duration(c.DedupLookbackDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "168h").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func seconds(key string, defaultSec int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSec)) * time.Second
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
