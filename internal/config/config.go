package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL   string `validate:"required"`
	MigrationsDir string `validate:"required"`
	AutoMigrate   bool
	LogLevel      string `validate:"oneof=debug info warn error"`

	BatchSize  int     `validate:"gte=1,lte=10000"`
	SampleSize int     `validate:"gte=1,lte=100"`
	WriteRate  float64 `validate:"gte=0"`
	LockTTL    time.Duration
	// StatementTimeout bounds every SQL statement; zero disables it
	StatementTimeout time.Duration

	SeedEmployees int    `validate:"gte=1"`
	SeedAccounts  int    `validate:"gte=1"`
	SeedDeals     int    `validate:"gte=0"`
	DashboardRPC  string `validate:"required"`
	// Redis - optional; checkpoints and the run lock stay in memory without it
	RedisURL string `validate:"omitempty,url"`
	// Meilisearch - optional deal owner index
	MeiliURL       string `validate:"omitempty,url"`
	MeiliMasterKey string
	// MinIO - optional report archive
	MinioEndpoint  string
	MinioAccessKey string `validate:"required_with=MinioEndpoint"`
	MinioSecretKey string `validate:"required_with=MinioEndpoint"`
	MinioBucket    string `validate:"required_with=MinioEndpoint"`
	MinioUseSSL    bool
	// Prometheus Pushgateway - optional
	PushgatewayURL string `validate:"omitempty,url"`
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DatabaseURL:      getenv("DATABASE_URL", ""),
		MigrationsDir:    getenv("DEALOPS_MIGRATIONS_DIR", "./db/migrations"),
		AutoMigrate:      getenvBool("DEALOPS_AUTO_MIGRATE", false),
		LogLevel:         strings.ToLower(getenv("LOG_LEVEL", "info")),
		BatchSize:        getenvInt("DEALOPS_BATCH_SIZE", 1000),
		SampleSize:       getenvInt("DEALOPS_SAMPLE_SIZE", 3),
		WriteRate:        getenvFloat("DEALOPS_WRITE_RATE", 0),
		LockTTL:          time.Duration(getenvInt("DEALOPS_LOCK_TTL_SECONDS", 900)) * time.Second,
		StatementTimeout: time.Duration(getenvInt("DEALOPS_STATEMENT_TIMEOUT_SECONDS", 30)) * time.Second,
		SeedEmployees:    getenvInt("DEALOPS_SEED_EMPLOYEES", 4),
		SeedAccounts:     getenvInt("DEALOPS_SEED_ACCOUNTS", 20),
		SeedDeals:        getenvInt("DEALOPS_SEED_DEALS", 200),
		DashboardRPC:     getenv("DEALOPS_DASHBOARD_RPC", "get_dashboard_stats"),
		RedisURL:         getenv("REDIS_URL", ""),
		MeiliURL:         getenv("MEILI_URL", ""),
		MeiliMasterKey:   getenv("MEILI_MASTER_KEY", ""),
		MinioEndpoint:    getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey:   getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:   getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:      getenv("MINIO_BUCKET", "dealops-reports"),
		MinioUseSSL:      getenvBool("MINIO_USE_SSL", true),
		PushgatewayURL:   getenv("PUSHGATEWAY_URL", ""),
	}
}

// Validate reports every invalid field at once. A missing DATABASE_URL is the
// common case: the store credentials were never exported.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
