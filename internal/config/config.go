package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service. It is resolved once by Load
// and handed to components by value.
type Config struct {
	App        AppConfig
	Deployment DeploymentConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Workload   WorkloadConfig
	Faults     FaultsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// DeploymentConfig carries the blue/green identity inputs.
type DeploymentConfig struct {
	Color      string
	InstanceID string
}

// PostgresConfig holds the optional readiness dependency DSN.
type PostgresConfig struct {
	DSN string
}

// RedisConfig holds the optional readiness dependency address.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	Username              string
	Password              string
	PasswordHash          string
	BcryptCost            int
	LoginRatePerSecond    float64
	LoginBurst            int
}

// WorkloadConfig bounds the synthetic load generators.
type WorkloadConfig struct {
	RequireAuth        bool
	CPUWorkers         int
	CPUDefaultMillis   int
	CPUMaxMillis       int
	MemoryDefaultMB    int
	MemoryMaxMB        int
	MemoryHoldMillis   int
	MemoryBudgetMB     int
	AsyncDefaultMillis int
	AsyncMaxMillis     int
}

// FaultsConfig configures the error simulator.
type FaultsConfig struct {
	TimeoutDelaySeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	loginRate, err := strconv.ParseFloat(getEnv("AUTH_LOGIN_RATE_PER_SECOND", "0"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid AUTH_LOGIN_RATE_PER_SECOND: %w", err)
	}

	cfg := Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "k8s-test-service"),
			Env:                   getEnvAny([]string{"APP_ENV", "APP_ENVIRONMENT"}, "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8000"),
			Version:               getEnv("APP_VERSION", "1.0.0"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
		},
		Deployment: DeploymentConfig{
			Color:      strings.ToLower(getEnvAny([]string{"DEPLOYMENT_COLOR", "DEPLOYMENT_VERSION"}, "blue")),
			InstanceID: getEnvAny([]string{"INSTANCE_ID", "POD_NAME"}, ""),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnvAny([]string{"AUTH_JWT_SECRET", "SECRET_KEY"}, "your-secret-key-change-this-in-production"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 30),
			Username:              getEnv("AUTH_USERNAME", "testuser"),
			Password:              getEnv("AUTH_PASSWORD", "testpassword"),
			PasswordHash:          os.Getenv("AUTH_PASSWORD_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			LoginRatePerSecond:    loginRate,
			LoginBurst:            getEnvAsInt("AUTH_LOGIN_BURST", 5),
		},
		Workload: WorkloadConfig{
			RequireAuth:        getEnvAsBool("WORKLOAD_REQUIRE_AUTH", false),
			CPUWorkers:         getEnvAsInt("WORKLOAD_CPU_WORKERS", runtime.NumCPU()),
			CPUDefaultMillis:   getEnvAsInt("WORKLOAD_CPU_DEFAULT_MS", 200),
			CPUMaxMillis:       getEnvAsInt("WORKLOAD_CPU_MAX_MS", 2000),
			MemoryDefaultMB:    getEnvAsInt("WORKLOAD_MEMORY_DEFAULT_MB", 16),
			MemoryMaxMB:        getEnvAsInt("WORKLOAD_MEMORY_MAX_MB", 256),
			MemoryHoldMillis:   getEnvAsInt("WORKLOAD_MEMORY_HOLD_MS", 100),
			MemoryBudgetMB:     getEnvAsInt("WORKLOAD_MEMORY_BUDGET_MB", 1024),
			AsyncDefaultMillis: getEnvAsInt("WORKLOAD_ASYNC_DEFAULT_MS", 100),
			AsyncMaxMillis:     getEnvAsInt("WORKLOAD_ASYNC_MAX_MS", 5000),
		},
		Faults: FaultsConfig{
			TimeoutDelaySeconds: getEnvAsInt("ERROR_TIMEOUT_DELAY_SECONDS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Deployment.Color != "blue" && c.Deployment.Color != "green" {
		errs = append(errs, fmt.Errorf("deployment color must be blue or green, got %q", c.Deployment.Color))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth secret must not be empty"))
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Auth.PasswordHash == "" && c.Auth.Password == "" {
		errs = append(errs, errors.New("one of AUTH_PASSWORD or AUTH_PASSWORD_HASH is required"))
	}
	w := c.Workload
	if w.CPUWorkers <= 0 {
		errs = append(errs, errors.New("WORKLOAD_CPU_WORKERS must be positive"))
	}
	errs = append(errs,
		checkBounds("WORKLOAD_CPU", w.CPUDefaultMillis, w.CPUMaxMillis),
		checkBounds("WORKLOAD_MEMORY", w.MemoryDefaultMB, w.MemoryMaxMB),
		checkBounds("WORKLOAD_ASYNC", w.AsyncDefaultMillis, w.AsyncMaxMillis),
	)
	if c.Faults.TimeoutDelaySeconds < 0 {
		errs = append(errs, errors.New("ERROR_TIMEOUT_DELAY_SECONDS must not be negative"))
	}
	if c.App.RequestTimeoutSeconds > 0 && c.Faults.TimeoutDelaySeconds >= c.App.RequestTimeoutSeconds {
		errs = append(errs, fmt.Errorf("ERROR_TIMEOUT_DELAY_SECONDS (%d) must be below HTTP_REQUEST_TIMEOUT_SECONDS (%d)",
			c.Faults.TimeoutDelaySeconds, c.App.RequestTimeoutSeconds))
	}
	if w.MemoryBudgetMB < 0 {
		errs = append(errs, errors.New("WORKLOAD_MEMORY_BUDGET_MB must not be negative"))
	}
	return errors.Join(errs...)
}

func checkBounds(prefix string, def, max int) error {
	if def <= 0 || max <= 0 || def > max {
		return fmt.Errorf("%s default (%d) must be positive and not exceed max (%d)", prefix, def, max)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// TimeoutDelay returns how long the timeout simulation holds the caller.
func (f FaultsConfig) TimeoutDelay() time.Duration {
	return time.Duration(f.TimeoutDelaySeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAny(keys []string, fallback string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
