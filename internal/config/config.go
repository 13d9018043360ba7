package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for both portal and identity binaries.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Identity IdentityConfig
	Session  SessionConfig
	Guard    GuardConfig
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

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token issuance parameters for the identity service.
type AuthConfig struct {
	JWTSecret                  string
	AccessTokenTTLMinutes      int
	VerificationCodeTTLMinutes int
	BcryptCost                 int
}

// IdentityConfig locates the identity service consumed by the portal.
type IdentityConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// SessionConfig defines token storage behavior on the portal side.
type SessionConfig struct {
	DefaultTTLHours    int
	RememberMeTTLHours int
}

// GuardConfig defines redirect targets for the route guard.
type GuardConfig struct {
	LoginPath    string
	FallbackPath string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "employee-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:                  getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:      getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			VerificationCodeTTLMinutes: getEnvAsInt("AUTH_VERIFICATION_CODE_TTL_MINUTES", 10),
			BcryptCost:                 getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Identity: IdentityConfig{
			BaseURL:        getEnv("IDENTITY_BASE_URL", "http://127.0.0.1:8081"),
			TimeoutSeconds: getEnvAsInt("IDENTITY_TIMEOUT_SECONDS", 15),
		},
		Session: SessionConfig{
			DefaultTTLHours:    getEnvAsInt("SESSION_DEFAULT_TTL_HOURS", 24),
			RememberMeTTLHours: getEnvAsInt("SESSION_REMEMBER_ME_TTL_HOURS", 720),
		},
		Guard: GuardConfig{
			LoginPath:    getEnv("GUARD_LOGIN_PATH", "/login"),
			FallbackPath: getEnv("GUARD_FALLBACK_PATH", "/dashboard"),
		},
	}

	return cfg, nil
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

// DefaultTTL returns the session expiry horizon used when a login does not
// request an extended session.
func (s SessionConfig) DefaultTTL() time.Duration {
	if s.DefaultTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.DefaultTTLHours) * time.Hour
}

// RememberMeTTL returns the extended session expiry horizon.
func (s SessionConfig) RememberMeTTL() time.Duration {
	if s.RememberMeTTLHours <= 0 {
		return s.DefaultTTL()
	}
	return time.Duration(s.RememberMeTTLHours) * time.Hour
}

// Timeout returns the identity client request deadline.
func (i IdentityConfig) Timeout() time.Duration {
	if i.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(i.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
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
