package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrMissingSecret is returned when ACCESS_TOKEN_SECRET is not set.
var ErrMissingSecret = errors.New("ACCESS_TOKEN_SECRET environment variable is required")

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	Token    TokenConfig
	Database DatabaseConfig
	Password PasswordConfig
	Cache    CacheConfig
	Sweep    SweepConfig

	StorageDriver string
}

// TokenConfig holds access and refresh token settings.
type TokenConfig struct {
	AccessSecret          []byte
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	RefreshReuseRevokeAll bool
	CookieSecure          bool
}

// DatabaseConfig holds database specific configuration.
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	Isolation   sql.IsolationLevel
	AutoMigrate bool
}

// PasswordConfig selects the password hashing algorithm.
type PasswordConfig struct {
	Algorithm  string
	BcryptCost int
}

// CacheConfig configures the optional Redis user cache.
type CacheConfig struct {
	RedisURL string
	UserTTL  time.Duration
}

// SweepConfig configures the expired refresh-token reaper.
type SweepConfig struct {
	Schedule string
	Grace    time.Duration
}

// IsDevelopment reports whether the process runs with APP_ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	appPort := os.Getenv("APP_PORT")
	if appPort == "" {
		appPort = "8080" // Default port
		logrus.Warnf("APP_PORT not set, defaulting to %s", appPort)
	}

	secret := os.Getenv("ACCESS_TOKEN_SECRET")
	if secret == "" {
		return nil, ErrMissingSecret
	}

	accessTTL, err := ParseTTL(getEnv("ACCESS_TOKEN_TTL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid ACCESS_TOKEN_TTL: %w", err)
	}

	refreshDays, err := strconv.Atoi(getEnv("REFRESH_TOKEN_TTL_DAYS", "7"))
	if err != nil || refreshDays <= 0 {
		return nil, fmt.Errorf("invalid REFRESH_TOKEN_TTL_DAYS %q: must be a positive integer", os.Getenv("REFRESH_TOKEN_TTL_DAYS"))
	}

	reuseRevokeAll, err := getBool("REFRESH_REUSE_REVOKES_ALL", false)
	if err != nil {
		return nil, err
	}
	cookieSecure, err := getBool("REFRESH_COOKIE_SECURE", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppPort:       appPort,
		AppEnv:        getEnv("APP_ENV", "production"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		Token: TokenConfig{
			AccessSecret:          []byte(secret),
			AccessTTL:             accessTTL,
			RefreshTTL:            time.Duration(refreshDays) * 24 * time.Hour,
			RefreshReuseRevokeAll: reuseRevokeAll,
			CookieSecure:          cookieSecure,
		},
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		dbCfg, err := loadDatabaseConfig()
		if err != nil {
			return nil, err
		}
		cfg.Database = dbCfg
	case StorageDriverMemory:
		logrus.Warn("STORAGE_DRIVER=memory: users and refresh tokens will not survive a restart")
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	cfg.Password.Algorithm = strings.ToLower(getEnv("PASSWORD_HASHER", "bcrypt"))
	cfg.Password.BcryptCost, err = strconv.Atoi(getEnv("BCRYPT_COST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	cfg.Cache.RedisURL = os.Getenv("REDIS_URL")
	cfg.Cache.UserTTL, err = ParseTTL(getEnv("USER_CACHE_TTL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid USER_CACHE_TTL: %w", err)
	}

	// An explicitly empty schedule disables the sweep.
	cfg.Sweep.Schedule = getEnv("TOKEN_SWEEP_SCHEDULE", "0 3 * * *")
	cfg.Sweep.Grace, err = ParseTTL(getEnv("TOKEN_SWEEP_GRACE", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_SWEEP_GRACE: %w", err)
	}

	return cfg, nil
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return DatabaseConfig{}, fmt.Errorf("DB_HOST environment variable not set")
	}
	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		return DatabaseConfig{}, fmt.Errorf("DB_PORT environment variable not set")
	}
	dbUser := os.Getenv("POSTGRES_USER") // Use POSTGRES_USER as defined in docker-compose.yml
	if dbUser == "" {
		return DatabaseConfig{}, fmt.Errorf("POSTGRES_USER environment variable not set")
	}
	dbPassword := os.Getenv("POSTGRES_PASSWORD")
	if dbPassword == "" {
		return DatabaseConfig{}, fmt.Errorf("POSTGRES_PASSWORD environment variable not set")
	}
	dbName := os.Getenv("POSTGRES_DB")
	if dbName == "" {
		return DatabaseConfig{}, fmt.Errorf("POSTGRES_DB environment variable not set")
	}

	isolation, err := parseIsolation(getEnv("DB_TX_ISOLATION", "read_committed"))
	if err != nil {
		return DatabaseConfig{}, err
	}
	autoMigrate, err := getBool("DB_AUTO_MIGRATE", true)
	if err != nil {
		return DatabaseConfig{}, err
	}

	return DatabaseConfig{
		Host:        dbHost,
		Port:        dbPort,
		User:        dbUser,
		Password:    dbPassword,
		DBName:      dbName,
		SSLMode:     getEnv("DB_SSLMODE", "disable"),
		Isolation:   isolation,
		AutoMigrate: autoMigrate,
	}, nil
}

// ParseTTL parses a Go duration string, additionally accepting a whole
// number of days with a "d" suffix (e.g. "7d").
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		if n <= 0 {
			return 0, fmt.Errorf("duration %q must be positive", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

func parseIsolation(s string) (sql.IsolationLevel, error) {
	switch strings.ToLower(s) {
	case "read_committed":
		return sql.LevelReadCommitted, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return 0, fmt.Errorf("unsupported DB_TX_ISOLATION %q", s)
	}
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}
