package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by LEDGER_STORE.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// SessionStoreRedis selects the Redis session backend via LEDGER_SESSION_STORE.
const SessionStoreRedis = "redis"

// Config captures environment driven configuration values for the ledger service.
type Config struct {
	HTTPPort     int
	Store        string
	SQLiteDSN    string
	SessionStore string
	Redis        RedisConfig
	AMQPURL      string
	SessionTTL   time.Duration
	LoanDays     int
	LogLevel     string
	LogFormat    string
}

// RedisConfig holds connection settings for the Redis session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load parses configuration values from the current process environment.
//
// Every variable is optional. Unparseable values are collected and reported
// together so operators can fix them in one pass.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:   8080,
		Store:      StoreSQLite,
		SQLiteDSN:  "file:ledger.db",
		SessionTTL: 24 * time.Hour,
		LoanDays:   14,
		LogLevel:   "info",
		LogFormat:  "json",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("LEDGER_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "LEDGER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if store := strings.ToLower(strings.TrimSpace(os.Getenv("LEDGER_STORE"))); store != "" {
		switch store {
		case StoreSQLite, StoreMemory:
			cfg.Store = store
		default:
			invalid = append(invalid, "LEDGER_STORE")
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("LEDGER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if sessionStore := strings.ToLower(strings.TrimSpace(os.Getenv("LEDGER_SESSION_STORE"))); sessionStore != "" {
		if sessionStore != SessionStoreRedis {
			invalid = append(invalid, "LEDGER_SESSION_STORE")
		} else {
			cfg.SessionStore = sessionStore
		}
	}

	cfg.Redis.Addr = strings.TrimSpace(os.Getenv("LEDGER_REDIS_ADDR"))
	cfg.Redis.Password = os.Getenv("LEDGER_REDIS_PASSWORD")
	if dbValue := strings.TrimSpace(os.Getenv("LEDGER_REDIS_DB")); dbValue != "" {
		db, err := strconv.Atoi(dbValue)
		if err != nil || db < 0 {
			invalid = append(invalid, "LEDGER_REDIS_DB")
		} else {
			cfg.Redis.DB = db
		}
	}
	if cfg.SessionStore == SessionStoreRedis && cfg.Redis.Addr == "" {
		missing = append(missing, "LEDGER_REDIS_ADDR")
	}

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("LEDGER_AMQP_URL"))

	if ttlValue := strings.TrimSpace(os.Getenv("LEDGER_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "LEDGER_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if daysValue := strings.TrimSpace(os.Getenv("LEDGER_LOAN_DAYS")); daysValue != "" {
		days, err := strconv.Atoi(daysValue)
		if err != nil || days <= 0 {
			invalid = append(invalid, "LEDGER_LOAN_DAYS")
		} else {
			cfg.LoanDays = days
		}
	}

	if level := strings.ToLower(strings.TrimSpace(os.Getenv("LEDGER_LOG_LEVEL"))); level != "" {
		switch level {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = level
		default:
			invalid = append(invalid, "LEDGER_LOG_LEVEL")
		}
	}

	if format := strings.ToLower(strings.TrimSpace(os.Getenv("LEDGER_LOG_FORMAT"))); format != "" {
		switch format {
		case "json", "text":
			cfg.LogFormat = format
		default:
			invalid = append(invalid, "LEDGER_LOG_FORMAT")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
