package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Guard   GuardConfig
	Monitor MonitorConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is one of: memory, sqlite, postgres, redis.
	Backend string

	SQLitePath string

	PGHost     string
	PGPort     int
	PGUser     string
	PGPassword string
	PGName     string
	PGSSLMode  string
	PGMaxConns int32

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// GuardConfig holds attempt governor thresholds.
type GuardConfig struct {
	MaxAttempts          int
	ChallengeThreshold   int
	InitialLockout       time.Duration
	LockoutMultiplier    float64
	RapidFireThreshold   int
	RapidFireWindow      time.Duration
	DistributedThreshold int
	DistributedWindow    time.Duration
}

// MonitorConfig holds behavior monitor thresholds and probe switches.
type MonitorConfig struct {
	RapidClicks          int
	RapidNavigation      int
	SuspiciousKeystrokes int
	DevToolsDetection    bool
	ConsoleInteraction   bool
	NetworkMonitoring    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      getEnv("ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Backend:       getEnv("STORE_BACKEND", "sqlite"),
			SQLitePath:    getEnv("STORE_SQLITE_PATH", "sentinel.db"),
			PGHost:        getEnv("DB_HOST", "localhost"),
			PGPort:        getEnvAsInt("DB_PORT", 5432),
			PGUser:        getEnv("DB_USER", "postgres"),
			PGPassword:    getEnv("DB_PASSWORD", ""),
			PGName:        getEnv("DB_NAME", "sentinel"),
			PGSSLMode:     getEnv("DB_SSLMODE", "disable"),
			PGMaxConns:    int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		Guard: GuardConfig{
			MaxAttempts:          getEnvAsInt("GUARD_MAX_ATTEMPTS", 5),
			ChallengeThreshold:   getEnvAsInt("GUARD_CHALLENGE_THRESHOLD", 3),
			InitialLockout:       getEnvAsDuration("GUARD_INITIAL_LOCKOUT", 5*time.Minute),
			LockoutMultiplier:    getEnvAsFloat("GUARD_LOCKOUT_MULTIPLIER", 2),
			RapidFireThreshold:   getEnvAsInt("GUARD_RAPID_FIRE_THRESHOLD", 10),
			RapidFireWindow:      getEnvAsDuration("GUARD_RAPID_FIRE_WINDOW", 60*time.Second),
			DistributedThreshold: getEnvAsInt("GUARD_DISTRIBUTED_THRESHOLD", 5),
			DistributedWindow:    getEnvAsDuration("GUARD_DISTRIBUTED_WINDOW", 300*time.Second),
		},
		Monitor: MonitorConfig{
			RapidClicks:          getEnvAsInt("MONITOR_RAPID_CLICKS", 20),
			RapidNavigation:      getEnvAsInt("MONITOR_RAPID_NAVIGATION", 10),
			SuspiciousKeystrokes: getEnvAsInt("MONITOR_SUSPICIOUS_KEYSTROKES", 50),
			DevToolsDetection:    getEnvAsBool("MONITOR_DEVTOOLS_DETECTION", true),
			ConsoleInteraction:   getEnvAsBool("MONITOR_CONSOLE_INTERACTION", true),
			NetworkMonitoring:    getEnvAsBool("MONITOR_NETWORK_MONITORING", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, sqlite, postgres, redis (got %q)", c.Store.Backend)
	}

	if c.Store.Backend == "postgres" && c.Store.PGPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required for the postgres store backend")
	}

	if c.Guard.ChallengeThreshold >= c.Guard.MaxAttempts {
		return fmt.Errorf("GUARD_CHALLENGE_THRESHOLD (%d) must be below GUARD_MAX_ATTEMPTS (%d)",
			c.Guard.ChallengeThreshold, c.Guard.MaxAttempts)
	}
	if c.Guard.LockoutMultiplier < 1 {
		return fmt.Errorf("GUARD_LOCKOUT_MULTIPLIER must be at least 1 (got %g)", c.Guard.LockoutMultiplier)
	}

	return nil
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

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
