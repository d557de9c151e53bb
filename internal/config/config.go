package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains application configuration.
type Config struct {
	ListenAddr string
	JWTSecret  []byte
	TokenTTL   time.Duration

	StalenessWindow       time.Duration
	MaxCallDistanceMeters float64
	CallTTL               time.Duration
	SignalLossTimeout     time.Duration
	StoreTimeout          time.Duration
	DefaultRadiusMeters   float64

	StoreBackend  string // memory | redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from environment variables and .env.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:    getenv("ROADCALL_LISTEN", ":8080"),
		JWTSecret:     []byte(getenv("ROADCALL_JWT_SECRET", "dev-secret-change-me")),
		StoreBackend:  getenv("ROADCALL_STORE_BACKEND", "memory"),
		RedisAddr:     getenv("ROADCALL_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("ROADCALL_REDIS_PASSWORD", ""),
	}

	var err error
	if cfg.TokenTTL, err = duration("ROADCALL_TOKEN_TTL", "24h"); err != nil {
		return Config{}, err
	}
	if cfg.StalenessWindow, err = duration("ROADCALL_STALENESS_WINDOW", "30s"); err != nil {
		return Config{}, err
	}
	if cfg.CallTTL, err = duration("ROADCALL_CALL_TTL", "5m"); err != nil {
		return Config{}, err
	}
	if cfg.SignalLossTimeout, err = duration("ROADCALL_SIGNAL_LOSS_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = duration("ROADCALL_STORE_TIMEOUT", "2s"); err != nil {
		return Config{}, err
	}
	if cfg.MaxCallDistanceMeters, err = meters("ROADCALL_MAX_CALL_DISTANCE_M", "1000"); err != nil {
		return Config{}, err
	}
	if cfg.DefaultRadiusMeters, err = meters("ROADCALL_DEFAULT_RADIUS_M", "1000"); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = integer("ROADCALL_REDIS_DB", "0"); err != nil {
		return Config{}, err
	}

	switch cfg.StoreBackend {
	case "memory", "redis":
	default:
		return Config{}, fmt.Errorf("ROADCALL_STORE_BACKEND must be memory or redis, got %q", cfg.StoreBackend)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key, def string) (time.Duration, error) {
	v := getenv(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func meters(key, def string) (float64, error) {
	v := getenv(key, def)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s: invalid distance %q", key, v)
	}
	return f, nil
}

func integer(key, def string) (int, error) {
	v := getenv(key, def)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}
