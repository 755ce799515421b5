// Package config loads runtime settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var defaultCORSOrigins = []string{
	"http://localhost:3001",
	"http://127.0.0.1:3001",
	"https://achivment-front.vercel.app",
	"https://achivment-front-git-main-achivment-front.vercel.app",
	"https://achivment-front-git-main-adilek96s-projects.vercel.app",
	"https://penny-test.fvds.ru",
	"https://test.aquadaddy.app",
}

type Config struct {
	Port              string
	DatabaseURL       string
	StoreDriver       string
	CORSOrigins       []string
	HeartbeatInterval time.Duration
	RateLimitRPS      float64
	RateLimitBurst    int
	MetricsUser       string
	MetricsPass       string
	PprofSecret       string
	FCMCredentials    string
	FCMCredentialFile string
	DBMaxConns        int32
	DBMinConns        int32
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup. Malformed values are errors rather than
// silently replaced by defaults.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	var errs []error

	cfg := &Config{
		Port:              get("PORT", "3005"),
		DatabaseURL:       get("DATABASE_URL", ""),
		StoreDriver:       strings.ToLower(get("STORE_DRIVER", DriverPostgres)),
		CORSOrigins:       splitList(get("CORS_ORIGINS", "")),
		MetricsUser:       get("METRICS_USER", ""),
		MetricsPass:       get("METRICS_PASS", ""),
		PprofSecret:       get("PPROF_SECRET", ""),
		FCMCredentials:    get("FCM_SERVICE_ACCOUNT_JSON", ""),
		FCMCredentialFile: get("FCM_CREDENTIALS_FILE", "./serviceAccountKey.json"),
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = append([]string(nil), defaultCORSOrigins...)
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be a number, got %q", cfg.Port))
	}

	interval, err := time.ParseDuration(get("HEARTBEAT_INTERVAL", "30s"))
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("HEARTBEAT_INTERVAL: %w", err))
	case interval <= 0:
		errs = append(errs, errors.New("HEARTBEAT_INTERVAL must be positive"))
	}
	cfg.HeartbeatInterval = interval

	rps, err := strconv.ParseFloat(get("RATE_LIMIT_RPS", "5"), 64)
	if err != nil || rps <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be a positive number"))
	}
	cfg.RateLimitRPS = rps

	cfg.RateLimitBurst = positiveInt(get("RATE_LIMIT_BURST", "30"), "RATE_LIMIT_BURST", &errs)
	cfg.DBMaxConns = int32(positiveInt(get("DB_MAX_CONNS", "25"), "DB_MAX_CONNS", &errs))
	cfg.DBMinConns = int32(positiveInt(get("DB_MIN_CONNS", "5"), "DB_MIN_CONNS", &errs))
	if cfg.DBMinConns > cfg.DBMaxConns {
		errs = append(errs, errors.New("DB_MIN_CONNS must not exceed DB_MAX_CONNS"))
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL environment variable is not set"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.StoreDriver))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func positiveInt(raw, key string, errs *[]error) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive integer, got %q", key, raw))
		return 0
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Addr is the listen address for http.Server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// PushEnabled reports whether FCM credentials were supplied inline or the
// credentials file exists.
func (c *Config) PushEnabled() bool {
	if c.FCMCredentials != "" {
		return true
	}
	_, err := os.Stat(c.FCMCredentialFile)
	return err == nil
}
