package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	Host string
	Port string

	DBPath string

	CORSOrigins []string

	// Provider rate limiting.
	ProviderMaxPerMinute int
	ProviderMaxPerHour   int
	ProviderMinInterval  time.Duration

	// Per-client-IP rate limiting.
	IPRateLimitEnabled bool
	IPMaxPerMinute     int

	// Gold historical backfill.
	GoldSeedStart string

	ProviderBaseURL string
}

// Load reads configuration from the environment, after opportunistically
// loading a .env file. Every variable has a working default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Host:                 envStr("SERVICE_HOST", "0.0.0.0"),
		Port:                 envStr("SERVICE_PORT", "8765"),
		DBPath:               envStr("DB_PATH", "db/assets.db"),
		CORSOrigins:          splitCSV(envStr("CORS_ORIGINS", "*")),
		ProviderMaxPerMinute: envInt("PROVIDER_MAX_PER_MINUTE", 30),
		ProviderMaxPerHour:   envInt("PROVIDER_MAX_PER_HOUR", 500),
		ProviderMinInterval:  time.Duration(envInt("PROVIDER_MIN_INTERVAL_MS", 500)) * time.Millisecond,
		IPRateLimitEnabled:   envBool("IP_RATE_LIMIT_ENABLED", true),
		IPMaxPerMinute:       envInt("IP_MAX_PER_MINUTE", 120),
		GoldSeedStart:        envStr("GOLD_SEED_START", "2020-01-01"),
		ProviderBaseURL:      envStr("PROVIDER_BASE_URL", ""),
	}, nil
}

// Addr returns the host:port the HTTP server binds.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
