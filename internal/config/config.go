package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Markup policy names accepted in MARKUP_POLICY.
const (
	PolicyOverheadContingency = "overhead_contingency"
	PolicyFlatMargin          = "flat_margin"
)

type Config struct {
	DBPath    string
	DataDir   string
	OutputDir string

	ReferenceBaseURL      string
	ReferenceAPIToken     string
	ReferenceRateLimitRPS int
	ReferenceTimeoutMs    int

	MarkupPolicy     string
	MatchTopN        int
	ScanWindowDays   int
	DefaultQuantityM float64

	RefreshIntervalSec int

	HTTPHost     string
	HTTPPort     int
	AllowOrigins []string

	LogLevel string
	LogFile  string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		DataDir:   getEnv("DATA_DIR", filepath.Join(cwd, "data")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		ReferenceBaseURL:      getEnv("REFERENCE_BASE_URL", ""),
		ReferenceAPIToken:     getEnv("REFERENCE_API_TOKEN", ""),
		ReferenceRateLimitRPS: getEnvInt("REFERENCE_RATE_LIMIT_RPS", 5),
		ReferenceTimeoutMs:    getEnvInt("REFERENCE_TIMEOUT_MS", 30000),

		MarkupPolicy:     strings.ToLower(strings.TrimSpace(getEnv("MARKUP_POLICY", PolicyOverheadContingency))),
		MatchTopN:        getEnvInt("MATCH_TOP_N", 3),
		ScanWindowDays:   getEnvInt("SCAN_WINDOW_DAYS", 90),
		DefaultQuantityM: getEnvFloat("DEFAULT_QUANTITY_M", 1000),

		RefreshIntervalSec: getEnvInt("REFRESH_INTERVAL_SEC", 60),

		HTTPHost:     getEnv("HTTP_HOST", "127.0.0.1"),
		HTTPPort:     getEnvInt("HTTP_PORT", 8080),
		AllowOrigins: splitList(getEnv("ALLOW_ORIGINS", "*")),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", filepath.Join("logs", "rfpquote.log")),
	}

	switch cfg.MarkupPolicy {
	case PolicyOverheadContingency, PolicyFlatMargin:
	default:
		return Config{}, fmt.Errorf("unsupported MARKUP_POLICY: %q", cfg.MarkupPolicy)
	}
	if cfg.MatchTopN <= 0 {
		cfg.MatchTopN = 3
	}

	return cfg, nil
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort) }

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
