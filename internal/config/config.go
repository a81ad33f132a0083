package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the performance console.
type Config struct {
	// Backend aggregation service
	BackendURL     string
	FetchTimeoutMS int

	// HTTP control API
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Logging
	LogLevel string
	LogFile  string

	// Dashboard layout and persistence
	LayoutFile string
	ViewsDir   string
	JournalDir string
	JournalMB  int

	// Optional integrations; empty disables them.
	NTFYEndpoint string
	CDPURL       string
	TabURLFilter string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BackendURL:       strings.TrimRight(getEnvOrDefault("CONSOLE_BACKEND_URL", "http://127.0.0.1:4000"), "/"),
		FetchTimeoutMS:   getEnvIntOrDefault("CONSOLE_FETCH_TIMEOUT_MS", 30000),
		BindAddr:         getEnvOrDefault("CONSOLE_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:   getEnvListOrDefault("CONSOLE_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192"}),
		PortAutoFallback: getEnvBoolOrDefault("CONSOLE_PORT_AUTO_FALLBACK", true),
		LogLevel:         strings.ToLower(getEnvOrDefault("CONSOLE_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("CONSOLE_LOG_FILE", "logs/perf_console.log"),
		LayoutFile:       getEnvOrDefault("CONSOLE_LAYOUT_FILE", ""),
		ViewsDir:         getEnvOrDefault("CONSOLE_VIEWS_DIR", "./views"),
		JournalDir:       getEnvOrDefault("CONSOLE_JOURNAL_DIR", ""),
		JournalMB:        getEnvIntOrDefault("CONSOLE_JOURNAL_MAX_FILE_SIZE_MB", 50),
		NTFYEndpoint:     getEnvOrDefault("CONSOLE_NTFY_ENDPOINT", ""),
		CDPURL:           strings.TrimRight(getEnvOrDefault("CONSOLE_CDP_URL", ""), "/"),
		TabURLFilter:     getEnvOrDefault("CONSOLE_TAB_URL_FILTER", "/performance"),
	}
	if cfg.FetchTimeoutMS < 1000 {
		cfg.FetchTimeoutMS = 1000
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
