package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pulse-mcp/internal/jira"
	"pulse-mcp/internal/stats"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// DBConfig selects the SQL backend of the allocation and overview store.
type DBConfig struct {
	Driver string
	DSN    string
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Jira                jira.Config
	TimeZone            string
	Location            *time.Location
	HoursPerDay         float64
	DataPath            string
	LogDir              string
	CacheDir            string
	DB                  DBConfig
	SyncCron            string
	SyncProjects        []string
	EnableMermaidCharts bool
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for MCP servers)
	exeDir := ""
	if exePath, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	cfg, err := FromEnv(exeDir)
	if err != nil {
		return nil, err
	}

	// Ensure directories exist
	for _, dir := range []string{cfg.LogDir, cfg.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create data directory")
		}
	}
	return cfg, nil
}

// FromEnv builds the configuration from the process environment only.
// defaultDataPath is used when DATA_PATH is unset.
func FromEnv(defaultDataPath string) (*AppConfig, error) {
	dataPath := getEnv("DATA_PATH", defaultDataPath)
	if dataPath == "" {
		dataPath = "."
	}

	zoneName := getEnv("PULSE_TIMEZONE", "UTC")
	loc, err := stats.LoadZone(zoneName)
	if err != nil {
		return nil, fmt.Errorf("PULSE_TIMEZONE: %w", err)
	}

	hoursPerDay := getEnvFloat("PULSE_HOURS_PER_DAY", 8)
	if hoursPerDay <= 0 || hoursPerDay > 24 {
		return nil, fmt.Errorf("PULSE_HOURS_PER_DAY must be within (0, 24], got %v", hoursPerDay)
	}

	cfg := &AppConfig{
		Jira: jira.Config{
			BaseURL:       getEnv("JIRA_URL", ""),
			Token:         getEnv("JIRA_TOKEN", ""),
			User:          getEnv("JIRA_USER", ""),
			Password:      getEnv("JIRA_PASSWORD", ""),
			XsrfToken:     getEnv("JIRA_XSRF_TOKEN", ""),
			SessionID:     getEnv("JIRA_SESSION_ID", ""),
			RememberMe:    getEnv("JIRA_REMEMBERME_COOKIE", ""),
			GCILB:         getEnv("JIRA_GCILB", ""),
			GCLB:          getEnv("JIRA_GCLB", ""),
			RequestDelay:  time.Duration(getEnvInt("JIRA_REQUEST_DELAY_MS", 250)) * time.Millisecond,
			Concurrency:   getEnvInt("JIRA_CONCURRENCY", 6),
			EpicLinkField: getEnv("JIRA_EPIC_LINK_FIELD", ""),
		},
		TimeZone:    zoneName,
		Location:    loc,
		HoursPerDay: hoursPerDay,
		DataPath:    dataPath,
		LogDir:      getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs")),
		CacheDir:    filepath.Join(dataPath, "cache"),
		DB: DBConfig{
			Driver: getEnv("PULSE_DB_DRIVER", "sqlite"),
			DSN:    getEnv("PULSE_DB_DSN", filepath.Join(dataPath, "pulse.db")),
		},
		SyncCron:            strings.TrimSpace(getEnv("PULSE_SYNC_CRON", "")),
		SyncProjects:        splitList(getEnv("PULSE_SYNC_PROJECTS", "")),
		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", false),
	}
	if cfg.Jira.Concurrency <= 0 {
		cfg.Jira.Concurrency = 1
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-integer setting")
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric setting")
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
