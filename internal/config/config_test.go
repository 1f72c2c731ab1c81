package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

var allKeys = []string{
	"DATA_PATH", "LOGS_FOLDER", "PULSE_TIMEZONE", "PULSE_HOURS_PER_DAY",
	"PULSE_DB_DRIVER", "PULSE_DB_DSN", "PULSE_SYNC_CRON", "PULSE_SYNC_PROJECTS",
	"ENABLE_MERMAID_CHARTS", "JIRA_URL", "JIRA_TOKEN", "JIRA_REQUEST_DELAY_MS",
	"JIRA_CONCURRENCY", "JIRA_EPIC_LINK_FIELD",
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t, allKeys...)
	dir := t.TempDir()

	cfg, err := FromEnv(dir)
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Location != time.UTC || cfg.HoursPerDay != 8 {
		t.Errorf("zone/hours = %v/%v", cfg.Location, cfg.HoursPerDay)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.DSN != filepath.Join(dir, "pulse.db") {
		t.Errorf("db = %+v", cfg.DB)
	}
	if cfg.LogDir != filepath.Join(dir, "logs") || cfg.CacheDir != filepath.Join(dir, "cache") {
		t.Errorf("dirs = %s, %s", cfg.LogDir, cfg.CacheDir)
	}
	if cfg.Jira.RequestDelay != 250*time.Millisecond || cfg.Jira.Concurrency != 6 {
		t.Errorf("jira = %+v", cfg.Jira)
	}
	if cfg.SyncCron != "" || cfg.SyncProjects != nil || cfg.EnableMermaidCharts {
		t.Errorf("sync/charts should be off by default: %+v", cfg)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t, allKeys...)
	t.Setenv("PULSE_TIMEZONE", "UTC+7")
	t.Setenv("PULSE_HOURS_PER_DAY", "7.5")
	t.Setenv("PULSE_DB_DRIVER", "pgx")
	t.Setenv("PULSE_DB_DSN", "postgres://pulse@localhost/pulse")
	t.Setenv("PULSE_SYNC_CRON", " 0 */2 * * * ")
	t.Setenv("PULSE_SYNC_PROJECTS", "PAY, OPS,,")
	t.Setenv("ENABLE_MERMAID_CHARTS", "true")
	t.Setenv("JIRA_REQUEST_DELAY_MS", "40")
	t.Setenv("JIRA_CONCURRENCY", "0")
	t.Setenv("JIRA_EPIC_LINK_FIELD", "customfield_10008")

	cfg, err := FromEnv(t.TempDir())
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if _, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, cfg.Location).Zone(); offset != 7*3600 {
		t.Errorf("offset = %d", offset)
	}
	if cfg.HoursPerDay != 7.5 || cfg.DB.Driver != "pgx" || cfg.SyncCron != "0 */2 * * *" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.SyncProjects) != 2 || cfg.SyncProjects[1] != "OPS" {
		t.Errorf("projects = %q", cfg.SyncProjects)
	}
	if cfg.Jira.RequestDelay != 40*time.Millisecond || cfg.Jira.Concurrency != 1 || cfg.Jira.EpicLinkField != "customfield_10008" {
		t.Errorf("jira = %+v", cfg.Jira)
	}
	if !cfg.EnableMermaidCharts {
		t.Error("charts should be enabled")
	}
}

func TestFromEnv_Rejects(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown zone", "PULSE_TIMEZONE", "Mars/Olympus"},
		{"zero hours", "PULSE_HOURS_PER_DAY", "0"},
		{"too many hours", "PULSE_HOURS_PER_DAY", "25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t, allKeys...)
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(t.TempDir()); err == nil {
				t.Errorf("%s=%s should be rejected", tt.key, tt.value)
			}
		})
	}
}

func TestDotEnvQuoting(t *testing.T) {
	clearEnv(t, allKeys...)
	path := filepath.Join(t.TempDir(), ".env")
	content := "JIRA_TOKEN='token with \"double quotes\"'\nJIRA_URL=https://jira.example.com\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := godotenv.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg, err := FromEnv(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if want := `token with "double quotes"`; cfg.Jira.Token != want {
		t.Errorf("token = %s, want %s", cfg.Jira.Token, want)
	}
	if cfg.Jira.BaseURL != "https://jira.example.com" {
		t.Errorf("url = %s", cfg.Jira.BaseURL)
	}
}
