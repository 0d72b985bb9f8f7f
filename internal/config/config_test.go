package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/supplierbot/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func validConfig() *Config {
	c := &Config{}
	c.LoadDefaults()
	c.TelegramToken = "123:abc"
	c.SpreadsheetID = "sid"
	c.GoogleKeyJSON = "{}"
	c.S3Bucket = "catalog"
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()

	assert.Equal(t, TransportTelegram, c.Transport)
	assert.Equal(t, ModePoll, c.TelegramMode)
	assert.Equal(t, StoreSheets, c.StoreDriver)
	assert.Equal(t, ImageS3, c.ImageDriver)
	assert.Equal(t, "supplier_bot/", c.S3Prefix)
	assert.Equal(t, 30*time.Minute, c.SessionTTL)
	assert.Equal(t, "json", c.LogFormat)
}

func TestParseFile_JSON(t *testing.T) {
	b, err := json.Marshal(map[string]any{
		"transport":    "console",
		"store_driver": "sqlite",
		"database_dsn": "file:bot.db",
		"session_ttl":  "5m",
		"poll_timeout": 1000000000,
		"send_rate":    5.5,
	})
	require.NoError(t, err)
	path := writeTempFile(t, "cfg.json", string(b))

	c := &Config{}
	c.LoadDefaults()
	require.NoError(t, parseFile(c, []string{"-config", path}))

	assert.Equal(t, TransportConsole, c.Transport)
	assert.Equal(t, StoreSQLite, c.StoreDriver)
	assert.Equal(t, "file:bot.db", c.DatabaseDSN)
	assert.Equal(t, 5*time.Minute, c.SessionTTL)
	assert.Equal(t, time.Second, c.PollTimeout)
	assert.Equal(t, 5.5, c.SendRate)
	assert.Equal(t, ImageS3, c.ImageDriver, "absent keys keep defaults")
}

func TestParseFile_YAML(t *testing.T) {
	path := writeTempFile(t, "cfg.yaml", `
image_driver: memory
s3_prefix: pics/
session_ttl: 0
session_sweep_interval: 10s
log_format: text
`)

	c := &Config{}
	c.LoadDefaults()
	require.NoError(t, parseFile(c, []string{"-c", path}))

	assert.Equal(t, ImageMemory, c.ImageDriver)
	assert.Equal(t, "pics/", c.S3Prefix)
	assert.Equal(t, time.Duration(0), c.SessionTTL, "explicit zero disables expiry")
	assert.Equal(t, 10*time.Second, c.SessionSweepInterval)
	assert.Equal(t, "text", c.LogFormat)
}

func TestParseFile_Errors(t *testing.T) {
	c := &Config{}

	require.NoError(t, parseFile(c, nil), "no flag, no file")

	err := parseFile(c, []string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)

	bad := writeTempFile(t, "bad.json", `{"session_ttl": "forever"}`)
	err = parseFile(c, []string{"-c", bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestParseEnv(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()

	err := parseEnv(c, mapLookup(map[string]string{
		"BOT_TOKEN":        "123:abc",
		"GOOGLE_KEY":       `{"type":"service_account"}`,
		"SPREADSHEET_ID":   "sid",
		"S3_BUCKET":        "catalog",
		"SESSION_TTL":      "45m",
		"SEND_RATE":        "10",
		"LOG_LEVEL":        "",
		"S3_BASE_ENDPOINT": "http://minio:9000",
	}))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", c.TelegramToken)
	assert.Equal(t, `{"type":"service_account"}`, c.GoogleKeyJSON)
	assert.Equal(t, "sid", c.SpreadsheetID)
	assert.Equal(t, "catalog", c.S3Bucket)
	assert.Equal(t, 45*time.Minute, c.SessionTTL)
	assert.Equal(t, 10.0, c.SendRate)
	assert.Equal(t, "info", c.LogLevel, "empty values are ignored")
	assert.Equal(t, "http://minio:9000", c.S3BaseEndpoint)
}

func TestParseEnv_BadValues(t *testing.T) {
	c := &Config{}
	assert.Error(t, parseEnv(c, mapLookup(map[string]string{"SESSION_TTL": "soon"})))
	assert.Error(t, parseEnv(c, mapLookup(map[string]string{"SEND_RATE": "fast"})))
}

func TestParseFlags(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()

	err := parseFlags(c, []string{"-c", "ignored.json", "-t", "console", "-s=memory", "-i", "memory", "-l", "debug", "-unknown", "x"})
	require.NoError(t, err)

	assert.Equal(t, TransportConsole, c.Transport)
	assert.Equal(t, StoreMemory, c.StoreDriver)
	assert.Equal(t, ImageMemory, c.ImageDriver)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"telegram without token", func(c *Config) { c.TelegramToken = "" }, "telegram_token"},
		{"webhook without url", func(c *Config) { c.TelegramMode = ModeWebhook; c.ListenAddr = ":8080" }, "webhook_url"},
		{"unknown mode", func(c *Config) { c.TelegramMode = "push" }, "telegram_mode"},
		{"unknown transport", func(c *Config) { c.Transport = "irc" }, "transport"},
		{"sheets without id", func(c *Config) { c.SpreadsheetID = "" }, "spreadsheet_id"},
		{"sheets without credentials", func(c *Config) { c.GoogleKeyJSON = "" }, "google_key_json"},
		{"sql without dsn", func(c *Config) { c.StoreDriver = StorePostgres }, "database_dsn"},
		{"unknown store", func(c *Config) { c.StoreDriver = "csv" }, "store_driver"},
		{"s3 without bucket", func(c *Config) { c.S3Bucket = "" }, "s3_bucket"},
		{"unknown image host", func(c *Config) { c.ImageDriver = "cloud" }, "image_driver"},
		{"negative ttl", func(c *Config) { c.SessionTTL = -time.Second }, "session_ttl"},
		{"ttl without sweep", func(c *Config) { c.SessionSweepInterval = 0 }, "session_sweep_interval"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrorValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ConsoleWithMemoryDrivers(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()
	c.Transport = TransportConsole
	c.StoreDriver = StoreMemory
	c.ImageDriver = ImageMemory
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempFile(t, "cfg.json", `{"store_driver":"xlsx","xlsx_path":"from-file.xlsx","log_level":"warn"}`)

	t.Setenv("TRANSPORT", "console")
	t.Setenv("IMAGE_DRIVER", "memory")
	t.Setenv("XLSX_PATH", "from-env.xlsx")

	cfg, err := LoadConfig([]string{"-c", path, "-x", "from-flag.xlsx"})
	require.NoError(t, err)

	assert.Equal(t, StoreXLSX, cfg.StoreDriver, "file over defaults")
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, TransportConsole, cfg.Transport, "env over defaults")
	assert.Equal(t, "from-flag.xlsx", cfg.XLSXPath, "flags over env over file")
}

func TestLoadConfig_InvalidIsRejected(t *testing.T) {
	t.Setenv("TRANSPORT", "telegram")
	t.Setenv("BOT_TOKEN", "")

	_, err := LoadConfig([]string{"-s", "memory", "-i", "memory"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorValidation)
}
