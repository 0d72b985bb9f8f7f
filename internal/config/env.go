package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv exports the variables of path into the process environment
// without overriding ones already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// parseEnv overlays values from the environment. BOT_TOKEN and GOOGLE_KEY
// keep the names the bot has always been deployed with.
func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"TRANSPORT", &cfg.Transport},
		{"BOT_TOKEN", &cfg.TelegramToken},
		{"TELEGRAM_API_BASE", &cfg.TelegramAPIBase},
		{"TELEGRAM_MODE", &cfg.TelegramMode},
		{"WEBHOOK_URL", &cfg.WebhookURL},
		{"WEBHOOK_SECRET", &cfg.WebhookSecret},
		{"LISTEN_ADDR", &cfg.ListenAddr},
		{"STORE_DRIVER", &cfg.StoreDriver},
		{"SPREADSHEET_ID", &cfg.SpreadsheetID},
		{"SHEET_NAME", &cfg.SheetName},
		{"GOOGLE_CREDENTIALS_FILE", &cfg.GoogleCredentialsFile},
		{"GOOGLE_KEY", &cfg.GoogleKeyJSON},
		{"XLSX_PATH", &cfg.XLSXPath},
		{"DATABASE_DSN", &cfg.DatabaseDSN},
		{"IMAGE_DRIVER", &cfg.ImageDriver},
		{"S3_ACCESS_KEY", &cfg.S3AccessKey},
		{"S3_SECRET_KEY", &cfg.S3SecretKey},
		{"S3_BUCKET", &cfg.S3Bucket},
		{"S3_REGION", &cfg.S3Region},
		{"S3_BASE_ENDPOINT", &cfg.S3BaseEndpoint},
		{"S3_PREFIX", &cfg.S3Prefix},
		{"S3_PUBLIC_URL", &cfg.S3PublicURL},
		{"STAGING_DIR", &cfg.StagingDir},
		{"LOG_LEVEL", &cfg.LogLevel},
		{"LOG_FORMAT", &cfg.LogFormat},
	}
	for _, s := range strs {
		if v, ok := lookup(s.name); ok && v != "" {
			*s.dst = v
		}
	}

	durs := []struct {
		name string
		dst  *time.Duration
	}{
		{"POLL_TIMEOUT", &cfg.PollTimeout},
		{"REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"SESSION_TTL", &cfg.SessionTTL},
		{"SESSION_SWEEP_INTERVAL", &cfg.SessionSweepInterval},
	}
	for _, d := range durs {
		v, ok := lookup(d.name)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookup("SEND_RATE"); ok && v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SEND_RATE: %w", err)
		}
		cfg.SendRate = rate
	}

	return nil
}
