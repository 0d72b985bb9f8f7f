// Package config handles configuration of the bot: defaults, an optional
// JSON or YAML file, a .env file with the environment, and command-line
// flags, applied in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/dmitrijs2005/supplierbot/internal/common"
)

// Transports.
const (
	TransportTelegram = "telegram"
	TransportConsole  = "console"
)

// Telegram update delivery modes.
const (
	ModePoll    = "poll"
	ModeWebhook = "webhook"
)

// Row store drivers.
const (
	StoreSheets   = "sheets"
	StoreXLSX     = "xlsx"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Image host drivers.
const (
	ImageS3     = "s3"
	ImageMemory = "memory"
)

// Config holds runtime settings of the bot.
type Config struct {
	Transport string

	TelegramToken   string
	TelegramAPIBase string
	TelegramMode    string
	WebhookURL      string
	WebhookSecret   string
	ListenAddr      string
	PollTimeout     time.Duration
	RequestTimeout  time.Duration
	SendRate        float64

	StoreDriver           string
	SpreadsheetID         string
	SheetName             string
	GoogleCredentialsFile string
	GoogleKeyJSON         string
	XLSXPath              string
	DatabaseDSN           string

	ImageDriver    string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3Prefix       string
	S3PublicURL    string

	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	StagingDir           string

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Transport = TransportTelegram
	c.TelegramAPIBase = "https://api.telegram.org"
	c.TelegramMode = ModePoll
	c.PollTimeout = 30 * time.Second
	c.RequestTimeout = 15 * time.Second
	c.SendRate = 25

	c.StoreDriver = StoreSheets
	c.SheetName = "Sheet1"
	c.XLSXPath = "suppliers.xlsx"

	c.ImageDriver = ImageS3
	c.S3Region = "us-east-1"
	c.S3Prefix = common.ImageKeyPrefix

	c.SessionTTL = 30 * time.Minute
	c.SessionSweepInterval = time.Minute
	c.StagingDir = "staging"

	c.LogLevel = "info"
	c.LogFormat = "json"
}

// LoadConfig builds a Config from defaults, then the config file named by
// -c/-config, then .env and the environment, then flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver names and that the selected drivers have what they
// need. All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Transport {
	case TransportTelegram:
		if c.TelegramToken == "" {
			add("telegram_token is required for the telegram transport")
		}
		switch c.TelegramMode {
		case ModePoll:
		case ModeWebhook:
			if c.WebhookURL == "" {
				add("webhook_url is required in webhook mode")
			}
			if c.ListenAddr == "" {
				add("listen_addr is required in webhook mode")
			}
		default:
			add("unknown telegram_mode %q", c.TelegramMode)
		}
		if c.SendRate <= 0 {
			add("send_rate must be positive")
		}
	case TransportConsole:
	default:
		add("unknown transport %q", c.Transport)
	}

	switch c.StoreDriver {
	case StoreSheets:
		if c.SpreadsheetID == "" {
			add("spreadsheet_id is required for the sheets store")
		}
		if c.GoogleKeyJSON == "" && c.GoogleCredentialsFile == "" {
			add("google_key_json or google_credentials_file is required for the sheets store")
		}
	case StoreXLSX:
		if c.XLSXPath == "" {
			add("xlsx_path is required for the xlsx store")
		}
	case StorePostgres, StoreSQLite:
		if c.DatabaseDSN == "" {
			add("database_dsn is required for the %s store", c.StoreDriver)
		}
	case StoreMemory:
	default:
		add("unknown store_driver %q", c.StoreDriver)
	}

	switch c.ImageDriver {
	case ImageS3:
		if c.S3Bucket == "" {
			add("s3_bucket is required for the s3 image host")
		}
	case ImageMemory:
	default:
		add("unknown image_driver %q", c.ImageDriver)
	}

	if c.SessionTTL < 0 {
		add("session_ttl must not be negative")
	}
	if c.SessionTTL > 0 && c.SessionSweepInterval <= 0 {
		add("session_sweep_interval must be positive when session_ttl is set")
	}
	if !slices.Contains([]string{"json", "text"}, c.LogFormat) {
		add("unknown log_format %q", c.LogFormat)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", common.ErrorValidation, errors.Join(errs...))
}
