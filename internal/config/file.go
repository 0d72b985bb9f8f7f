package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/supplierbot/internal/flagx"
	"github.com/dmitrijs2005/supplierbot/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the shape of the config file. Durations use timex.Duration so
// both "90s" and integer nanoseconds are accepted. Only fields present in the
// file override the defaults.
type FileConfig struct {
	Transport       string         `json:"transport" yaml:"transport"`
	TelegramToken   string         `json:"telegram_token" yaml:"telegram_token"`
	TelegramAPIBase string         `json:"telegram_api_base" yaml:"telegram_api_base"`
	TelegramMode    string         `json:"telegram_mode" yaml:"telegram_mode"`
	WebhookURL      string         `json:"webhook_url" yaml:"webhook_url"`
	WebhookSecret   string         `json:"webhook_secret" yaml:"webhook_secret"`
	ListenAddr      string         `json:"listen_addr" yaml:"listen_addr"`
	PollTimeout     timex.Duration `json:"poll_timeout" yaml:"poll_timeout"`
	RequestTimeout  timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	SendRate        float64        `json:"send_rate" yaml:"send_rate"`

	StoreDriver           string `json:"store_driver" yaml:"store_driver"`
	SpreadsheetID         string `json:"spreadsheet_id" yaml:"spreadsheet_id"`
	SheetName             string `json:"sheet_name" yaml:"sheet_name"`
	GoogleCredentialsFile string `json:"google_credentials_file" yaml:"google_credentials_file"`
	GoogleKeyJSON         string `json:"google_key_json" yaml:"google_key_json"`
	XLSXPath              string `json:"xlsx_path" yaml:"xlsx_path"`
	DatabaseDSN           string `json:"database_dsn" yaml:"database_dsn"`

	ImageDriver    string `json:"image_driver" yaml:"image_driver"`
	S3AccessKey    string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket       string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3Prefix       string `json:"s3_prefix" yaml:"s3_prefix"`
	S3PublicURL    string `json:"s3_public_url" yaml:"s3_public_url"`

	SessionTTL           *timex.Duration `json:"session_ttl" yaml:"session_ttl"`
	SessionSweepInterval timex.Duration  `json:"session_sweep_interval" yaml:"session_sweep_interval"`
	StagingDir           string          `json:"staging_dir" yaml:"staging_dir"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// parseFile overlays the file named by -c/-config in args. YAML is used for
// .yaml and .yml files, JSON otherwise. No flag means no file.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.Transport, fc.Transport)
	setString(&cfg.TelegramToken, fc.TelegramToken)
	setString(&cfg.TelegramAPIBase, fc.TelegramAPIBase)
	setString(&cfg.TelegramMode, fc.TelegramMode)
	setString(&cfg.WebhookURL, fc.WebhookURL)
	setString(&cfg.WebhookSecret, fc.WebhookSecret)
	setString(&cfg.ListenAddr, fc.ListenAddr)
	if fc.PollTimeout.Duration != 0 {
		cfg.PollTimeout = fc.PollTimeout.Duration
	}
	if fc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.SendRate != 0 {
		cfg.SendRate = fc.SendRate
	}

	setString(&cfg.StoreDriver, fc.StoreDriver)
	setString(&cfg.SpreadsheetID, fc.SpreadsheetID)
	setString(&cfg.SheetName, fc.SheetName)
	setString(&cfg.GoogleCredentialsFile, fc.GoogleCredentialsFile)
	setString(&cfg.GoogleKeyJSON, fc.GoogleKeyJSON)
	setString(&cfg.XLSXPath, fc.XLSXPath)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)

	setString(&cfg.ImageDriver, fc.ImageDriver)
	setString(&cfg.S3AccessKey, fc.S3AccessKey)
	setString(&cfg.S3SecretKey, fc.S3SecretKey)
	setString(&cfg.S3Bucket, fc.S3Bucket)
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&cfg.S3Prefix, fc.S3Prefix)
	setString(&cfg.S3PublicURL, fc.S3PublicURL)

	// an explicit zero disables expiry, so presence matters here
	if fc.SessionTTL != nil {
		cfg.SessionTTL = fc.SessionTTL.Duration
	}
	if fc.SessionSweepInterval.Duration != 0 {
		cfg.SessionSweepInterval = fc.SessionSweepInterval.Duration
	}
	setString(&cfg.StagingDir, fc.StagingDir)

	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
