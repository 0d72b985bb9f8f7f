package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/supplierbot/internal/flagx"
)

// parseFlags overlays command-line flags.
//
// Supported flags:
//
//	-t string   transport (telegram, console)
//	-m string   telegram mode (poll, webhook)
//	-a string   listen address for the webhook and /metrics
//	-s string   row store driver
//	-i string   image host driver
//	-d string   database DSN
//	-x string   xlsx workbook path
//	-l string   log level
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-t", "-m", "-a", "-s", "-i", "-d", "-x", "-l"})

	fs := flag.NewFlagSet("supplierbot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Transport, "t", cfg.Transport, "transport")
	fs.StringVar(&cfg.TelegramMode, "m", cfg.TelegramMode, "telegram mode")
	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "listen address")
	fs.StringVar(&cfg.StoreDriver, "s", cfg.StoreDriver, "row store driver")
	fs.StringVar(&cfg.ImageDriver, "i", cfg.ImageDriver, "image host driver")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.XLSXPath, "x", cfg.XLSXPath, "xlsx workbook path")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
