package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cardsync/internal/app"
	"cardsync/internal/config"
	"cardsync/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "cardsync",
	Short: "Extract business cards and reconcile them into Airtable",
	Long: `cardsync turns photos of business cards into contact records and keeps
an Airtable table in step with them, matching rows by Primary Email.

Two extraction strategies are available:
  - ocr:    local tesseract OCR, then a text model structures the text
  - vision: the image goes straight to a vision model

Configuration comes from CARDSYNC_* environment variables or a .env file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override CARDSYNC_LOG_LEVEL")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(checkKeyCmd)
	rootCmd.AddCommand(exportCmd)
}

// setup loads config, builds the logger and wires the services.
func setup(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, err := logging.Init(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}
