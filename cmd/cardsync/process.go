package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cardsync/internal/app"
	"cardsync/internal/domain"
	"cardsync/internal/export"
	"cardsync/internal/service"
)

var (
	processOutput   string
	processStrategy string
)

var processCmd = &cobra.Command{
	Use:   "process <images...>",
	Short: "Extract records from images and write extracted_data.json",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, logger, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer func() { _ = logger.Sync() }()

		id, records, err := extractImages(ctx, a, args, domain.Strategy(processStrategy))
		if err != nil {
			return err
		}
		defer clearRun(ctx, a, logger, id)

		if err := writeArtifact(processOutput, records); err != nil {
			return err
		}
		failed := 0
		for _, r := range records {
			if r.IsError() {
				failed++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d records (%d errors) to %s\n", len(records), failed, processOutput)
		return nil
	},
}

func init() {
	processCmd.Flags().StringVarP(&processOutput, "output", "o", export.ArtifactName, "artifact path")
	processCmd.Flags().StringVar(&processStrategy, "strategy", "", "extraction strategy: ocr or vision (default from config)")
}

// extractImages creates a run from local files and processes it.
func extractImages(ctx context.Context, a *app.App, paths []string, strategy domain.Strategy) (uuid.UUID, []domain.Record, error) {
	uploads, closeAll, err := service.OpenImageFiles(paths)
	if err != nil {
		return uuid.Nil, nil, err
	}
	run, err := a.Runs.CreateRun(ctx, service.CreateRunInput{Strategy: strategy, Images: uploads})
	closeAll()
	if err != nil {
		return uuid.Nil, nil, err
	}
	records, err := a.Runs.Process(ctx, run.ID)
	if err != nil {
		_ = a.Runs.Clear(ctx, run.ID)
		return uuid.Nil, nil, err
	}
	return run.ID, records, nil
}

func clearRun(ctx context.Context, a *app.App, logger *zap.Logger, id uuid.UUID) {
	if err := a.Runs.Clear(ctx, id); err != nil {
		logger.Warn("cardsync: failed to clear run", zap.String("run_id", id.String()), zap.Error(err))
	}
}

// writeArtifact writes records as indented JSON; "-" means stdout.
func writeArtifact(path string, records []domain.Record) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return export.WriteJSON(w, records)
}
