package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cardsync/internal/domain"
	"cardsync/internal/export"
)

var (
	syncFrom     string
	syncStrategy string
)

var syncCmd = &cobra.Command{
	Use:   "sync [images...]",
	Short: "Reconcile records into Airtable",
	Long: `Sync extracts the given images and reconciles the records into Airtable.
With --from, records are read from a saved extracted_data.json or an .xlsx
sheet instead, and no model call is made.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if syncFrom == "" && len(args) == 0 {
			return fmt.Errorf("give image paths or --from")
		}
		if syncFrom != "" && len(args) > 0 {
			return fmt.Errorf("image paths and --from are mutually exclusive")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, logger, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer func() { _ = logger.Sync() }()

		var report *domain.SyncReport
		if syncFrom != "" {
			records, err := readRecords(syncFrom)
			if err != nil {
				return err
			}
			report = a.Reconciler.Reconcile(ctx, records)
		} else {
			id, _, err := extractImages(ctx, a, args, domain.Strategy(syncStrategy))
			if err != nil {
				return err
			}
			defer clearRun(ctx, a, logger, id)
			report, err = a.Runs.Sync(ctx, id)
			if err != nil {
				return err
			}
		}

		printReport(cmd.OutOrStdout(), report)
		if len(report.ChunkFailures) > 0 || report.ReadFailed {
			return fmt.Errorf("sync finished with store errors")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "read records from a .json artifact or .xlsx sheet")
	syncCmd.Flags().StringVar(&syncStrategy, "strategy", "", "extraction strategy: ocr or vision (default from config)")
}

// readRecords loads records from a JSON artifact or a spreadsheet.
func readRecords(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return export.ReadXLSX(f)
	default:
		return export.ReadJSON(f)
	}
}

func printReport(out io.Writer, report *domain.SyncReport) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tEMAIL\tMESSAGE")
	for _, r := range report.Results {
		pos := "-"
		if r.Index >= 0 {
			pos = fmt.Sprint(r.Index + 1)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", pos, r.Status, r.Email, r.Message)
	}
	_ = tw.Flush()

	c := report.Counts()
	fmt.Fprintf(out, "\nnew: %d  updated: %d  skipped: %d  errors: %d  failed: %d\n",
		c.New, c.Updated, c.Skipped, c.Errors, c.Failed)
	if report.ReadFailed {
		fmt.Fprintln(out, "warning: existing rows could not be read; every record was treated as new")
	}
	for _, f := range report.ChunkFailures {
		fmt.Fprintf(out, "failed %s chunk %d (%d records): %s\n", f.Operation, f.Chunk, f.Size, f.Error)
	}
}
