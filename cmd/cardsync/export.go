package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cardsync/internal/domain"
	"cardsync/internal/export"
)

var (
	exportFrom   string
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Convert an extracted_data.json artifact to csv or xlsx",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := domain.ExportFormat(strings.ToLower(exportFormat))
		switch format {
		case domain.ExportCSV, domain.ExportXLSX, domain.ExportJSON:
		default:
			return fmt.Errorf("%w: %q", domain.ErrInvalidFormat, exportFormat)
		}

		records, err := readRecords(exportFrom)
		if err != nil {
			return err
		}
		data, err := export.Render(records, format)
		if err != nil {
			return err
		}

		out := exportOutput
		if out == "" {
			out = export.BuildFilename("extracted_data", format)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", len(records), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", export.ArtifactName, "artifact to read (.json or .xlsx)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, xlsx, json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output path (default: extracted_data_<date>.<ext>)")
}
