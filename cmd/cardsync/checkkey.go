package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkKey string

var checkKeyCmd = &cobra.Command{
	Use:   "check-key",
	Short: "Test the model API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, logger, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		defer func() { _ = logger.Sync() }()

		if err := a.Keys.Check(cmd.Context(), checkKey); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API key is working!")
		return nil
	},
}

func init() {
	checkKeyCmd.Flags().StringVar(&checkKey, "key", "", "key to test (default: configured key)")
}
