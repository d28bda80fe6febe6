package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/rosterload/internal/app"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		file   string
		dryRun bool
		asJSON bool
		atomic bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import one workbook or JSON document and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			if cmd.Flags().Changed("atomic") {
				c.cfg.Import.Atomic = atomic
			}

			a, err := app.New(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Shutdown(context.WithoutCancel(cmd.Context())) }()

			update, runErr := a.Service.RunImport(cmd.Context(), filepath.Base(file), payload, dryRun)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(update); err != nil {
					return err
				}
			} else {
				writeReport(out, update)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the .xlsx workbook or .json document (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse, classify and transform without writing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the final progress update as JSON")
	cmd.Flags().BoolVar(&atomic, "atomic", true, "Clear and load in one transaction (overrides IMPORT_ATOMIC)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
