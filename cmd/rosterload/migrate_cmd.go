package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/rosterload/internal/database"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withMigrator := func(run func(cmd *cobra.Command, m *database.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			m, err := database.NewMigrator(c.cfg.Database.URL)
			if err != nil {
				return err
			}
			defer m.Close()
			return run(cmd, m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator) error {
			results, err := m.Up(cmd.Context())
			for _, r := range results {
				writeMigration(cmd.OutOrStdout(), r)
			}
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending migrations")
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator) error {
			r, err := m.Down(cmd.Context())
			if r != nil {
				writeMigration(cmd.OutOrStdout(), r)
			}
			return err
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator) error {
			statuses, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			writeStatus(cmd.OutOrStdout(), statuses)
			return nil
		}),
	})

	return cmd
}

func writeMigration(w io.Writer, r *goose.MigrationResult) {
	if r.Source == nil {
		return
	}
	status := "OK"
	if r.Error != nil {
		status = "FAILED"
	}
	fmt.Fprintf(w, "%-6s %s %05d %s (%s)\n", status, r.Direction, r.Source.Version, r.Source.Path, r.Duration.Round(time.Millisecond))
}

func writeStatus(w io.Writer, statuses []*goose.MigrationStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%05d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	_ = tw.Flush()
}
