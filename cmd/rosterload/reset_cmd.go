package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/rosterload/internal/admin"
	"github.com/JonMunkholm/rosterload/internal/database"
)

func newResetCmd(c *cli) *cobra.Command {
	var (
		confirm bool
		history bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all roster data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("reset deletes every store, contact and schedule entry; pass --yes to confirm")
			}

			pool, err := database.Open(cmd.Context(), c.cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			scope := database.NewScope(pool, c.cfg.Import.LockKey, true)
			result, err := admin.Reset(cmd.Context(), scope, history)
			if err != nil {
				return err
			}

			for _, table := range result.Tables {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows deleted\n", table, result.Rows[table])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the reset")
	cmd.Flags().BoolVar(&history, "history", false, "Also clear the import run log")
	return cmd
}
