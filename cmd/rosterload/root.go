package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/rosterload/internal/config"
	"github.com/JonMunkholm/rosterload/internal/logging"
)

// cli carries state shared by subcommands once the root has loaded it.
type cli struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:           "rosterload",
		Short:         "Import roster spreadsheets into PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Overload(); err == nil {
				slog.Debug("loaded .env file")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			c.cfg = cfg
			return nil
		},
	}

	cmd.AddCommand(newRunCmd(c))
	cmd.AddCommand(newMigrateCmd(c))
	cmd.AddCommand(newServeCmd(c))
	cmd.AddCommand(newResetCmd(c))
	return cmd
}
