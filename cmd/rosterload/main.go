// Command rosterload imports roster spreadsheets into PostgreSQL.
//
// Usage:
//
//	rosterload run --file roster.xlsx [--dry-run] [--json]
//	rosterload migrate up|down|status
//	rosterload serve
//	rosterload reset --yes [--history]
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/rosterload/internal/core"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
