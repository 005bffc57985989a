// Package daemon provides the daemon command group.
package daemon

import (
	"github.com/spf13/cobra"

	"github.com/leefowlercu/flapboard/cmd/daemon/subcommands"
)

// DaemonCmd is the parent command for daemon lifecycle operations.
var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the flapboard background daemon",
	Long: "Manage the flapboard background daemon.\n\n" +
		"The daemon refreshes the display every minute, listens to the automation bus, " +
		"and serves health and metrics endpoints over HTTP.",
}

func init() {
	DaemonCmd.AddCommand(subcommands.StartCmd)
	DaemonCmd.AddCommand(subcommands.StopCmd)
	DaemonCmd.AddCommand(subcommands.StatusCmd)
}
