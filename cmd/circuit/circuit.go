// Package circuit provides the circuit command group.
package circuit

import (
	"github.com/spf13/cobra"

	"github.com/leefowlercu/flapboard/cmd/circuit/subcommands"
)

// CircuitCmd is the parent command for circuit breaker operations.
var CircuitCmd = &cobra.Command{
	Use:   "circuit",
	Short: "Inspect and control circuit breakers",
	Long: "Inspect and control circuit breakers.\n\n" +
		"Circuit state is persisted in the daemon's database, so changes made " +
		"here take effect on the next refresh even while the daemon runs. Turn " +
		"MASTER off to silence the board entirely, or reset a tripped provider " +
		"circuit after an outage clears.",
}

func init() {
	CircuitCmd.AddCommand(subcommands.ListCmd)
	CircuitCmd.AddCommand(subcommands.OnCmd)
	CircuitCmd.AddCommand(subcommands.OffCmd)
	CircuitCmd.AddCommand(subcommands.ResetCmd)
}
