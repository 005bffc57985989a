// Package board provides the board command group.
package board

import (
	"github.com/spf13/cobra"

	"github.com/leefowlercu/flapboard/cmd/board/subcommands"
)

// BoardCmd is the parent command for direct display operations.
var BoardCmd = &cobra.Command{
	Use:   "board",
	Short: "Interact with the split-flap display directly",
	Long: "Interact with the split-flap display directly.\n\n" +
		"Preview content in the terminal, send text to the device, or read " +
		"what the device currently shows. These commands bypass the daemon.",
}

func init() {
	BoardCmd.AddCommand(subcommands.PreviewCmd)
	BoardCmd.AddCommand(subcommands.SendCmd)
	BoardCmd.AddCommand(subcommands.ReadCmd)
}
