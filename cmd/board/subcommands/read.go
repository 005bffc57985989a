package subcommands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/flapboard/internal/config"
	"github.com/leefowlercu/flapboard/internal/preview"
)

// ReadCmd shows what the device currently displays.
var ReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Show what the display currently shows",
	Long: "Show what the display currently shows.\n\n" +
		"Reads the current message from the device's local API and renders " +
		"it in the terminal.",
	Example: `  # Read the current board contents
  flapboard board read`,
	PreRunE: validateRead,
	RunE:    runRead,
}

func validateRead(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	display := displayFromConfig(config.Get())

	grid, err := display.ReadMessage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read display; %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), preview.RenderGrid(grid))
	return nil
}
