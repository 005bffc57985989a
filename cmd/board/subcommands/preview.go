package subcommands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/flapboard/internal/preview"
)

// PreviewCmd renders text as a board frame in the terminal.
var PreviewCmd = &cobra.Command{
	Use:   "preview <text>",
	Short: "Render text as a board frame in the terminal",
	Long: "Render text as a board frame in the terminal.\n\n" +
		"Each argument becomes one board row, truncated to 22 characters. " +
		"No device is contacted.",
	Example: `  # Preview a two-line message
  flapboard board preview "HELLO" "WORLD"`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: validatePreview,
	RunE:    runPreview,
}

func validatePreview(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, "\n")
	fmt.Fprintln(cmd.OutOrStdout(), preview.RenderText(text))
	return nil
}
