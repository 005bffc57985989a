package subcommands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/flapboard/internal/config"
	"github.com/leefowlercu/flapboard/internal/transport"
)

// SendCmd sends text to the physical display.
var SendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send text to the display",
	Long: "Send text to the display.\n\n" +
		"Posts plain text to the device's local API; the device lays it out " +
		"itself. Each argument becomes one line.",
	Example: `  # Send a message to the board
  flapboard board send "DINNER IS READY"`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: validateSend,
	RunE:    runSend,
}

func validateSend(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	display := displayFromConfig(config.Get())

	text := strings.Join(args, "\n")
	if err := display.SendText(cmd.Context(), text); err != nil {
		return fmt.Errorf("failed to send to display; %w", err)
	}

	fmt.Println("Sent")
	return nil
}

// displayFromConfig builds a device client from the loaded configuration.
func displayFromConfig(cfg *config.Config) *transport.HTTPDisplay {
	opts := []transport.HTTPDisplayOption{
		transport.WithDisplayAPIKeyEnv(cfg.Display.APIKeyEnv),
	}
	if cfg.Display.TimeoutSeconds > 0 {
		opts = append(opts, transport.WithDisplayTimeout(
			time.Duration(cfg.Display.TimeoutSeconds)*time.Second))
	}
	return transport.NewHTTPDisplay(cfg.Display.BaseURL, opts...)
}
