package subcommands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/flapboard/internal/breaker"
)

// OnCmd turns a circuit on.
var OnCmd = &cobra.Command{
	Use:   "on <circuit-id>",
	Short: "Turn a circuit on",
	Long: "Turn a circuit on.\n\n" +
		"Allows traffic through the named circuit. Circuit IDs are " +
		"case-insensitive.",
	Example: `  # Re-enable the board
  flapboard circuit on MASTER`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateSet,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCircuit(cmd.Context(), args[0], breaker.StateOn)
	},
}

// OffCmd turns a circuit off.
var OffCmd = &cobra.Command{
	Use:   "off <circuit-id>",
	Short: "Turn a circuit off",
	Long: "Turn a circuit off.\n\n" +
		"Blocks traffic through the named circuit. Turning MASTER off " +
		"silences the board entirely.",
	Example: `  # Silence the board
  flapboard circuit off MASTER

  # Stop using a provider
  flapboard circuit off PROVIDER_OPENAI`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateSet,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCircuit(cmd.Context(), args[0], breaker.StateOff)
	},
}

func validateSet(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func setCircuit(ctx context.Context, id string, state breaker.State) error {
	id = strings.ToUpper(id)

	svc, store, err := openService(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if svc.GetState(ctx, id) == nil {
		return fmt.Errorf("unknown circuit %q; run 'flapboard circuit list' to see known circuits", id)
	}

	svc.SetCircuitState(ctx, id, state)
	fmt.Printf("Circuit %s is now %s\n", id, state)
	return nil
}
