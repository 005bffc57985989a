package subcommands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/flapboard/internal/breaker"
)

// ResetCmd resets a provider circuit.
var ResetCmd = &cobra.Command{
	Use:   "reset <circuit-id>",
	Short: "Reset a tripped provider circuit",
	Long: "Reset a tripped provider circuit.\n\n" +
		"Sets the circuit back to on and clears its failure and success " +
		"counters. Only provider circuits can be reset; manual circuits " +
		"are switched with 'circuit on' and 'circuit off'.",
	Example: `  # Reset the Anthropic provider circuit after an outage clears
  flapboard circuit reset PROVIDER_ANTHROPIC`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateReset,
	RunE:    runReset,
}

func validateReset(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := strings.ToUpper(args[0])

	svc, store, err := openService(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	state := svc.GetState(ctx, id)
	if state == nil {
		return fmt.Errorf("unknown circuit %q; run 'flapboard circuit list' to see known circuits", id)
	}
	if state.CircuitType != breaker.TypeProvider {
		return fmt.Errorf("circuit %s is %s, not a provider circuit; use 'circuit on' or 'circuit off'",
			id, state.CircuitType)
	}

	svc.ResetProviderCircuit(ctx, id)
	fmt.Printf("Circuit %s reset\n", id)
	return nil
}
