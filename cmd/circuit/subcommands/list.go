package subcommands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/flapboard/internal/breaker"
	"github.com/leefowlercu/flapboard/internal/config"
	"github.com/leefowlercu/flapboard/internal/storage"
)

// ListCmd lists all circuit breakers and their state.
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all circuit breakers and their state",
	Long: "List all circuit breakers and their state.\n\n" +
		"Shows each circuit's current state, type, and failure counters.",
	Example: `  # List circuits
  flapboard circuit list`,
	PreRunE: validateList,
	RunE:    runList,
}

func validateList(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, store, err := openService(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	states := svc.ListStates(ctx)
	if len(states) == 0 {
		fmt.Println("No circuits found; has the daemon run yet?")
		return nil
	}

	fmt.Printf("%-20s %-10s %-10s %-9s %s\n", "CIRCUIT", "STATE", "TYPE", "FAILURES", "CHANGED")
	for _, cs := range states {
		fmt.Printf("%-20s %-10s %-10s %-9d %s\n",
			cs.CircuitID, cs.State, cs.CircuitType, cs.FailureCount,
			cs.StateChangedAt.Local().Format(time.RFC3339))
	}
	return nil
}

// openService opens the daemon's database and wraps it in a breaker service.
// SQLite handles concurrent access, so this is safe while the daemon runs.
func openService(ctx context.Context) (*breaker.Service, *storage.Storage, error) {
	cfg := config.Get()

	store, err := storage.Open(ctx, config.ExpandPath(cfg.Storage.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open circuit store; %w", err)
	}
	return breaker.NewService(store), store, nil
}
