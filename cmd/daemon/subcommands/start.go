package subcommands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/flapboard/internal/config"
	"github.com/leefowlercu/flapboard/internal/daemon"
)

// StartCmd starts the daemon in foreground mode.
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in foreground mode",
	Long: "Start the daemon in foreground mode.\n\n" +
		"The daemon runs in the foreground, writing logs to the configured log file and " +
		"exposing health and metrics endpoints. Use standard backgrounding methods like " +
		"'&', 'nohup', or a service manager (systemd, launchd) to run it in the background.",
	Example: `  # Start daemon in foreground
  flapboard daemon start

  # Start daemon under nohup
  nohup flapboard daemon start &`,
	PreRunE: validateStart,
	RunE:    runStart,
}

func validateStart(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting daemon",
		"http_bind", cfg.Daemon.HTTPBind,
		"http_port", cfg.Daemon.HTTPPort,
		"pid_file", cfg.Daemon.PIDFile)

	runtime := daemon.NewRuntime(cfg, slog.Default())
	if err := runtime.Run(ctx); err != nil {
		return fmt.Errorf("daemon error; %w", err)
	}
	return nil
}
