// Package cmd wires the flapboard CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	boardcmd "github.com/leefowlercu/flapboard/cmd/board"
	circuitcmd "github.com/leefowlercu/flapboard/cmd/circuit"
	daemoncmd "github.com/leefowlercu/flapboard/cmd/daemon"
	versioncmd "github.com/leefowlercu/flapboard/cmd/version"
	"github.com/leefowlercu/flapboard/internal/config"
	"github.com/leefowlercu/flapboard/internal/logging"
)

// logManager is created in bootstrap mode and upgraded once config loads.
var logManager *logging.Manager

var flapboardCmd = &cobra.Command{
	Use:   "flapboard",
	Short: "An ambient content daemon for split-flap displays",
	Long: "Flapboard drives a 6x22 split-flap display with AI-generated ambient content.\n\n" +
		"A background daemon refreshes the board every minute, reacts to home automation " +
		"events, rotates AI generators with provider failover, and persists circuit breaker " +
		"state so operators can silence the board or individual providers.\n\n",
	PersistentPreRunE: runInitialize,
}

func init() {
	logManager = logging.NewManager()

	flapboardCmd.AddCommand(daemoncmd.DaemonCmd)
	flapboardCmd.AddCommand(boardcmd.BoardCmd)
	flapboardCmd.AddCommand(circuitcmd.CircuitCmd)
	flapboardCmd.AddCommand(versioncmd.VersionCmd)
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	if err := config.Init(); err != nil {
		return err
	}

	cfg := config.Get()
	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.DefaultLevel
		if cfg.LogLevel != "" {
			logger.Warn("invalid log level configured, using default",
				"configured", cfg.LogLevel, "default", "info")
		}
	}

	if err := logManager.Upgrade(config.ExpandPath(cfg.LogFile), level); err != nil {
		logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
	}

	return nil
}

// Execute runs the CLI.
func Execute() error {
	flapboardCmd.SilenceErrors = true
	flapboardCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := flapboardCmd.Execute()
	if err != nil {
		cmd, _, _ := flapboardCmd.Find(os.Args[1:])
		if cmd == nil {
			cmd = flapboardCmd
		}

		fmt.Printf("Error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Printf("\n")
			cmd.SetOut(os.Stdout)
			_ = cmd.Usage()
		}
		return err
	}

	return nil
}
