package subcommands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/flapboard/internal/config"
	"github.com/leefowlercu/flapboard/internal/daemon"
)

// StatusCmd reports whether the daemon is running and its component health.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and component health",
	Long: "Show daemon status and component health.\n\n" +
		"Checks the PID file for a running process and queries the daemon's readiness " +
		"endpoint for per-component health.",
	Example: `  # Check daemon status
  flapboard daemon status`,
	PreRunE: validateStatus,
	RunE:    runStatus,
}

func validateStatus(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	pf := daemon.NewPIDFile(config.ExpandPath(cfg.Daemon.PIDFile))

	pid, err := pf.Read()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Daemon: not running")
			return nil
		}
		return fmt.Errorf("failed to read PID file; %w", err)
	}

	if !isProcessRunning(pid) {
		fmt.Printf("Daemon: not running (stale PID file, pid %d)\n", pid)
		return nil
	}

	fmt.Printf("Daemon: running (pid %d)\n", pid)

	status, err := fetchReadiness(cfg.Daemon.HTTPBind, cfg.Daemon.HTTPPort)
	if err != nil {
		fmt.Printf("Health: unavailable (%v)\n", err)
		return nil
	}

	fmt.Printf("Health: %s (uptime %s)\n", status.Status, status.Uptime.Round(time.Second))

	names := make([]string, 0, len(status.Components))
	for name := range status.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		component := status.Components[name]
		if component.Error != "" {
			fmt.Printf("  %-12s %s (%s)\n", name, component.Status, component.Error)
			continue
		}
		fmt.Printf("  %-12s %s\n", name, component.Status)
	}
	return nil
}

// fetchReadiness queries the daemon's /readyz endpoint.
func fetchReadiness(bind string, port int) (*daemon.HealthStatus, error) {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s:%d/readyz", bind, port))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("readiness endpoint returned %d", resp.StatusCode)
	}

	var status daemon.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to parse readiness response; %w", err)
	}
	return &status, nil
}
