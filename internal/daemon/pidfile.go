package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrDaemonAlreadyRunning indicates another daemon process holds the PID file.
var ErrDaemonAlreadyRunning = errors.New("daemon already running")

// PIDFile manages the daemon's process ID file.
type PIDFile struct {
	path string
}

// NewPIDFile creates a PIDFile at the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Write records the current process's PID via temp-file-and-rename so a
// crash never leaves a partial file.
func (p *PIDFile) Write() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID file directory; %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file; %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename PID file; %w", err)
	}
	return nil
}

// Read returns the recorded PID.
func (p *PIDFile) Read() (int, error) {
	content, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s; %w", p.path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID %d in %s", pid, p.path)
	}
	return pid, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file; %w", err)
	}
	return nil
}

// IsStale reports whether the file names a process that no longer exists.
// A missing file is not stale.
func (p *PIDFile) IsStale() (bool, error) {
	pid, err := p.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	// Signal 0 probes existence without delivering anything.
	err = syscall.Kill(pid, 0)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, syscall.ESRCH):
		return true, nil
	case errors.Is(err, syscall.EPERM):
		// The process exists under another user.
		return false, nil
	default:
		return false, fmt.Errorf("failed to probe process %d; %w", pid, err)
	}
}

// CheckAndClaim claims the PID file for this process: missing or stale files
// are (re)written, an active file returns ErrDaemonAlreadyRunning.
func (p *PIDFile) CheckAndClaim() error {
	if _, err := os.Stat(p.path); os.IsNotExist(err) {
		return p.Write()
	}

	stale, err := p.IsStale()
	if err != nil {
		return fmt.Errorf("failed to check PID file; %w", err)
	}
	if stale {
		if err := p.Remove(); err != nil {
			return fmt.Errorf("failed to remove stale PID file; %w", err)
		}
		return p.Write()
	}
	return ErrDaemonAlreadyRunning
}
