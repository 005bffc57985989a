package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "daemon.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Write())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_ReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))

	_, err := NewPIDFile(path).Read()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("-4"), 0o644))
	_, err = NewPIDFile(path).Read()
	assert.Error(t, err)
}

func TestPIDFile_RemoveMissingIsNoError(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "daemon.pid"))
	assert.NoError(t, pf.Remove())
}

func TestPIDFile_IsStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	pf := NewPIDFile(path)

	// Missing file is not stale.
	stale, err := pf.IsStale()
	require.NoError(t, err)
	assert.False(t, stale)

	// Our own live PID is not stale.
	require.NoError(t, pf.Write())
	stale, err = pf.IsStale()
	require.NoError(t, err)
	assert.False(t, stale)

	// An impossible PID is stale.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(1<<21)), 0o644))
	stale, err = pf.IsStale()
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestPIDFile_CheckAndClaim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	pf := NewPIDFile(path)

	// Fresh claim.
	require.NoError(t, pf.CheckAndClaim())

	// Claimed by a live process (this one).
	assert.ErrorIs(t, pf.CheckAndClaim(), ErrDaemonAlreadyRunning)

	// Stale file is reclaimed.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(1<<21)), 0o644))
	require.NoError(t, pf.CheckAndClaim())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}
