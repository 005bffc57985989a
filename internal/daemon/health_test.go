package daemon

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthManager_EmptyIsHealthy(t *testing.T) {
	m := NewHealthManager()

	status := m.Status()
	assert.Equal(t, "healthy", status.Status)
	assert.True(t, status.Ready)
	assert.Empty(t, status.Components)
}

func TestHealthManager_FailedComponentDegrades(t *testing.T) {
	m := NewHealthManager()
	m.SetHealthy("storage")
	m.SetFailed("automation", fmt.Errorf("connection refused"))

	status := m.Status()
	assert.Equal(t, "degraded", status.Status)
	assert.True(t, status.Ready, "degraded daemon still serves")
	assert.Equal(t, StatusFailed, status.Components["automation"].Status)
	assert.Equal(t, "connection refused", status.Components["automation"].Error)
	assert.Equal(t, StatusHealthy, status.Components["storage"].Status)
}

func TestHealthManager_RecoveryRestoresHealthy(t *testing.T) {
	m := NewHealthManager()
	m.SetFailed("automation", fmt.Errorf("down"))
	m.SetHealthy("automation")

	status := m.Status()
	assert.Equal(t, "healthy", status.Status)
}

func TestHealthManager_RepeatedReportsKeepTransitionTime(t *testing.T) {
	m := NewHealthManager()
	m.SetHealthy("display")
	first := m.Status().Components["display"].Since

	m.SetHealthy("display")
	second := m.Status().Components["display"].Since

	require.False(t, first.IsZero())
	assert.Equal(t, first, second)
}
