package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "sqlite", cfg.Store.Backend)

	assert.Equal(t, 5, cfg.Guard.MaxAttempts)
	assert.Equal(t, 3, cfg.Guard.ChallengeThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Guard.InitialLockout)
	assert.Equal(t, 2.0, cfg.Guard.LockoutMultiplier)
	assert.Equal(t, 10, cfg.Guard.RapidFireThreshold)
	assert.Equal(t, 60*time.Second, cfg.Guard.RapidFireWindow)
	assert.Equal(t, 5, cfg.Guard.DistributedThreshold)
	assert.Equal(t, 300*time.Second, cfg.Guard.DistributedWindow)

	assert.Equal(t, 20, cfg.Monitor.RapidClicks)
	assert.Equal(t, 10, cfg.Monitor.RapidNavigation)
	assert.Equal(t, 50, cfg.Monitor.SuspiciousKeystrokes)
	assert.True(t, cfg.Monitor.DevToolsDetection)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("GUARD_MAX_ATTEMPTS", "10")
	t.Setenv("GUARD_CHALLENGE_THRESHOLD", "6")
	t.Setenv("GUARD_INITIAL_LOCKOUT", "2m")
	t.Setenv("GUARD_LOCKOUT_MULTIPLIER", "1.5")
	t.Setenv("MONITOR_DEVTOOLS_DETECTION", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 10, cfg.Guard.MaxAttempts)
	assert.Equal(t, 6, cfg.Guard.ChallengeThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Guard.InitialLockout)
	assert.Equal(t, 1.5, cfg.Guard.LockoutMultiplier)
	assert.False(t, cfg.Monitor.DevToolsDetection)
}

func TestLoadInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("GUARD_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("GUARD_INITIAL_LOCKOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Guard.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Guard.InitialLockout)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "etcd")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND")
}

func TestValidateRequiresPostgresPassword(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

func TestValidateChallengeBelowMax(t *testing.T) {
	t.Setenv("GUARD_CHALLENGE_THRESHOLD", "5")
	t.Setenv("GUARD_MAX_ATTEMPTS", "5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GUARD_CHALLENGE_THRESHOLD")
}

func TestValidateLockoutMultiplier(t *testing.T) {
	t.Setenv("GUARD_LOCKOUT_MULTIPLIER", "0.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GUARD_LOCKOUT_MULTIPLIER")
}
