package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OJ_STATE_DIR", "/tmp/oj-defaults")
	t.Setenv("OJ_NAMESPACE", "")
	t.Setenv("OJ_IDLE_GRACE", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "/tmp/oj-defaults", cfg.StateDir)
	require.Equal(t, 60*time.Second, cfg.IdleGrace)
	require.Equal(t, 200*time.Millisecond, cfg.PromptPollInterval)
	require.False(t, cfg.KillSessionsOnShutdown)
}

func TestLoadConfigHonorsEnvOverrides(t *testing.T) {
	t.Setenv("OJ_STATE_DIR", "/tmp/oj-overrides")
	t.Setenv("OJ_NAMESPACE", "demo")
	t.Setenv("OJ_IDLE_GRACE", "90s")
	t.Setenv("OJ_TIMER_TICK", "2s")
	t.Setenv("OJ_KILL_SESSIONS_ON_SHUTDOWN", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "demo", cfg.Namespace)
	require.Equal(t, 90*time.Second, cfg.IdleGrace)
	require.Equal(t, 2*time.Second, cfg.TimerTick)
	require.True(t, cfg.KillSessionsOnShutdown)
}

func TestLoadConfigIgnoresUnparseableDuration(t *testing.T) {
	t.Setenv("OJ_STATE_DIR", "/tmp/oj-bad-dur")
	t.Setenv("OJ_IDLE_GRACE", "not-a-duration")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, defaultIdleGrace, cfg.IdleGrace)
}

func TestLoadConfigAppliesFileBeforeEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(
		"namespace: from-file\nidle_grace: 45s\nkill_sessions_on_shutdown: true\n"), 0o640))
	t.Setenv("OJ_STATE_DIR", dir)
	t.Setenv("OJ_NAMESPACE", "")
	t.Setenv("OJ_IDLE_GRACE", "")
	t.Setenv("OJ_KILL_SESSIONS_ON_SHUTDOWN", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Namespace)
	require.Equal(t, 45*time.Second, cfg.IdleGrace)
	require.True(t, cfg.KillSessionsOnShutdown)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("idle_grace: 45s\n"), 0o640))
	t.Setenv("OJ_STATE_DIR", dir)
	t.Setenv("OJ_IDLE_GRACE", "10s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.IdleGrace)
}

func TestEnsureDefaultConfigFileWritesOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureDefaultConfigFile(dir))
	path := filepath.Join(dir, "config.yaml")
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	require.NoError(t, os.WriteFile(path, []byte("namespace: custom\n"), 0o640))
	require.NoError(t, EnsureDefaultConfigFile(dir))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "namespace: custom\n", string(second))
}

func TestStateDirOverrideTakesPrecedenceOverEnv(t *testing.T) {
	t.Setenv("OJ_STATE_DIR", "/tmp/oj-env")
	SetStateDirOverride("/tmp/oj-cli-override")
	defer SetStateDirOverride("")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "/tmp/oj-cli-override", cfg.StateDir)
}
