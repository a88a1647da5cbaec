package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateDirPrefersOJStateDir(t *testing.T) {
	t.Setenv("OJ_STATE_DIR", "/tmp/oj-explicit")
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg")
	dir, err := StateDir()
	require.NoError(t, err)
	require.Equal(t, "/tmp/oj-explicit", dir)
}

func TestStateDirFallsBackToXDGStateHome(t *testing.T) {
	t.Setenv("OJ_STATE_DIR", "")
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg")
	dir, err := StateDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/xdg", "oj"), dir)
}

func TestStateDirFallsBackToHomeLocalState(t *testing.T) {
	t.Setenv("OJ_STATE_DIR", "")
	t.Setenv("XDG_STATE_HOME", "")
	dir, err := StateDir()
	require.NoError(t, err)
	require.Contains(t, dir, filepath.Join(".local", "state", "oj"))
}

func TestEnsureStateDirCreatesLayout(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "oj")
	require.NoError(t, EnsureStateDir(dir))
	for _, sub := range []string{"wal", "logs", "workspaces", "agents"} {
		require.DirExists(t, filepath.Join(dir, sub))
	}
}

func TestConfigPathHelpers(t *testing.T) {
	cfg := Config{StateDir: "/state"}
	require.Equal(t, "/state/daemon.sock", cfg.SockPath())
	require.Equal(t, "/state/daemon.pid", cfg.PidPath())
	require.Equal(t, "/state/daemon.version", cfg.VersionPath())
	require.Equal(t, "/state/daemon.log", cfg.LogPath())
	require.Equal(t, "/state/wal/snapshot.json.zst", cfg.SnapshotPath())
	require.Equal(t, "/state/wal/events.wal", cfg.WALPath())
}
