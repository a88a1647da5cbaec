package app

import (
	"os"
	"path/filepath"
)

// StateDir resolves the daemon's state directory, the root holding
// daemon.sock, daemon.pid, wal/, logs/, workspaces/, and agents/.
//
// Order of precedence:
// 1) OJ_STATE_DIR
// 2) XDG_STATE_HOME/oj
// 3) ~/.local/state/oj
func StateDir() (string, error) {
	if dir := os.Getenv("OJ_STATE_DIR"); dir != "" {
		return dir, nil
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "oj"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "oj"), nil
}

// EnsureStateDir creates the state directory (and its wal/, logs/,
// workspaces/, agents/ children) if missing.
func EnsureStateDir(dir string) error {
	for _, sub := range []string{"", "wal", "logs", "workspaces", "agents"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return err
		}
	}
	return nil
}

func (d Config) SockPath() string     { return filepath.Join(d.StateDir, "daemon.sock") }
func (d Config) PidPath() string      { return filepath.Join(d.StateDir, "daemon.pid") }
func (d Config) VersionPath() string  { return filepath.Join(d.StateDir, "daemon.version") }
func (d Config) LogPath() string      { return filepath.Join(d.StateDir, "daemon.log") }
func (d Config) SnapshotPath() string { return filepath.Join(d.StateDir, "wal", "snapshot.json.zst") }
func (d Config) WALPath() string      { return filepath.Join(d.StateDir, "wal", "events.wal") }
