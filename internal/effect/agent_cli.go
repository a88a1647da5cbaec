package effect

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CLIAgentAdapter implements AgentAdapter over a SessionAdapter: it spawns
// the agent CLI's command line inside a session, writes the per-agent
// hook settings file the CLI reads on startup (so its hook script can
// shell back to the daemon's IPC endpoint for instant agent:idle /
// agent:prompt delivery, racing the log watcher), and otherwise
// delegates session mechanics to Session. Classification itself is
// internal/watcher's job, reading the log file this adapter points at.
type CLIAgentAdapter struct {
	Session   SessionAdapter
	StateDir  string // <state>/agents/<id>/ lives under here
	SockPath  string // the daemon's own IPC socket, baked into hook scripts
}

// AgentDir returns the per-agent directory holding hook settings and the
// session log the watcher tails.
func (a *CLIAgentAdapter) AgentDir(agentID string) string {
	return AgentDir(a.StateDir, agentID)
}

func (a *CLIAgentAdapter) SessionLogPath(agentID string) string {
	return AgentSessionLogPath(a.StateDir, agentID)
}

// AgentDir and AgentSessionLogPath are package-level so reconciliation can
// rebuild a surviving agent's watch without holding a live adapter.
func AgentDir(stateDir, agentID string) string {
	return filepath.Join(stateDir, "agents", agentID)
}

func AgentSessionLogPath(stateDir, agentID string) string {
	return filepath.Join(AgentDir(stateDir, agentID), "session.log")
}

// AgentProcessName is the session-side process/window name an agent was
// spawned under, per CLIAgentAdapter.Spawn's "agent-<id>" convention.
func AgentProcessName(agentID string) string {
	return "agent-" + agentID
}

func (a *CLIAgentAdapter) Spawn(ctx context.Context, spawn SpawnAgent) (string, error) {
	dir := a.AgentDir(spawn.AgentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create agent dir: %w", err)
	}
	logPath := spawn.LogPath
	if logPath == "" {
		logPath = a.SessionLogPath(spawn.AgentID)
	}
	if err := a.installHooks(dir, spawn.AgentID, logPath); err != nil {
		return "", fmt.Errorf("install agent hooks: %w", err)
	}

	env := map[string]string{}
	for k, v := range spawn.Env {
		env[k] = v
	}
	env["OJ_AGENT_ID"] = spawn.AgentID
	env["OJ_AGENT_SETTINGS"] = filepath.Join(dir, "settings.json")
	env["OJ_AGENT_LOG"] = logPath

	name := AgentProcessName(spawn.AgentID)
	sessionID, err := a.Session.Spawn(ctx, name, spawn.Cwd, spawn.Command, env)
	if err != nil {
		return "", fmt.Errorf("spawn agent session: %w", err)
	}
	if spawn.Prompt != "" {
		if err := a.Session.SendText(ctx, sessionID, spawn.Prompt, true); err != nil {
			return "", fmt.Errorf("send agent prompt: %w", err)
		}
	}
	return sessionID, nil
}

// Reconnect, Send, and Kill all receive the agent id as their handle;
// the backing session's name is derived from it the same way Spawn
// named it, so callers never have to thread the session id separately.
func (a *CLIAgentAdapter) Reconnect(ctx context.Context, reconnect ReconnectAgent) (string, error) {
	sessionID := AgentProcessName(reconnect.AgentID)
	alive, err := a.Session.IsAlive(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !alive {
		return "", fmt.Errorf("session for agent %s is gone", reconnect.AgentID)
	}
	return sessionID, nil
}

func (a *CLIAgentAdapter) Send(ctx context.Context, handle, text string) error {
	return a.Session.SendText(ctx, AgentProcessName(handle), text, true)
}

func (a *CLIAgentAdapter) Kill(ctx context.Context, handle string) error {
	return a.Session.Kill(ctx, AgentProcessName(handle))
}

func (a *CLIAgentAdapter) LogSize(ctx context.Context, handle string) (int64, error) {
	fi, err := os.Stat(a.SessionLogPath(handle))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// installHooks writes the per-agent settings file the agent CLI reads on
// startup, pointing its hook commands at a small back-channel invocation
// of the daemon's own bootstrap CLI (ojd hook notify ...), which posts
// directly to SockPath instead of waiting for the watcher's log-tail
// fallback to notice.
func (a *CLIAgentAdapter) installHooks(dir, agentID, logPath string) error {
	settings := map[string]any{
		"session_log_path": logPath,
		"hooks": map[string]string{
			"on_idle":   fmt.Sprintf("ojd hook notify --socket %s --agent %s --event idle", a.SockPath, agentID),
			"on_prompt": fmt.Sprintf("ojd hook notify --socket %s --agent %s --event prompt", a.SockPath, agentID),
		},
	}
	raw, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "settings.json"), raw, 0o644)
}
