package effect

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// tmuxTimeout bounds tmux-class subprocess calls.
const tmuxTimeout = 10 * time.Second

// TmuxSessionAdapter implements SessionAdapter over the tmux terminal
// multiplexer, shelling to the tmux CLI rather than linking a
// multiplexer library. Session ids are tmux session names.
type TmuxSessionAdapter struct{}

func (TmuxSessionAdapter) Spawn(ctx context.Context, name, cwd string, cmd []string, env map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, tmuxTimeout)
	defer cancel()

	args := []string{"new-session", "-d", "-s", name, "-c", cwd}
	c := exec.CommandContext(ctx, "tmux", args...)
	c.Env = envSlice(env)
	if err := runTmux(c); err != nil {
		return "", fmt.Errorf("tmux new-session: %w", err)
	}

	if len(cmd) > 0 {
		sendArgs := []string{"send-keys", "-t", name, shellQuoteJoin(cmd), "Enter"}
		c2 := exec.CommandContext(ctx, "tmux", sendArgs...)
		if err := runTmux(c2); err != nil {
			return "", fmt.Errorf("tmux send-keys (initial command): %w", err)
		}
	}
	return name, nil
}

func (TmuxSessionAdapter) SendBytes(ctx context.Context, sessionID string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, tmuxTimeout)
	defer cancel()
	c := exec.CommandContext(ctx, "tmux", "send-keys", "-t", sessionID, "-l", string(data))
	return runTmux(c)
}

func (TmuxSessionAdapter) SendText(ctx context.Context, sessionID, text string, enter bool) error {
	ctx, cancel := context.WithTimeout(ctx, tmuxTimeout)
	defer cancel()
	args := []string{"send-keys", "-t", sessionID, text}
	if enter {
		args = append(args, "Enter")
	}
	return runTmux(exec.CommandContext(ctx, "tmux", args...))
}

func (TmuxSessionAdapter) Kill(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, tmuxTimeout)
	defer cancel()
	return runTmux(exec.CommandContext(ctx, "tmux", "kill-session", "-t", sessionID))
}

func (TmuxSessionAdapter) IsAlive(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, tmuxTimeout)
	defer cancel()
	err := runTmux(exec.CommandContext(ctx, "tmux", "has-session", "-t", sessionID))
	return err == nil, nil
}

func (TmuxSessionAdapter) CapturePane(ctx context.Context, sessionID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, tmuxTimeout)
	defer cancel()
	var stdout bytes.Buffer
	c := exec.CommandContext(ctx, "tmux", "capture-pane", "-t", sessionID, "-p")
	c.Stdout = &stdout
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("tmux capture-pane: %w", err)
	}
	return stdout.String(), nil
}

func (t TmuxSessionAdapter) HasProcess(ctx context.Context, sessionID, processName string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, tmuxTimeout)
	defer cancel()
	var stdout bytes.Buffer
	c := exec.CommandContext(ctx, "tmux", "list-panes", "-t", sessionID, "-F", "#{pane_current_command}")
	c.Stdout = &stdout
	if err := c.Run(); err != nil {
		return false, nil
	}
	return strings.Contains(stdout.String(), processName), nil
}

func (t TmuxSessionAdapter) LastExitCode(ctx context.Context, sessionID string) (int, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, tmuxTimeout)
	defer cancel()
	var stdout bytes.Buffer
	c := exec.CommandContext(ctx, "tmux", "display-message", "-p", "-t", sessionID, "#{pane_dead_status}")
	c.Stdout = &stdout
	if err := c.Run(); err != nil {
		return 0, false, nil
	}
	raw := strings.TrimSpace(stdout.String())
	if raw == "" {
		return 0, false, nil
	}
	var code int
	if _, err := fmt.Sscanf(raw, "%d", &code); err != nil {
		return 0, false, nil
	}
	return code, true, nil
}

func (TmuxSessionAdapter) ApplyCosmetics(ctx context.Context, sessionID string, cosmetics map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, tmuxTimeout)
	defer cancel()
	for k, v := range cosmetics {
		if err := runTmux(exec.CommandContext(ctx, "tmux", "set-option", "-t", sessionID, k, v)); err != nil {
			return fmt.Errorf("tmux set-option %s: %w", k, err)
		}
	}
	return nil
}

func runTmux(c *exec.Cmd) error {
	var stderr bytes.Buffer
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func shellQuoteJoin(cmd []string) string {
	quoted := make([]string, len(cmd))
	for i, c := range cmd {
		quoted[i] = "'" + strings.ReplaceAll(c, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}
