package effect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// PtySessionAdapter backs local dry-run/demo mode with a real
// pseudo-terminal per session instead of shelling to tmux, so the demo
// harness and tests exercise realistic pane semantics (a live process,
// real exit codes) without requiring a terminal multiplexer to be
// installed on the machine running the daemon.
type PtySessionAdapter struct {
	mu       sync.Mutex
	sessions map[string]*ptySession
}

type ptySession struct {
	cmd  *exec.Cmd
	f    *os.File
	buf  []byte
	dead bool
	code int
}

func NewPtySessionAdapter() *PtySessionAdapter {
	return &PtySessionAdapter{sessions: map[string]*ptySession{}}
}

func (p *PtySessionAdapter) Spawn(ctx context.Context, name, cwd string, cmd []string, env map[string]string) (string, error) {
	if len(cmd) == 0 {
		cmd = []string{"sleep", "infinity"}
	}
	c := exec.Command(cmd[0], cmd[1:]...)
	c.Dir = cwd
	c.Env = envSlice(env)
	f, err := pty.Start(c)
	if err != nil {
		return "", fmt.Errorf("pty start: %w", err)
	}
	sess := &ptySession{cmd: c, f: f}
	p.mu.Lock()
	p.sessions[name] = sess
	p.mu.Unlock()

	go p.drain(name, sess)
	return name, nil
}

func (p *PtySessionAdapter) drain(name string, sess *ptySession) {
	buf := make([]byte, 4096)
	for {
		n, err := sess.f.Read(buf)
		if n > 0 {
			p.mu.Lock()
			sess.buf = append(sess.buf, buf[:n]...)
			p.mu.Unlock()
		}
		if err != nil {
			break
		}
	}
	_ = sess.cmd.Wait()
	p.mu.Lock()
	sess.dead = true
	if sess.cmd.ProcessState != nil {
		sess.code = sess.cmd.ProcessState.ExitCode()
	}
	p.mu.Unlock()
}

func (p *PtySessionAdapter) get(sessionID string) (*ptySession, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	return s, ok
}

func (p *PtySessionAdapter) SendBytes(ctx context.Context, sessionID string, data []byte) error {
	s, ok := p.get(sessionID)
	if !ok {
		return fmt.Errorf("unknown pty session %q", sessionID)
	}
	_, err := s.f.Write(data)
	return err
}

func (p *PtySessionAdapter) SendText(ctx context.Context, sessionID, text string, enter bool) error {
	if enter {
		text += "\r"
	}
	return p.SendBytes(ctx, sessionID, []byte(text))
}

func (p *PtySessionAdapter) Kill(ctx context.Context, sessionID string) error {
	s, ok := p.get(sessionID)
	if !ok {
		return nil
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.f.Close()
	p.mu.Lock()
	delete(p.sessions, sessionID)
	p.mu.Unlock()
	return nil
}

func (p *PtySessionAdapter) IsAlive(ctx context.Context, sessionID string) (bool, error) {
	s, ok := p.get(sessionID)
	if !ok {
		return false, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return !s.dead, nil
}

func (p *PtySessionAdapter) CapturePane(ctx context.Context, sessionID string) (string, error) {
	s, ok := p.get(sessionID)
	if !ok {
		return "", fmt.Errorf("unknown pty session %q", sessionID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(s.buf), nil
}

func (p *PtySessionAdapter) HasProcess(ctx context.Context, sessionID, processName string) (bool, error) {
	s, ok := p.get(sessionID)
	if !ok {
		return false, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return !s.dead && s.cmd.Path != "", nil
}

func (p *PtySessionAdapter) LastExitCode(ctx context.Context, sessionID string) (int, bool, error) {
	s, ok := p.get(sessionID)
	if !ok {
		return 0, false, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return s.code, s.dead, nil
}

func (p *PtySessionAdapter) ApplyCosmetics(ctx context.Context, sessionID string, cosmetics map[string]string) error {
	return nil // pty sessions have no multiplexer-level cosmetics to set
}
