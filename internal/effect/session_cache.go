package effect

import (
	"context"
	"time"

	"github.com/orchestratord/oj/pkg/panecache"
)

// panePollInterval bounds how fresh a cached capture is allowed to be.
// The watcher and IPC session.peek handler both call CapturePane far
// more often than a pane's content actually changes; this keeps repeat
// callers within one poll tick from spawning a second tmux subprocess.
const panePollInterval = 200 * time.Millisecond

// CachingSessionAdapter wraps a SessionAdapter and memoizes CapturePane
// per session for panePollInterval. Mutating calls (SendBytes, SendText,
// Kill) invalidate the cached entry for that session so callers never
// observe stale output after an action they just issued.
type CachingSessionAdapter struct {
	SessionAdapter
	cache panecache.Cache
}

// NewCachingSessionAdapter wraps inner with a bounded per-session pane cache.
func NewCachingSessionAdapter(inner SessionAdapter) *CachingSessionAdapter {
	return &CachingSessionAdapter{SessionAdapter: inner, cache: panecache.NewLRU(4)}
}

func (c *CachingSessionAdapter) CapturePane(ctx context.Context, sessionID string) (string, error) {
	if out, ok := c.cache.Get(sessionID, "pane"); ok {
		return out, nil
	}
	out, err := c.SessionAdapter.CapturePane(ctx, sessionID)
	if err != nil {
		return "", err
	}
	c.cache.Set(sessionID, "pane", out, panePollInterval)
	return out, nil
}

func (c *CachingSessionAdapter) SendBytes(ctx context.Context, sessionID string, data []byte) error {
	c.cache.Invalidate(sessionID, "pane")
	return c.SessionAdapter.SendBytes(ctx, sessionID, data)
}

func (c *CachingSessionAdapter) SendText(ctx context.Context, sessionID, text string, enter bool) error {
	c.cache.Invalidate(sessionID, "pane")
	return c.SessionAdapter.SendText(ctx, sessionID, text, enter)
}

func (c *CachingSessionAdapter) Kill(ctx context.Context, sessionID string) error {
	c.cache.Invalidate(sessionID, "pane")
	return c.SessionAdapter.Kill(ctx, sessionID)
}
