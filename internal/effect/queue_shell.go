package effect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// shellQueueTimeout bounds list/take shell commands — external queue
// commands are expected to be thin wrappers over a ticketing system's
// CLI, not long-running jobs.
const shellQueueTimeout = 10 * time.Second

// ShellQueueAdapter implements QueueAdapter for external queues: list
// runs the runbook-declared shell command and parses its stdout as a
// JSON array of {"id": ..., ...}; take runs the take command with the
// item id in the OJ_ITEM_ID environment variable and succeeds iff it
// exits zero.
type ShellQueueAdapter struct{}

func (ShellQueueAdapter) List(ctx context.Context, cmd string) ([]QueueItemRef, error) {
	ctx, cancel := context.WithTimeout(ctx, shellQueueTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, "bash", "-o", "errexit", "-o", "pipefail", "-c", cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return nil, fmt.Errorf("queue list command: %w: %s", err, stderr.String())
	}

	var raw []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, fmt.Errorf("parse queue list JSON: %w", err)
	}
	items := make([]QueueItemRef, 0, len(raw))
	for _, r := range raw {
		id, _ := r["id"].(string)
		if id == "" {
			continue
		}
		items = append(items, QueueItemRef{ID: id, Payload: r})
	}
	return items, nil
}

func (ShellQueueAdapter) Take(ctx context.Context, cmd, itemID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, shellQueueTimeout)
	defer cancel()

	c := exec.CommandContext(ctx, "bash", "-o", "errexit", "-o", "pipefail", "-c", cmd)
	c.Env = append(c.Environ(), "OJ_ITEM_ID="+itemID)
	var stderr bytes.Buffer
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return false, nil //nolint:nilerr // a non-zero exit means "not claimed", not an adapter failure
	}
	return true, nil
}
