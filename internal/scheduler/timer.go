// Package scheduler implements the engine's in-memory timer heap:
// structured timer ids, a min-heap ordered by deadline, and a
// tick-driven drain that hands fired ids back to the event loop as
// timer:start events.
package scheduler

import (
	"fmt"
	"time"
)

// DefaultTick is the loop's timer-drain interval.
const DefaultTick = 1 * time.Second

// ID is a structured timer name of the form "kind:owner:purpose" — e.g.
// "liveness:job_1:step-heartbeat", "idle-grace:agent_3:classify",
// "queue-retry:demo/bugs:item_9", "cron:nightly-build:tick",
// "worker-poll:demo/bugs:list".
type ID string

// NewID builds a structured timer id. kind names the timer's purpose:
// "liveness", "idle-grace", "queue-retry", "cron", or "worker-poll".
func NewID(kind, owner, purpose string) ID {
	return ID(fmt.Sprintf("%s:%s:%s", kind, owner, purpose))
}

type entry struct {
	id       ID
	deadline time.Time
	index    int // heap.Interface bookkeeping
}
