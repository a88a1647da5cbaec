package clock

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGen generates ids for every addressable entity the engine creates.
// Production code uses UUIDGen; tests use SeqGen for reproducible,
// sequence-ordered golden event assertions.
//
// Ids are an entity-kind prefix over a uuid suffix rather than a
// timestamp: the WAL sequence number already provides ordering, so the
// id itself never needs to sort.
type IDGen interface {
	NewJobID() string
	NewStepID() string
	NewAgentID() string
	NewSessionID() string
	NewWorkspaceID() string
	NewDecisionID() string
	NewAgentRunID() string
	NewTimerID(purpose, owner string) string
}

// UUIDGen is the production IDGen backed by github.com/google/uuid.
type UUIDGen struct{}

func (UUIDGen) NewJobID() string       { return "job_" + uuid.NewString() }
func (UUIDGen) NewStepID() string      { return "step_" + uuid.NewString() }
func (UUIDGen) NewAgentID() string     { return "agent_" + uuid.NewString() }
func (UUIDGen) NewSessionID() string   { return "sess_" + uuid.NewString() }
func (UUIDGen) NewWorkspaceID() string { return "ws_" + uuid.NewString() }
func (UUIDGen) NewDecisionID() string  { return "dec_" + uuid.NewString() }
func (UUIDGen) NewAgentRunID() string  { return "run_" + uuid.NewString() }

func (UUIDGen) NewTimerID(purpose, owner string) string {
	return fmt.Sprintf("timer:%s:%s", purpose, owner)
}

// SeqGen is a deterministic IDGen for tests: each kind has its own
// monotonically increasing counter, formatted with a fixed width so
// golden-file comparisons stay stable.
type SeqGen struct {
	job, step, agent, sess, ws, dec, run atomic.Int64
}

func (g *SeqGen) NewJobID() string       { return fmt.Sprintf("job_%06d", g.job.Add(1)) }
func (g *SeqGen) NewStepID() string      { return fmt.Sprintf("step_%06d", g.step.Add(1)) }
func (g *SeqGen) NewAgentID() string     { return fmt.Sprintf("agent_%06d", g.agent.Add(1)) }
func (g *SeqGen) NewSessionID() string   { return fmt.Sprintf("sess_%06d", g.sess.Add(1)) }
func (g *SeqGen) NewWorkspaceID() string { return fmt.Sprintf("ws_%06d", g.ws.Add(1)) }
func (g *SeqGen) NewDecisionID() string  { return fmt.Sprintf("dec_%06d", g.dec.Add(1)) }
func (g *SeqGen) NewAgentRunID() string  { return fmt.Sprintf("run_%06d", g.run.Add(1)) }

func (g *SeqGen) NewTimerID(purpose, owner string) string {
	return fmt.Sprintf("timer:%s:%s", purpose, owner)
}
