package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orchestratord/oj/internal/clock"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/ipc"
	"github.com/orchestratord/oj/internal/loop"
	"github.com/orchestratord/oj/internal/model"
)

// Engine is the loop.Loop surface the daemon's IPC handlers need. Kept
// as a narrow interface so handler wiring can be tested against a fake
// without spinning up a real WAL and scheduler.
type Engine interface {
	Submit(ctx context.Context, env event.Envelope) (uint64, error)
	Snapshot() model.State
	RequestShutdown(req loop.ShutdownRequest)
}

// RegisterHandlers wires the daemon's primary IPC methods onto l,
// dispatching event-producing calls to eng.Submit and state-reading
// calls to eng.Snapshot.
func RegisterHandlers(l *ipc.Listener, eng Engine, ids clock.IDGen, clk clock.Clock) {
	l.Register("ping", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return map[string]string{"status": "ok"}, nil
	})

	l.Register("runbook.load", func(ctx context.Context, params json.RawMessage) (any, error) {
		var rb model.Runbook
		if err := json.Unmarshal(params, &rb); err != nil {
			return nil, fmt.Errorf("decoding runbook: %w", err)
		}
		env, err := event.New(event.KindRunbookLoaded, event.PayloadRunbookLoaded{Runbook: rb})
		if err != nil {
			return nil, err
		}
		seq, err := eng.Submit(ctx, env)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"seq": seq}, nil
	})

	l.Register("job.create", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			Namespace   string            `json:"namespace"`
			Kind        string            `json:"kind"`
			DisplayName string            `json:"display_name"`
			Vars        map[string]string `json:"vars"`
			RunbookHash string            `json:"runbook_hash"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("decoding job.create request: %w", err)
		}
		job := model.Job{
			ID:          ids.NewJobID(),
			Namespace:   req.Namespace,
			Kind:        req.Kind,
			DisplayName: req.DisplayName,
			Vars:        req.Vars,
			RunbookHash: req.RunbookHash,
			Status:      model.JobRunning,
		}
		env, err := event.New(event.KindJobCreated, event.PayloadJobCreated{Job: job})
		if err != nil {
			return nil, err
		}
		seq, err := eng.Submit(ctx, env)
		if err != nil {
			return nil, err
		}
		return map[string]any{"job_id": job.ID, "seq": seq}, nil
	})

	l.Register("job.cancel", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			JobID string `json:"job_id"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		env, err := event.New(event.KindJobCancel, event.PayloadJobCancel{JobID: req.JobID})
		if err != nil {
			return nil, err
		}
		seq, err := eng.Submit(ctx, env)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"seq": seq}, nil
	})

	l.Register("job.resume", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			JobID string `json:"job_id"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		env, err := event.New(event.KindJobResume, event.PayloadJobResume{JobID: req.JobID})
		if err != nil {
			return nil, err
		}
		seq, err := eng.Submit(ctx, env)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"seq": seq}, nil
	})

	l.Register("job.prune", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			Namespace string `json:"namespace"`
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, err
			}
		}
		st := eng.Snapshot()
		pruned := 0
		for id, j := range st.Jobs {
			if !j.IsTerminal() {
				continue
			}
			if req.Namespace != "" && j.Namespace != req.Namespace {
				continue
			}
			env, err := event.New(event.KindJobDeleted, event.PayloadJobDeleted{JobID: id})
			if err != nil {
				return nil, err
			}
			if _, err := eng.Submit(ctx, env); err != nil {
				return nil, err
			}
			pruned++
		}
		return map[string]int{"pruned": pruned}, nil
	})

	// command.run resolves a runbook-declared command to its job template
	// and dispatches one execution; the job id is minted here so the
	// caller can follow the job before the event is even applied.
	l.Register("command.run", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			Namespace   string            `json:"namespace"`
			Command     string            `json:"command"`
			Args        map[string]string `json:"args"`
			RunbookHash string            `json:"runbook_hash"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("decoding command.run request: %w", err)
		}
		if req.Command == "" {
			return nil, fmt.Errorf("command.run: command name is required")
		}
		jobID := ids.NewJobID()
		env, err := event.New(event.KindCommandRun, event.PayloadCommandRun{
			Namespace: req.Namespace, CommandName: req.Command,
			Args: req.Args, JobID: jobID, RunbookHash: req.RunbookHash,
		})
		if err != nil {
			return nil, err
		}
		seq, err := eng.Submit(ctx, env)
		if err != nil {
			return nil, err
		}
		return map[string]any{"job_id": jobID, "seq": seq}, nil
	})

	// event.emit is generic event injection: hook scripts and power
	// tooling submit an already-shaped event. The kind must be one the
	// materializer knows, since apply is total only over known kinds.
	l.Register("event.emit", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data,omitempty"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("decoding event.emit request: %w", err)
		}
		kind := event.Kind(req.Kind)
		if !event.Known(kind) {
			return nil, fmt.Errorf("event.emit: unknown event kind %q", req.Kind)
		}
		seq, err := eng.Submit(ctx, event.Envelope{Kind: kind, Data: req.Data})
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"seq": seq}, nil
	})

	// query is the generic state-reading endpoint: one entity kind per
	// call, optionally filtered by namespace.
	l.Register("query", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			Kind      string `json:"kind"`
			Namespace string `json:"namespace"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("decoding query request: %w", err)
		}
		return queryState(eng.Snapshot(), req.Kind, req.Namespace)
	})

	l.Register("agentrun.create", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			Namespace string `json:"namespace"`
			AgentName string `json:"agent_name"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		run := model.AgentRun{
			ID:        ids.NewAgentRunID(),
			Namespace: req.Namespace,
			AgentID:   ids.NewAgentID(),
			AgentName: req.AgentName,
			Status:    model.JobRunning,
			CreatedAt: clk.Now(),
			UpdatedAt: clk.Now(),
		}
		env, err := event.New(event.KindAgentRunCreated, event.PayloadAgentRunCreated{Run: run})
		if err != nil {
			return nil, err
		}
		seq, err := eng.Submit(ctx, env)
		if err != nil {
			return nil, err
		}
		return map[string]any{"run_id": run.ID, "seq": seq}, nil
	})

	l.Register("decision.resolve", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p event.PayloadDecisionResolved
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		env, err := event.New(event.KindDecisionResolved, p)
		if err != nil {
			return nil, err
		}
		seq, err := eng.Submit(ctx, env)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"seq": seq}, nil
	})

	l.Register("state.snapshot", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return eng.Snapshot(), nil
	})

	l.Register("status", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return summarizeStatus(eng.Snapshot()), nil
	})

	l.Register("shutdown", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			KillSessions bool `json:"kill_sessions"`
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, err
			}
		}
		eng.RequestShutdown(loop.ShutdownRequest{KillSessions: req.KillSessions})
		return map[string]string{"status": "shutting down"}, nil
	})
}

// queryState answers one query kind against a state snapshot. Results
// are keyed maps straight off the materialized state, filtered by
// namespace where the entity carries one.
func queryState(st model.State, kind, namespace string) (any, error) {
	switch kind {
	case "jobs":
		out := map[string]model.Job{}
		for id, j := range st.Jobs {
			if namespace == "" || j.Namespace == namespace {
				out[id] = j
			}
		}
		return out, nil
	case "agents":
		out := map[string]model.AgentInstance{}
		for id, a := range st.Agents {
			if namespace == "" || a.Namespace == namespace {
				out[id] = a
			}
		}
		return out, nil
	case "sessions":
		return st.Sessions, nil
	case "workspaces":
		out := map[string]model.Workspace{}
		for id, w := range st.Workspaces {
			if namespace == "" || w.Namespace == namespace {
				out[id] = w
			}
		}
		return out, nil
	case "workers":
		out := map[string]model.Worker{}
		for key, w := range st.Workers {
			if namespace == "" || w.Namespace == namespace {
				out[key] = w
			}
		}
		return out, nil
	case "queues":
		out := map[string]model.QueueState{}
		for key, q := range st.Queues {
			if namespace == "" || q.Namespace == namespace {
				out[key] = q
			}
		}
		return out, nil
	case "crons":
		out := map[string]model.Cron{}
		for key, c := range st.Crons {
			if namespace == "" || c.Namespace == namespace {
				out[key] = c
			}
		}
		return out, nil
	case "decisions":
		out := map[string]model.Decision{}
		for id, d := range st.Decisions {
			if namespace == "" || d.Namespace == namespace {
				out[id] = d
			}
		}
		return out, nil
	case "runs":
		out := map[string]model.AgentRun{}
		for id, r := range st.AgentRuns {
			if namespace == "" || r.Namespace == namespace {
				out[id] = r
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("query: unknown kind %q", kind)
	}
}

// namespaceStatus is the per-namespace tally the status command and the
// status IPC method report.
type namespaceStatus struct {
	Jobs      int `json:"jobs"`
	Running   int `json:"running"`
	Waiting   int `json:"waiting"`
	Workers   int `json:"workers"`
	Crons     int `json:"crons"`
	AgentRuns int `json:"agent_runs"`
}

func summarizeStatus(st model.State) map[string]namespaceStatus {
	out := map[string]namespaceStatus{}
	bump := func(ns string) namespaceStatus {
		s := out[ns]
		return s
	}
	for _, j := range st.Jobs {
		s := bump(j.Namespace)
		s.Jobs++
		if j.Status == model.JobRunning {
			s.Running++
		}
		if j.Status == model.JobWaiting {
			s.Waiting++
		}
		out[j.Namespace] = s
	}
	for _, w := range st.Workers {
		s := bump(w.Namespace)
		s.Workers++
		out[w.Namespace] = s
	}
	for _, c := range st.Crons {
		s := bump(c.Namespace)
		s.Crons++
		out[c.Namespace] = s
	}
	for _, r := range st.AgentRuns {
		s := bump(r.Namespace)
		s.AgentRuns++
		out[r.Namespace] = s
	}
	return out
}
