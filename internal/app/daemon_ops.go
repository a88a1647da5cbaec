package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/ipc"
	"github.com/orchestratord/oj/internal/model"
)

// RegisterOpsHandlers wires the IPC methods RegisterHandlers doesn't:
// worker/cron/queue lifecycle (event-producing), decision listing (a
// state-reading query), and health/version. Split from RegisterHandlers
// because these are the ones a runbook-driven demo or CLI reaches for
// once a job is already moving, not the ones needed to get a first job
// off the ground.
func RegisterOpsHandlers(l *ipc.Listener, eng Engine, version string) {
	l.Register("health", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return map[string]string{"status": "ok", "version": version}, nil
	})
	l.Register("version", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return map[string]string{"version": version}, nil
	})

	l.Register("worker.start", func(ctx context.Context, params json.RawMessage) (any, error) {
		var w model.Worker
		if err := json.Unmarshal(params, &w); err != nil {
			return nil, fmt.Errorf("decoding worker.start request: %w", err)
		}
		w.Status = model.WorkerRunning
		return emitSeq(ctx, eng, event.KindWorkerStarted, event.PayloadWorkerStarted{Worker: w})
	})
	l.Register("worker.stop", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadWorkerName
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindWorkerStopped, req)
	})
	l.Register("worker.resize", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadWorkerResized
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindWorkerResized, req)
	})
	l.Register("worker.wake", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadWorkerName
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindWorkerWoken, req)
	})
	l.Register("worker.restart", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadWorkerName
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		w, ok := eng.Snapshot().Workers[model.QueueKey(req.Namespace, req.Name)]
		if !ok {
			return nil, fmt.Errorf("worker.restart: unknown worker %s/%s", req.Namespace, req.Name)
		}
		if _, err := emitSeq(ctx, eng, event.KindWorkerStopped, req); err != nil {
			return nil, err
		}
		w.Status = model.WorkerRunning
		return emitSeq(ctx, eng, event.KindWorkerStarted, event.PayloadWorkerStarted{Worker: w})
	})
	l.Register("worker.prune", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			Namespace string `json:"namespace"`
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, err
			}
		}
		pruned := 0
		for _, w := range eng.Snapshot().Workers {
			if w.Status != model.WorkerStopped {
				continue
			}
			if req.Namespace != "" && w.Namespace != req.Namespace {
				continue
			}
			if _, err := emitSeq(ctx, eng, event.KindWorkerDeleted, event.PayloadWorkerName{
				Namespace: w.Namespace, Name: w.Name,
			}); err != nil {
				return nil, err
			}
			pruned++
		}
		return map[string]int{"pruned": pruned}, nil
	})

	l.Register("cron.start", func(ctx context.Context, params json.RawMessage) (any, error) {
		var c model.Cron
		if err := json.Unmarshal(params, &c); err != nil {
			return nil, fmt.Errorf("decoding cron.start request: %w", err)
		}
		c.Status = model.CronRunning
		return emitSeq(ctx, eng, event.KindCronStarted, event.PayloadCronStarted{Cron: c})
	})
	l.Register("cron.stop", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadCronRef
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindCronStopped, req)
	})
	l.Register("cron.once", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadCronRef
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindCronFired, event.PayloadCronFired{Namespace: req.Namespace, Name: req.Name})
	})
	l.Register("cron.restart", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadCronRef
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		c, ok := eng.Snapshot().Crons[model.QueueKey(req.Namespace, req.Name)]
		if !ok {
			return nil, fmt.Errorf("cron.restart: unknown cron %s/%s", req.Namespace, req.Name)
		}
		if _, err := emitSeq(ctx, eng, event.KindCronStopped, req); err != nil {
			return nil, err
		}
		c.Status = model.CronRunning
		return emitSeq(ctx, eng, event.KindCronStarted, event.PayloadCronStarted{Cron: c})
	})
	l.Register("cron.prune", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			Namespace string `json:"namespace"`
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, err
			}
		}
		pruned := 0
		for _, c := range eng.Snapshot().Crons {
			if c.Status != model.CronStopped {
				continue
			}
			if req.Namespace != "" && c.Namespace != req.Namespace {
				continue
			}
			if _, err := emitSeq(ctx, eng, event.KindCronDeleted, event.PayloadCronRef{
				Namespace: c.Namespace, Name: c.Name,
			}); err != nil {
				return nil, err
			}
			pruned++
		}
		return map[string]int{"pruned": pruned}, nil
	})

	l.Register("queue.push", func(ctx context.Context, params json.RawMessage) (any, error) {
		var item model.QueueItem
		if err := json.Unmarshal(params, &item); err != nil {
			return nil, fmt.Errorf("decoding queue.push request: %w", err)
		}
		item.Status = model.ItemPending
		return emitSeq(ctx, eng, event.KindQueuePushed, event.PayloadQueuePushed{Item: item})
	})
	l.Register("queue.retry", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadQueueItemRef
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindQueueItemRetry, req)
	})
	l.Register("queue.drop", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadQueueItemRef
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindQueueDropped, req)
	})
	// queue.fail and queue.done are manual overrides for an item whose
	// handler job can't report for it (killed daemon, external crash).
	l.Register("queue.fail", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadQueueItemRef
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindQueueFailed, req)
	})
	l.Register("queue.done", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadQueueItemRef
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindQueueCompleted, req)
	})
	l.Register("queue.drain", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			Namespace string `json:"namespace"`
			Queue     string `json:"queue"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		q, ok := eng.Snapshot().Queues[model.QueueKey(req.Namespace, req.Queue)]
		if !ok {
			return nil, fmt.Errorf("queue.drain: unknown queue %s/%s", req.Namespace, req.Queue)
		}
		drained := 0
		for id, item := range q.Items {
			if item.Status != model.ItemPending {
				continue
			}
			if _, err := emitSeq(ctx, eng, event.KindQueueDropped, event.PayloadQueueItemRef{
				Namespace: req.Namespace, Queue: req.Queue, ItemID: id,
			}); err != nil {
				return nil, err
			}
			drained++
		}
		return map[string]int{"drained": drained}, nil
	})
	l.Register("queue.prune", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			Namespace string `json:"namespace"`
			Queue     string `json:"queue"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		q, ok := eng.Snapshot().Queues[model.QueueKey(req.Namespace, req.Queue)]
		if !ok {
			return nil, fmt.Errorf("queue.prune: unknown queue %s/%s", req.Namespace, req.Queue)
		}
		pruned := 0
		for id, item := range q.Items {
			if item.Status != model.ItemCompleted && item.Status != model.ItemDead {
				continue
			}
			if _, err := emitSeq(ctx, eng, event.KindQueueDropped, event.PayloadQueueItemRef{
				Namespace: req.Namespace, Queue: req.Queue, ItemID: id,
			}); err != nil {
				return nil, err
			}
			pruned++
		}
		return map[string]int{"pruned": pruned}, nil
	})

	l.Register("workspace.drop", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			WorkspaceID string `json:"workspace_id"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindWorkspaceDrop, event.PayloadWorkspaceStatus{WorkspaceID: req.WorkspaceID})
	})
	// workspace.prune tears down every workspace whose owning job is
	// terminal or gone; failed jobs' workspaces are kept (forensics)
	// unless dropped explicitly.
	l.Register("workspace.prune", func(ctx context.Context, params json.RawMessage) (any, error) {
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
		for id, ws := range st.Workspaces {
			if ws.Status == model.WorkspaceDeleted {
				continue
			}
			if req.Namespace != "" && ws.Namespace != req.Namespace {
				continue
			}
			if job, ok := st.Jobs[ws.JobID]; ok && (!job.IsTerminal() || job.Status == model.JobFailed) {
				continue
			}
			if _, err := emitSeq(ctx, eng, event.KindWorkspaceDrop, event.PayloadWorkspaceStatus{WorkspaceID: id}); err != nil {
				return nil, err
			}
			pruned++
		}
		return map[string]int{"pruned": pruned}, nil
	})

	// agent.* drive the supervised-agent adapters through the event log:
	// each submits a command signal the functional core turns into the
	// matching send/kill/reconnect effect.
	l.Register("agent.send", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadAgentSend
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindAgentSend, req)
	})
	l.Register("agent.kill", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadAgentID
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindAgentKill, req)
	})
	l.Register("agent.resume", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req event.PayloadAgentID
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return emitSeq(ctx, eng, event.KindAgentResume, req)
	})

	l.Register("decision.list", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			Namespace string `json:"namespace"`
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, err
			}
		}
		st := eng.Snapshot()
		out := make([]model.Decision, 0, len(st.Decisions))
		for _, d := range st.Decisions {
			if req.Namespace != "" && d.Namespace != req.Namespace {
				continue
			}
			out = append(out, d)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out, nil
	})
}

func emitSeq(ctx context.Context, eng Engine, kind event.Kind, payload any) (any, error) {
	env, err := event.New(kind, payload)
	if err != nil {
		return nil, err
	}
	seq, err := eng.Submit(ctx, env)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"seq": seq}, nil
}

// RegisterSessionHandlers wires the subprocess-calling request class:
// direct session interaction that doesn't round-trip through the event
// log, since sending a keystroke or peeking a pane isn't state the
// materializer needs to remember.
func RegisterSessionHandlers(l *ipc.Listener, session effect.SessionAdapter) {
	l.Register("session.send", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			SessionID string `json:"session_id"`
			Text      string `json:"text"`
			Enter     bool   `json:"enter"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		if err := session.SendText(ctx, req.SessionID, req.Text, req.Enter); err != nil {
			return nil, err
		}
		return map[string]string{"status": "sent"}, nil
	})
	l.Register("session.kill", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		if err := session.Kill(ctx, req.SessionID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "killed"}, nil
	})
	l.Register("session.peek", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		out, err := session.CapturePane(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"pane": out}, nil
	})
}
