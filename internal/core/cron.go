package core

import (
	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
	"github.com/orchestratord/oj/internal/scheduler"
)

func isCronKind(k event.Kind) bool {
	switch k {
	case event.KindCronStarted, event.KindCronStopped, event.KindCronFired:
		return true
	}
	return false
}

func cronTimerID(namespace, name string) scheduler.ID {
	return scheduler.NewID("cron", namespace+"/"+name, "tick")
}

func cronTransition(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	switch e.Kind {
	case event.KindCronStarted:
		return onCronStarted(deps, s, e)
	case event.KindCronStopped:
		return onCronStopped(e)
	case event.KindCronFired:
		return onCronFiredEvent(deps, s, e)
	}
	return nil
}

// onCronFiredEvent services an externally-injected cron:fired (the IPC
// cron.once method): dispatch one run of the target job immediately,
// honoring the singleton cap. A cron:fired that already names a JobID
// came from cronFired's own timer path and is not re-dispatched.
func onCronFiredEvent(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadCronFired](e)
	if err != nil || p.JobID != "" {
		return nil
	}
	key := model.QueueKey(p.Namespace, p.Name)
	c, ok := s.Crons[key]
	if !ok {
		return nil
	}
	rb, ok := anyRunbook(s)
	if !ok {
		return nil
	}
	if c.Concurrency > 0 && len(runningAlive(s, c.RunningJobIDs)) >= c.Concurrency {
		return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindCronSkipped),
			Payload:   event.PayloadCronRef{Namespace: p.Namespace, Name: p.Name},
		}}}
	}
	jobID := deps.IDs.NewJobID()
	return []effect.Effect{
		{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindCronFired),
			Payload:   event.PayloadCronFired{Namespace: p.Namespace, Name: p.Name, FiredMS: nowOrZero(deps).UnixMilli(), JobID: jobID},
		}},
		{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindJobCreated),
			Payload: event.PayloadJobCreated{Job: model.Job{
				ID: jobID, Namespace: p.Namespace, Kind: c.TargetJob,
				RunbookHash: rb.Hash, Status: model.JobRunning,
			}},
		}},
	}
}

func onCronStarted(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadCronStarted](e)
	if err != nil {
		return nil
	}
	iv, err := scheduler.ParseInterval(p.Cron.Interval)
	if err != nil {
		return nil
	}
	fire := iv.Next(nowOrZero(deps))
	if p.Cron.FireOnStart {
		fire = nowOrZero(deps)
	}
	return []effect.Effect{{Kind: effect.KindSetTimer, SetTimer: &effect.SetTimer{
		ID: string(cronTimerID(p.Cron.Namespace, p.Cron.Name)), Fire: fire,
	}}}
}

func onCronStopped(e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadCronRef](e)
	if err != nil {
		return nil
	}
	return []effect.Effect{{Kind: effect.KindCancelTimer, CancelTimer: &effect.CancelTimer{
		ID: string(cronTimerID(p.Namespace, p.Name)),
	}}}
}

// cronFired runs when a cron's timer drains: enforces the singleton
// concurrency cap, dispatches the target job, rearms the next tick, and
// records a skip for audit when the cap holds it back.
func cronFired(deps Deps, s model.State, namespace, name string) []effect.Effect {
	key := model.QueueKey(namespace, name)
	c, ok := s.Crons[key]
	if !ok {
		return nil
	}
	rb, ok := anyRunbook(s)
	if !ok {
		return nil
	}
	iv, err := scheduler.ParseInterval(c.Interval)
	if err != nil {
		return nil
	}
	rearm := effect.Effect{Kind: effect.KindSetTimer, SetTimer: &effect.SetTimer{
		ID: string(cronTimerID(namespace, name)), Fire: iv.Next(nowOrZero(deps)),
	}}

	if c.Concurrency > 0 && len(runningAlive(s, c.RunningJobIDs)) >= c.Concurrency {
		return []effect.Effect{
			{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
				EventKind: string(event.KindCronSkipped),
				Payload:   event.PayloadCronRef{Namespace: namespace, Name: name},
			}},
			rearm,
		}
	}

	jobID := deps.IDs.NewJobID()
	return []effect.Effect{
		{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindCronFired),
			Payload:   event.PayloadCronFired{Namespace: namespace, Name: name, FiredMS: nowOrZero(deps).UnixMilli(), JobID: jobID},
		}},
		{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindJobCreated),
			Payload: event.PayloadJobCreated{Job: model.Job{
				ID: jobID, Namespace: namespace, Kind: c.TargetJob,
				RunbookHash: rb.Hash, Status: model.JobRunning,
			}},
		}},
		rearm,
	}
}

func runningAlive(s model.State, ids []string) []string {
	alive := ids[:0:0]
	for _, id := range ids {
		if j, ok := s.Jobs[id]; ok && !j.IsTerminal() {
			alive = append(alive, id)
		}
	}
	return alive
}
