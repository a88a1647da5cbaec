package state

import (
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func applyCronEvent(s *model.State, e event.Envelope) {
	switch e.Kind {
	case event.KindCronStarted:
		p, err := event.Decode[event.PayloadCronStarted](e)
		if err != nil {
			return
		}
		p.Cron.Status = model.CronRunning
		s.Crons[model.QueueKey(p.Cron.Namespace, p.Cron.Name)] = p.Cron

	case event.KindCronStopped:
		p, err := event.Decode[event.PayloadCronRef](e)
		if err != nil {
			return
		}
		key := model.QueueKey(p.Namespace, p.Name)
		c, ok := s.Crons[key]
		if !ok {
			return
		}
		c.Status = model.CronStopped
		s.Crons[key] = c

	case event.KindCronFired:
		p, err := event.Decode[event.PayloadCronFired](e)
		if err != nil {
			return
		}
		key := model.QueueKey(p.Namespace, p.Name)
		c, ok := s.Crons[key]
		if !ok {
			return
		}
		c.LastFiredMS = p.FiredMS
		if p.JobID != "" {
			c.RunningJobIDs = append(c.RunningJobIDs, p.JobID)
		}
		s.Crons[key] = c

	case event.KindCronSkipped:
		// No state mutation; emitted purely for audit visibility into the
		// singleton-concurrency skip path.

	case event.KindCronDeleted:
		p, err := event.Decode[event.PayloadCronRef](e)
		if err != nil {
			return
		}
		delete(s.Crons, model.QueueKey(p.Namespace, p.Name))
	}
}
