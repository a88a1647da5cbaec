package state

import (
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func applyWorkerEvent(s *model.State, e event.Envelope) {
	switch e.Kind {
	case event.KindWorkerStarted:
		p, err := event.Decode[event.PayloadWorkerStarted](e)
		if err != nil {
			return
		}
		p.Worker.Status = model.WorkerRunning
		s.Workers[model.QueueKey(p.Worker.Namespace, p.Worker.Name)] = p.Worker

	case event.KindWorkerStopped:
		p, err := event.Decode[event.PayloadWorkerName](e)
		if err != nil {
			return
		}
		key := model.QueueKey(p.Namespace, p.Name)
		w, ok := s.Workers[key]
		if !ok {
			return
		}
		w.Status = model.WorkerStopped
		s.Workers[key] = w

	case event.KindWorkerResized:
		p, err := event.Decode[event.PayloadWorkerResized](e)
		if err != nil {
			return
		}
		key := model.QueueKey(p.Namespace, p.Name)
		w, ok := s.Workers[key]
		if !ok {
			return
		}
		w.MaxConcurrency = p.MaxConcurrency
		s.Workers[key] = w

	case event.KindWorkerDeleted:
		p, err := event.Decode[event.PayloadWorkerName](e)
		if err != nil {
			return
		}
		delete(s.Workers, model.QueueKey(p.Namespace, p.Name))
	}
}
