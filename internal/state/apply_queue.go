package state

import (
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func queueState(s *model.State, namespace, name string) model.QueueState {
	key := model.QueueKey(namespace, name)
	q, ok := s.Queues[key]
	if !ok {
		q = model.QueueState{Name: name, Namespace: namespace, Items: map[string]model.QueueItem{}}
	}
	return q
}

func applyQueueEvent(s *model.State, e event.Envelope) {
	switch e.Kind {
	case event.KindQueuePushed:
		p, err := event.Decode[event.PayloadQueuePushed](e)
		if err != nil {
			return
		}
		q := queueState(s, p.Item.Namespace, p.Item.Queue)
		q.Items[p.Item.ID] = p.Item
		s.Queues[model.QueueKey(p.Item.Namespace, p.Item.Queue)] = q

	case event.KindQueueTaken:
		p, err := event.Decode[event.PayloadQueueItemRef](e)
		if err != nil {
			return
		}
		key := model.QueueKey(p.Namespace, p.Queue)
		q, ok := s.Queues[key]
		if !ok {
			return
		}
		item, ok := q.Items[p.ItemID]
		if !ok {
			return
		}
		item.Status = model.ItemTaken
		item.Attempts++
		item.JobID = p.JobID
		q.Items[p.ItemID] = item
		s.Queues[key] = q

		if p.WorkerName != "" {
			wkey := model.QueueKey(p.Namespace, p.WorkerName)
			if w, ok := s.Workers[wkey]; ok {
				w.Dispatched = append(w.Dispatched, model.DispatchedItem{ItemID: p.ItemID, JobID: p.JobID})
				s.Workers[wkey] = w
			}
		}

	case event.KindQueueCompleted:
		p, err := event.Decode[event.PayloadQueueItemRef](e)
		if err != nil {
			return
		}
		key := model.QueueKey(p.Namespace, p.Queue)
		q, ok := s.Queues[key]
		if !ok {
			return
		}
		item, ok := q.Items[p.ItemID]
		if !ok {
			return
		}
		item.Status = model.ItemCompleted
		q.Items[p.ItemID] = item
		s.Queues[key] = q
		undispatch(s, p.Namespace, p.WorkerName, p.ItemID)

	case event.KindQueueFailed:
		p, err := event.Decode[event.PayloadQueueItemRef](e)
		if err != nil {
			return
		}
		key := model.QueueKey(p.Namespace, p.Queue)
		q, ok := s.Queues[key]
		if !ok {
			return
		}
		item, ok := q.Items[p.ItemID]
		if !ok {
			return
		}
		item.Status = model.ItemFailed
		q.Items[p.ItemID] = item
		s.Queues[key] = q
		undispatch(s, p.Namespace, p.WorkerName, p.ItemID)

	case event.KindQueueItemRetry:
		p, err := event.Decode[event.PayloadQueueItemRef](e)
		if err != nil {
			return
		}
		key := model.QueueKey(p.Namespace, p.Queue)
		q, ok := s.Queues[key]
		if !ok {
			return
		}
		item, ok := q.Items[p.ItemID]
		if !ok {
			return
		}
		item.Status = model.ItemPending
		item.JobID = ""
		q.Items[p.ItemID] = item
		s.Queues[key] = q

	case event.KindQueueItemDead:
		p, err := event.Decode[event.PayloadQueueItemRef](e)
		if err != nil {
			return
		}
		key := model.QueueKey(p.Namespace, p.Queue)
		q, ok := s.Queues[key]
		if !ok {
			return
		}
		item, ok := q.Items[p.ItemID]
		if !ok {
			return
		}
		item.Status = model.ItemDead
		q.Items[p.ItemID] = item
		s.Queues[key] = q

	case event.KindQueueDropped:
		p, err := event.Decode[event.PayloadQueueItemRef](e)
		if err != nil {
			return
		}
		key := model.QueueKey(p.Namespace, p.Queue)
		q, ok := s.Queues[key]
		if !ok {
			return
		}
		delete(q.Items, p.ItemID)
		s.Queues[key] = q
	}
}

// undispatch removes (itemID, *) from the named worker's in-flight set
// once its handler job reaches a terminal outcome.
func undispatch(s *model.State, namespace, workerName, itemID string) {
	if workerName == "" {
		return
	}
	wkey := model.QueueKey(namespace, workerName)
	w, ok := s.Workers[wkey]
	if !ok {
		return
	}
	out := w.Dispatched[:0]
	for _, d := range w.Dispatched {
		if d.ItemID != itemID {
			out = append(out, d)
		}
	}
	w.Dispatched = out
	s.Workers[wkey] = w
}
