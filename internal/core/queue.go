package core

import (
	"time"

	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
	"github.com/orchestratord/oj/internal/scheduler"
)

func isQueueKind(k event.Kind) bool {
	return k == event.KindQueueFailed
}

// queueTransition bounds queue-item failures with the declared RetrySpec:
// under the attempt cap it arms a cooldown timer that replays the item to
// Pending; once exhausted the item is marked Dead for manual triage.
func queueTransition(deps Deps, s model.State, e event.Envelope) []effect.Effect {
	p, err := event.Decode[event.PayloadQueueItemRef](e)
	if err != nil {
		return nil
	}
	rb, ok := anyRunbook(s)
	if !ok {
		return nil
	}
	queueSpec, ok := rb.Queues[p.Queue]
	if !ok || queueSpec.Retry == nil {
		return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindQueueItemDead), Payload: p,
		}}}
	}

	key := model.QueueKey(p.Namespace, p.Queue)
	item, ok := s.Queues[key].Items[p.ItemID]
	if !ok {
		return nil
	}
	// Attempts counts takes; the retry budget counts Failed→Pending
	// replays, so the first take is free: an item is dead once it has
	// burned the initial take plus Retry.Attempts retries.
	if item.Attempts > queueSpec.Retry.Attempts {
		return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
			EventKind: string(event.KindQueueItemDead), Payload: p,
		}}}
	}

	cooldown, err := time.ParseDuration(queueSpec.Retry.Cooldown)
	if err != nil || cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	id := scheduler.NewID("queue-retry", p.Namespace+"/"+p.Queue, p.ItemID)
	return []effect.Effect{{Kind: effect.KindSetTimer, SetTimer: &effect.SetTimer{
		ID: string(id), Fire: nowOrZero(deps).Add(cooldown),
	}}}
}

func queueRetryFired(namespace, queue, itemID string) []effect.Effect {
	return []effect.Effect{{Kind: effect.KindEmitEvent, EmitEvent: &effect.EmitEvent{
		EventKind: string(event.KindQueueItemRetry),
		Payload:   event.PayloadQueueItemRef{Namespace: namespace, Queue: queue, ItemID: itemID},
	}}}
}
