package model

import "time"

// QueueItemStatus is the lifecycle progression of a queue item:
//
//	Pending -> Taken -> Completed | Failed -> (Pending on retry with cooldown) -> Dead
type QueueItemStatus string

const (
	ItemPending   QueueItemStatus = "pending"
	ItemTaken     QueueItemStatus = "taken"
	ItemCompleted QueueItemStatus = "completed"
	ItemFailed    QueueItemStatus = "failed"
	ItemDead      QueueItemStatus = "dead"
)

// QueueItem is an item in a queue. For persisted queues, Payload is
// validated against the declared schema on push. For external queues, ID
// is the identity field from the projected shell command and Payload is
// whatever the list command returned for it.
type QueueItem struct {
	ID        string          `json:"id"`
	Queue     string          `json:"queue"`
	Namespace string          `json:"namespace"`
	Payload   string          `json:"payload"` // JSON
	Status    QueueItemStatus `json:"status"`
	Attempts  int             `json:"attempts"`
	JobID     string          `json:"job_id,omitempty"` // handler job currently/last processing it
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the item requires manual intervention
// (Dead) to move again.
func (q *QueueItem) IsTerminal() bool { return q.Status == ItemDead }
