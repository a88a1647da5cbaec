package model

import "time"

// DispatchedItem tracks one in-flight (queue item, job) pair a Worker has
// handed off to a handler job.
type DispatchedItem struct {
	ItemID string `json:"item_id"`
	JobID  string `json:"job_id"`
}

// WorkerStatus is the lifecycle of an active queue pull loop.
type WorkerStatus string

const (
	WorkerStopped WorkerStatus = "stopped"
	WorkerRunning WorkerStatus = "running"
)

// Worker is an active pull loop over a queue, dispatching items to a
// handler job template up to MaxConcurrency in flight.
type Worker struct {
	Name           string            `json:"name"`
	Namespace      string            `json:"namespace"`
	Queue          string            `json:"queue"`
	HandlerJob     string            `json:"handler_job"`
	MaxConcurrency int               `json:"max_concurrency"`
	Status         WorkerStatus      `json:"status"`
	Dispatched     []DispatchedItem  `json:"dispatched"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// InFlight reports how many items are currently dispatched.
func (w *Worker) InFlight() int { return len(w.Dispatched) }

// CronStatus is the lifecycle of a named timer bound to a job template.
type CronStatus string

const (
	CronStopped CronStatus = "stopped"
	CronRunning CronStatus = "running"
)

// Cron is a named timer binding to a job template with an interval and an
// optional singleton concurrency cap.
type Cron struct {
	Name          string     `json:"name"`
	Namespace     string     `json:"namespace"`
	TargetJob     string     `json:"target_job"`
	Interval      string     `json:"interval"`
	Concurrency   int        `json:"concurrency"`
	Status        CronStatus `json:"status"`
	FireOnStart   bool       `json:"fire_on_start"`
	LastFiredMS   int64      `json:"last_fired_ms"`
	RunningJobIDs []string   `json:"running_job_ids"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
