package model

import "time"

// DecisionSource is the origin of a human-in-the-loop escalation.
type DecisionSource string

const (
	SourceIdle     DecisionSource = "idle"
	SourceError    DecisionSource = "error"
	SourceGate     DecisionSource = "gate"
	SourceApproval DecisionSource = "approval"
	SourceQuestion DecisionSource = "question"
)

// DecisionOption is one selectable option on a Decision, keyed by its
// 1-based Index.
type DecisionOption struct {
	Index       int    `json:"index"`
	Label       string `json:"label"`
	Recommended bool   `json:"recommended"`
}

// Decision is a human-in-the-loop escalation record. Until resolved, the
// owning job's current step sits in StepWaiting(ID).
type Decision struct {
	ID        string           `json:"id"`
	Namespace string           `json:"namespace"`
	OwnerJob  string           `json:"owner_job,omitempty"`
	OwnerRun  string           `json:"owner_run,omitempty"`
	Source    DecisionSource   `json:"source"`
	Context   string           `json:"context"`
	Options   []DecisionOption `json:"options"`

	Resolved     bool   `json:"resolved"`
	ChosenOption int    `json:"chosen_option,omitempty"`
	Message      string `json:"message,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}
