package model

import "time"

// WorkspaceStatus is the lifecycle of an isolated job-owned directory.
type WorkspaceStatus string

const (
	WorkspaceCreating WorkspaceStatus = "creating"
	WorkspaceReady    WorkspaceStatus = "ready"
	WorkspaceFailed   WorkspaceStatus = "failed"
	WorkspaceDeleted  WorkspaceStatus = "deleted"
)

// Workspace is an isolated directory (plain folder or git worktree) owned
// by a job. Deleted on job success/cancel; kept on failure for forensics.
type Workspace struct {
	ID        string          `json:"id"`
	JobID     string          `json:"job_id"`
	Namespace string          `json:"namespace"`
	Kind      WorkspaceKind   `json:"kind"`
	Path      string          `json:"path"`
	Status    WorkspaceStatus `json:"status"`
	FailReason string         `json:"fail_reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
