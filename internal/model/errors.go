package model

import "fmt"

// RecoverableError is implemented by enriched errors that carry structured
// context and remediation hints so the IPC response envelope and the CLI
// can surface actionable detail instead of a bare string.
type RecoverableError interface {
	error
	ErrorCode() string
	Context() map[string]string
	SuggestedAction() string
}

// WorkspaceFailedError reports a workspace creation/teardown failure.
type WorkspaceFailedError struct {
	WorkspaceID string
	JobID       string
	Reason      string
}

func (e *WorkspaceFailedError) Error() string {
	return fmt.Sprintf("workspace %s failed: %s", e.WorkspaceID, e.Reason)
}
func (e *WorkspaceFailedError) ErrorCode() string { return "WORKSPACE_FAILED" }
func (e *WorkspaceFailedError) Context() map[string]string {
	return map[string]string{"workspace_id": e.WorkspaceID, "job_id": e.JobID, "reason": e.Reason}
}
func (e *WorkspaceFailedError) SuggestedAction() string {
	return "inspect the workspace directory; it is preserved for forensics"
}

// AgentFailedError reports a classified agent failure.
type AgentFailedError struct {
	AgentID string
	Kind    string // Unauthorized | OutOfCredits | NoInternet | RateLimited | Other
}

func (e *AgentFailedError) Error() string {
	return fmt.Sprintf("agent %s failed: %s", e.AgentID, e.Kind)
}
func (e *AgentFailedError) ErrorCode() string { return "AGENT_FAILED_" + e.Kind }
func (e *AgentFailedError) Context() map[string]string {
	return map[string]string{"agent_id": e.AgentID, "kind": e.Kind}
}
func (e *AgentFailedError) SuggestedAction() string {
	switch e.Kind {
	case "RateLimited", "NoInternet":
		return "will be retried with backoff per the agent's on_error policy"
	default:
		return "resolve the escalated decision"
	}
}

// SnapshotVersionError is fatal: the daemon refuses to start rather than
// silently lose data when a snapshot is newer than any known migration.
type SnapshotVersionError struct {
	Found, Newest int
}

func (e *SnapshotVersionError) Error() string {
	return fmt.Sprintf("snapshot schema version %d is newer than the newest known version %d", e.Found, e.Newest)
}
func (e *SnapshotVersionError) ErrorCode() string { return "SNAPSHOT_TOO_NEW" }
func (e *SnapshotVersionError) Context() map[string]string {
	return map[string]string{"found": fmt.Sprint(e.Found), "newest": fmt.Sprint(e.Newest)}
}
func (e *SnapshotVersionError) SuggestedAction() string {
	return "upgrade the daemon binary before starting against this state directory"
}

// WALCorruptError reports unrecoverable WAL corruption (beyond the
// truncation/rotate recovery paths in internal/wal).
type WALCorruptError struct {
	Path   string
	Offset int64
	Reason string
}

func (e *WALCorruptError) Error() string {
	return fmt.Sprintf("wal %s corrupt at offset %d: %s", e.Path, e.Offset, e.Reason)
}
func (e *WALCorruptError) ErrorCode() string { return "WAL_CORRUPT" }
func (e *WALCorruptError) Context() map[string]string {
	return map[string]string{"path": e.Path, "offset": fmt.Sprint(e.Offset), "reason": e.Reason}
}
func (e *WALCorruptError) SuggestedAction() string {
	return "restore from the .bak rotation or the last snapshot"
}
