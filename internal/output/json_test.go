package output

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestratord/oj/internal/model"
)

func TestOKAndFailEnvelopes(t *testing.T) {
	ok := OK(map[string]string{"k": "v"})
	require.Equal(t, "v1", ok.SchemaVersion)
	require.True(t, ok.Success)
	require.NotNil(t, ok.Data)
	require.Empty(t, ok.Error)

	fail := Fail(errors.New("boom"))
	require.Equal(t, "v1", fail.SchemaVersion)
	require.False(t, fail.Success)
	require.Nil(t, fail.Data)
	require.Equal(t, "boom", fail.Error)
	require.Empty(t, fail.ErrorCode)
	require.Nil(t, fail.ErrorContext)
}

func TestFailUnpacksWorkspaceError(t *testing.T) {
	err := &model.WorkspaceFailedError{WorkspaceID: "ws_job_1", JobID: "job_1", Reason: "git worktree add: exit 128"}
	env := Fail(err)
	require.Equal(t, "WORKSPACE_FAILED", env.ErrorCode)
	require.Equal(t, "job_1", env.ErrorContext["job_id"])
	require.Contains(t, env.SuggestedAction, "preserved for forensics")
}

func TestFailUnpacksWrappedAgentError(t *testing.T) {
	inner := &model.AgentFailedError{AgentID: "agent_1", Kind: "RateLimited"}
	env := Fail(fmt.Errorf("running step: %w", inner))
	require.Equal(t, "AGENT_FAILED_RateLimited", env.ErrorCode)
	require.Equal(t, "agent_1", env.ErrorContext["agent_id"])
	require.Contains(t, env.Error, "running step")
}

func TestFailUnpacksSnapshotVersionError(t *testing.T) {
	env := Fail(&model.SnapshotVersionError{Found: 3, Newest: 1})
	require.Equal(t, "SNAPSHOT_TOO_NEW", env.ErrorCode)
	require.Contains(t, env.SuggestedAction, "upgrade the daemon binary")
}

func TestWriteCompactByDefault(t *testing.T) {
	t.Setenv("OJ_PRETTY_JSON", "")
	var buf bytes.Buffer
	require.NoError(t, OK(map[string]string{"hello": "world"}).Write(&buf))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, `{"schema_version":"v1"`))
	require.Contains(t, out, `"hello":"world"`)
	require.Equal(t, 1, strings.Count(out, "\n"))
}

func TestWritePrettyWhenEnvSet(t *testing.T) {
	t.Setenv("OJ_PRETTY_JSON", "1")
	var buf bytes.Buffer
	require.NoError(t, OK(map[string]string{"hello": "world"}).Write(&buf))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "{\n"))
	require.Contains(t, out, "\n    \"hello\": \"world\"\n")
}

func TestWriteFailShape(t *testing.T) {
	t.Setenv("OJ_PRETTY_JSON", "")
	var buf bytes.Buffer
	require.NoError(t, Fail(errors.New("bad things")).Write(&buf))

	out := buf.String()
	require.Contains(t, out, `"schema_version":"v1"`)
	require.Contains(t, out, `"success":false`)
	require.Contains(t, out, `"error":"bad things"`)
}
