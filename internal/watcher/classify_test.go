package watcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestratord/oj/internal/model"
)

func TestClassifyTailWorkingOnToolUse(t *testing.T) {
	c := ClassifyTail(strings.NewReader(`{"type":"assistant","message":{"content":[{"type":"tool_use"}]}}`))
	require.Equal(t, model.AgentWorking, c.State)
}

func TestClassifyTailWorkingOnThinking(t *testing.T) {
	c := ClassifyTail(strings.NewReader(`{"type":"assistant","message":{"content":[{"type":"thinking"}]}}`))
	require.Equal(t, model.AgentWorking, c.State)
}

func TestClassifyTailWorkingOnToolResult(t *testing.T) {
	c := ClassifyTail(strings.NewReader(`{"type":"tool_result"}`))
	require.Equal(t, model.AgentWorking, c.State)
}

func TestClassifyTailWaitingOnTextOnlyAssistantTurn(t *testing.T) {
	c := ClassifyTail(strings.NewReader(`{"type":"assistant","message":{"content":[{"type":"text"}],"stop_reason":null}}`))
	require.Equal(t, model.AgentWaitingForInput, c.State)
}

func TestClassifyTailFailedClassifiesErrorKind(t *testing.T) {
	c := ClassifyTail(strings.NewReader(`{"type":"error","error_kind":"RateLimited"}`))
	require.Equal(t, model.AgentFailed, c.State)
	require.Equal(t, model.ErrRateLimited, c.FailKind)
}

func TestClassifyTailUnknownErrorKindFallsBackToOther(t *testing.T) {
	c := ClassifyTail(strings.NewReader(`{"type":"error","error_kind":"something_weird"}`))
	require.Equal(t, model.AgentFailed, c.State)
	require.Equal(t, model.ErrOther, c.FailKind)
}

func TestClassifyTailUsesLastRecordOnly(t *testing.T) {
	log := `{"type":"assistant","message":{"content":[{"type":"tool_use"}]}}
{"type":"assistant","message":{"content":[{"type":"text"}],"stop_reason":null}}`
	c := ClassifyTail(strings.NewReader(log))
	require.Equal(t, model.AgentWaitingForInput, c.State)
}

func TestClassifyTailToleratesTrailingCorruptLine(t *testing.T) {
	log := `{"type":"tool_result"}
{not valid json`
	c := ClassifyTail(strings.NewReader(log))
	require.Equal(t, model.AgentWorking, c.State)
}

func TestClassifyTailEmptyDefaultsToWaiting(t *testing.T) {
	c := ClassifyTail(strings.NewReader(""))
	require.Equal(t, model.AgentWaitingForInput, c.State)
}
