package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func stateWithDecision(t *testing.T, source model.DecisionSource, options int) (model.State, model.Decision) {
	t.Helper()
	rb := buildRunbook()
	job := model.Job{
		ID: "job_1", Namespace: "demo", Kind: "build", RunbookHash: rb.Hash,
		CurrentStep: "compile", AgentID: "agent_1", Status: model.JobWaiting,
		StepState: model.StepState{Name: "compile", Status: model.StepWaiting, DecisionID: "dec_1"},
	}
	s := newStateWithJob(t, rb, job)

	opts := make([]model.DecisionOption, 0, options)
	for i := 1; i <= options; i++ {
		opts = append(opts, model.DecisionOption{Index: i, Label: fmt.Sprintf("option %d", i)})
	}
	d := model.Decision{ID: "dec_1", Namespace: "demo", OwnerJob: job.ID, Source: source, Options: opts}
	s.Decisions[d.ID] = d
	return s, d
}

func resolve(t *testing.T, s model.State, option int, message string) []effect.Effect {
	t.Helper()
	return decisionTransition(testDeps(), s, mustEvt(t, event.KindDecisionResolved, event.PayloadDecisionResolved{
		DecisionID: "dec_1", ChosenOption: option, Message: message,
	}))
}

func TestIdleDecisionOptionTable(t *testing.T) {
	s, _ := stateWithDecision(t, model.SourceIdle, 4)

	nudge := resolve(t, s, 1, "keep going")
	require.Len(t, nudge, 1)
	require.Equal(t, effect.KindSendAgent, nudge[0].Kind)
	require.Equal(t, "keep going", nudge[0].SendAgent.Text)

	done := resolve(t, s, 2, "")
	require.Len(t, done, 1)
	require.Equal(t, string(event.KindStepCompleted), done[0].EmitEvent.EventKind)

	cancel := resolve(t, s, 3, "")
	require.Len(t, cancel, 1)
	require.Equal(t, string(event.KindJobCancel), cancel[0].EmitEvent.EventKind)

	dismiss := resolve(t, s, 4, "")
	require.Empty(t, dismiss)
}

func TestErrorDecisionOptionTable(t *testing.T) {
	for _, source := range []model.DecisionSource{model.SourceError, model.SourceGate} {
		s, _ := stateWithDecision(t, source, 3)

		retry := resolve(t, s, 1, "")
		require.Len(t, retry, 1)
		require.Equal(t, effect.KindReconnectAgent, retry[0].Kind)
		require.Equal(t, "agent_1", retry[0].ReconnectAgent.AgentID)

		skip := resolve(t, s, 2, "")
		require.Equal(t, string(event.KindStepCompleted), skip[0].EmitEvent.EventKind)

		cancel := resolve(t, s, 3, "")
		require.Equal(t, string(event.KindJobCancel), cancel[0].EmitEvent.EventKind)
	}
}

func TestApprovalDecisionSendsKeystroke(t *testing.T) {
	s, _ := stateWithDecision(t, model.SourceApproval, 3)

	approve := resolve(t, s, 1, "")
	require.Equal(t, effect.KindSendAgent, approve[0].Kind)
	require.Equal(t, "y", approve[0].SendAgent.Text)

	deny := resolve(t, s, 2, "")
	require.Equal(t, "n", deny[0].SendAgent.Text)

	cancel := resolve(t, s, 3, "")
	require.Equal(t, string(event.KindJobCancel), cancel[0].EmitEvent.EventKind)
}

func TestQuestionDecisionSendsOptionNumber(t *testing.T) {
	s, _ := stateWithDecision(t, model.SourceQuestion, 4)

	pick := resolve(t, s, 2, "")
	require.Equal(t, effect.KindSendAgent, pick[0].Kind)
	require.Equal(t, "2", pick[0].SendAgent.Text)

	// The last option is always the fixed Cancel.
	cancel := resolve(t, s, 4, "")
	require.Equal(t, string(event.KindJobCancel), cancel[0].EmitEvent.EventKind)
}

func TestDecisionForAgentRunResolvesRunDirectly(t *testing.T) {
	s := model.NewState()
	s.AgentRuns["run_1"] = model.AgentRun{ID: "run_1", Namespace: "demo", AgentID: "agent_1", AgentName: "coder", Status: model.JobWaiting}
	s.Decisions["dec_1"] = model.Decision{
		ID: "dec_1", Namespace: "demo", OwnerRun: "run_1", Source: model.SourceIdle,
		Options: defaultOptionsFor(model.SourceIdle),
	}

	done := resolve(t, s, 2, "")
	require.Len(t, done, 1)
	require.Equal(t, string(event.KindAgentRunCompleted), done[0].EmitEvent.EventKind)

	cancel := resolve(t, s, 3, "")
	require.Equal(t, string(event.KindAgentRunCancelled), cancel[0].EmitEvent.EventKind)
}

func TestUnknownDecisionIsIgnored(t *testing.T) {
	effects := decisionTransition(testDeps(), model.NewState(), mustEvt(t, event.KindDecisionResolved, event.PayloadDecisionResolved{
		DecisionID: "dec_missing", ChosenOption: 1,
	}))
	require.Empty(t, effects)
}
