package state

import (
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func applyJobEvent(s *model.State, e event.Envelope) {
	switch e.Kind {
	case event.KindJobCreated:
		p, err := event.Decode[event.PayloadJobCreated](e)
		if err != nil {
			return
		}
		s.Jobs[p.Job.ID] = p.Job

	case event.KindJobVarsUpdated:
		p, err := event.Decode[event.PayloadJobVarsUpdated](e)
		if err != nil {
			return
		}
		j, ok := s.Jobs[p.JobID]
		if !ok {
			return
		}
		if j.Vars == nil {
			j.Vars = map[string]string{}
		}
		for k, v := range p.Vars {
			j.Vars[k] = v
		}
		s.Jobs[p.JobID] = j

	case event.KindStepStarted:
		p, err := event.Decode[event.PayloadStepStarted](e)
		if err != nil {
			return
		}
		j, ok := s.Jobs[p.JobID]
		if !ok {
			return
		}
		j.CurrentStep = p.Step
		j.Status = model.JobRunning
		j.StepState = model.StepState{Name: p.Step, Status: model.StepRunning}
		s.Jobs[p.JobID] = j

	case event.KindStepCompleted:
		p, err := event.Decode[event.PayloadStepCompleted](e)
		if err != nil {
			return
		}
		j, ok := s.Jobs[p.JobID]
		if !ok {
			return
		}
		j.StepState.Status = model.StepCompleted
		j.History = append(j.History, j.StepState)
		s.Jobs[p.JobID] = j

	case event.KindStepFailed:
		p, err := event.Decode[event.PayloadStepFailed](e)
		if err != nil {
			return
		}
		j, ok := s.Jobs[p.JobID]
		if !ok {
			return
		}
		j.StepState.Status = model.StepFailed
		j.StepState.Error = p.Error
		j.History = append(j.History, j.StepState)
		s.Jobs[p.JobID] = j

	case event.KindStepWaiting:
		p, err := event.Decode[event.PayloadStepWaiting](e)
		if err != nil {
			return
		}
		j, ok := s.Jobs[p.JobID]
		if !ok {
			return
		}
		j.StepState.Status = model.StepWaiting
		j.StepState.DecisionID = p.DecisionID
		j.Status = model.JobWaiting
		s.Jobs[p.JobID] = j

	case event.KindJobAdvanced:
		p, err := event.Decode[event.PayloadJobAdvanced](e)
		if err != nil {
			return
		}
		j, ok := s.Jobs[p.JobID]
		if !ok {
			return
		}
		j.CurrentStep = p.NextStep
		j.Status = model.JobRunning
		j.StepState = model.StepState{Name: p.NextStep, Status: model.StepPending}
		j.AgentSignal = model.SignalNone // the signal belonged to the step just left
		s.Jobs[p.JobID] = j

	case event.KindJobCompleted:
		p, err := event.Decode[event.PayloadJobTerminal](e)
		if err != nil {
			return
		}
		j, ok := s.Jobs[p.JobID]
		if !ok {
			return
		}
		j.Status = model.JobCompleted
		s.Jobs[p.JobID] = j

	case event.KindJobFailed:
		p, err := event.Decode[event.PayloadJobTerminal](e)
		if err != nil {
			return
		}
		j, ok := s.Jobs[p.JobID]
		if !ok {
			return
		}
		j.Status = model.JobFailed
		s.Jobs[p.JobID] = j

	case event.KindJobCancelled:
		p, err := event.Decode[event.PayloadJobTerminal](e)
		if err != nil {
			return
		}
		j, ok := s.Jobs[p.JobID]
		if !ok {
			return
		}
		j.Status = model.JobCancelled
		s.Jobs[p.JobID] = j

	case event.KindJobDeleted:
		p, err := event.Decode[event.PayloadJobDeleted](e)
		if err != nil {
			return
		}
		delete(s.Jobs, p.JobID)

	case event.KindWorkspaceCreating:
		p, err := event.Decode[event.PayloadWorkspaceCreating](e)
		if err != nil {
			return
		}
		s.Workspaces[p.Workspace.ID] = p.Workspace

	case event.KindWorkspaceCreated, event.KindWorkspaceReady:
		p, err := event.Decode[event.PayloadWorkspaceStatus](e)
		if err != nil {
			return
		}
		w, ok := s.Workspaces[p.WorkspaceID]
		if !ok {
			return
		}
		if p.Path != "" {
			w.Path = p.Path
		}
		w.Status = model.WorkspaceReady
		s.Workspaces[p.WorkspaceID] = w

	case event.KindWorkspaceFailed:
		p, err := event.Decode[event.PayloadWorkspaceStatus](e)
		if err != nil {
			return
		}
		w, ok := s.Workspaces[p.WorkspaceID]
		if !ok {
			return
		}
		w.Status = model.WorkspaceFailed
		w.FailReason = p.Reason
		s.Workspaces[p.WorkspaceID] = w

	case event.KindWorkspaceDeleted:
		p, err := event.Decode[event.PayloadWorkspaceStatus](e)
		if err != nil {
			return
		}
		w, ok := s.Workspaces[p.WorkspaceID]
		if !ok {
			return
		}
		w.Status = model.WorkspaceDeleted
		s.Workspaces[p.WorkspaceID] = w
	}
}
