package effect

import (
	"encoding/json"

	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func sessionCreatedPayload(cmd *SpawnAgent, sessionHandle string) event.PayloadSessionCreated {
	return event.PayloadSessionCreated{
		Session: model.Session{ID: sessionHandle, Cwd: cmd.Cwd, Env: cmd.Env, Alive: true},
		OwnerID: cmd.AgentID,
	}
}

func agentSpawnedPayload(cmd *SpawnAgent, sessionHandle string) event.PayloadAgentSpawned {
	return event.PayloadAgentSpawned{
		Agent: model.AgentInstance{
			ID: cmd.AgentID, SessionID: sessionHandle, State: model.AgentWorking,
			OwnerJob: cmd.JobID, OwnerRun: cmd.RunID, Namespace: cmd.Namespace,
		},
	}
}

// agentReconnectedPayload marks a surviving agent as working again after a
// resume. It deliberately reuses the agent-state shape rather than
// agent:spawned so apply leaves the existing record's owner fields intact.
func agentReconnectedPayload(agentID string) event.PayloadAgentState {
	return event.PayloadAgentState{AgentID: agentID, State: model.AgentWorking}
}

func agentFailedPayload(agentID string, err error) event.PayloadAgentState {
	return event.PayloadAgentState{
		AgentID:  agentID,
		State:    model.AgentFailed,
		FailKind: model.ErrOther,
	}
}

func shellExitedPayload(cmd *RunShell, code int) event.PayloadShellExited {
	return event.PayloadShellExited{OwnerID: cmd.JobID + ":" + cmd.Step, ExitCode: code, Purpose: cmd.Purpose}
}

func workerPollCompletePayload(poll *PollQueue, items []QueueItemRef) event.PayloadWorkerPollComplete {
	qitems := make([]model.QueueItem, 0, len(items))
	for _, it := range items {
		raw, _ := json.Marshal(it.Payload)
		qitems = append(qitems, model.QueueItem{
			ID:        it.ID,
			Namespace: poll.Namespace,
			Queue:     poll.Queue,
			Status:    model.ItemPending,
			Payload:   string(raw),
		})
	}
	return event.PayloadWorkerPollComplete{Namespace: poll.Namespace, Name: poll.WorkerName, Items: qitems}
}

func queueItemRefPayload(namespace, queue, itemID string) event.PayloadQueueItemRef {
	return event.PayloadQueueItemRef{Namespace: namespace, Queue: queue, ItemID: itemID}
}

func queueTakenPayload(t *TakeItem) event.PayloadQueueItemRef {
	return event.PayloadQueueItemRef{
		Namespace: t.Namespace, Queue: t.Queue, ItemID: t.ItemID,
		JobID: t.JobID, WorkerName: t.WorkerName,
	}
}

func workspaceFailedPayload(workspaceID string, err error) event.PayloadWorkspaceStatus {
	return event.PayloadWorkspaceStatus{WorkspaceID: workspaceID, Reason: err.Error()}
}

func workspaceReadyPayload(workspaceID, path string) event.PayloadWorkspaceStatus {
	return event.PayloadWorkspaceStatus{WorkspaceID: workspaceID, Path: path}
}
