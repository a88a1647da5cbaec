package model

// State is the full materialized state of the engine: the result of
// replaying the WAL (optionally starting from a snapshot) through
// internal/state.Apply. It is a plain value — the snapshot writer deep
// clones it under the state lock and compresses the clone on a
// background goroutine while the loop keeps mutating the original.
//
// Namespacing: every addressable resource (job, worker, queue, cron,
// decision) carries a namespace tag; compound keys "namespace/name"
// disambiguate identically-named resources. Jobs, agents, sessions, and
// workspaces are keyed by their own globally unique ids instead, since
// those are never user-named.
type State struct {
	SchemaVersion int `json:"schema_version"`
	LastSeq       uint64 `json:"last_seq"`

	Runbooks map[string]Runbook `json:"runbooks"` // by content hash

	Jobs       map[string]Job       `json:"jobs"`
	Agents     map[string]AgentInstance `json:"agents"`
	Sessions   map[string]Session   `json:"sessions"`
	Workspaces map[string]Workspace `json:"workspaces"`
	AgentRuns  map[string]AgentRun  `json:"agent_runs"`

	Workers   map[string]Worker   `json:"workers"`   // key: namespace/name
	Queues    map[string]QueueState `json:"queues"`  // key: namespace/name
	Crons     map[string]Cron     `json:"crons"`     // key: namespace/name
	Decisions map[string]Decision `json:"decisions"`
}

// QueueState is the materialized state of one named queue: its spec-derived
// identity plus the items currently known to it.
type QueueState struct {
	Name      string               `json:"name"`
	Namespace string               `json:"namespace"`
	External  bool                 `json:"external"`
	Items     map[string]QueueItem `json:"items"`
}

// NewState returns an empty, fully-initialized State. All map fields must
// be non-nil so Apply never has to nil-check before writing.
func NewState() State {
	return State{
		Runbooks:   map[string]Runbook{},
		Jobs:       map[string]Job{},
		Agents:     map[string]AgentInstance{},
		Sessions:   map[string]Session{},
		Workspaces: map[string]Workspace{},
		AgentRuns:  map[string]AgentRun{},
		Workers:    map[string]Worker{},
		Queues:     map[string]QueueState{},
		Crons:      map[string]Cron{},
		Decisions:  map[string]Decision{},
	}
}

// Clone returns a deep copy of s, suitable for handing to a background
// snapshot writer while the main loop continues mutating the original
// under the state lock.
func (s State) Clone() State {
	out := NewState()
	out.SchemaVersion = s.SchemaVersion
	out.LastSeq = s.LastSeq

	for k, v := range s.Runbooks {
		out.Runbooks[k] = v
	}
	for k, v := range s.Jobs {
		j := v
		j.Vars = cloneMap(v.Vars)
		j.History = append([]StepState(nil), v.History...)
		out.Jobs[k] = j
	}
	for k, v := range s.Agents {
		out.Agents[k] = v
	}
	for k, v := range s.Sessions {
		sv := v
		sv.Env = cloneMap(v.Env)
		out.Sessions[k] = sv
	}
	for k, v := range s.Workspaces {
		out.Workspaces[k] = v
	}
	for k, v := range s.AgentRuns {
		out.AgentRuns[k] = v
	}
	for k, v := range s.Workers {
		wv := v
		wv.Dispatched = append([]DispatchedItem(nil), v.Dispatched...)
		out.Workers[k] = wv
	}
	for k, v := range s.Queues {
		qv := QueueState{Name: v.Name, Namespace: v.Namespace, External: v.External, Items: map[string]QueueItem{}}
		for ik, iv := range v.Items {
			qv.Items[ik] = iv
		}
		out.Queues[k] = qv
	}
	for k, v := range s.Crons {
		cv := v
		cv.RunningJobIDs = append([]string(nil), v.RunningJobIDs...)
		out.Crons[k] = cv
	}
	for k, v := range s.Decisions {
		dv := v
		dv.Options = append([]DecisionOption(nil), v.Options...)
		out.Decisions[k] = dv
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// QueueKey builds the compound "namespace/name" key used for workers,
// queues, and crons.
func QueueKey(namespace, name string) string { return namespace + "/" + name }
