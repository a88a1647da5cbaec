// Package watcher implements the agent watcher and idle-grace protocol:
// one dedicated task per supervised agent, tailing its session log,
// classifying the agent's current state from the agent CLI's structured
// JSONL transcript records, and applying the idle-grace re-check
// discipline before delivering agent:idle.
package watcher

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/orchestratord/oj/internal/model"
)

// Record is the minimal shape of one line of the agent CLI's structured
// session transcript that classification needs. The full record carries
// much more (timestamps, token usage, tool inputs); only the fields the
// classification rules read are decoded.
type Record struct {
	Type      string   `json:"type"` // "assistant" | "tool_result" | "error"
	Message   *Message `json:"message,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
}

type Message struct {
	Content    []ContentBlock `json:"content"`
	StopReason *string        `json:"stop_reason"`
}

type ContentBlock struct {
	Type string `json:"type"` // "tool_use" | "thinking" | "text"
}

// Classification is the watcher's read of the latest record, independent
// of process-liveness (Exited/SessionGone are layered on top by the
// caller once Classify has returned a Working/WaitingForInput/Failed
// verdict from the log alone).
type Classification struct {
	State    model.AgentObservedState
	FailKind model.AgentErrorKind
}

// ClassifyTail reads every newline-delimited JSON record in r and returns
// the classification of the LAST parseable one. An
// empty or fully-unparseable tail classifies as WaitingForInput (the
// conservative default — nothing to suggest the agent is mid-tool-call).
func ClassifyTail(r io.Reader) Classification {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var last Record
	found := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue // tolerate partial/corrupt trailing lines; keep the last good record
		}
		last = rec
		found = true
	}
	if !found {
		return Classification{State: model.AgentWaitingForInput}
	}
	return classifyRecord(last)
}

func classifyRecord(rec Record) Classification {
	switch rec.Type {
	case "error":
		return Classification{State: model.AgentFailed, FailKind: classifyErrorKind(rec.ErrorKind)}
	case "tool_result":
		return Classification{State: model.AgentWorking}
	case "assistant":
		if rec.Message == nil {
			return Classification{State: model.AgentWaitingForInput}
		}
		for _, block := range rec.Message.Content {
			if block.Type == "tool_use" || block.Type == "thinking" {
				return Classification{State: model.AgentWorking}
			}
		}
		if rec.Message.StopReason == nil {
			return Classification{State: model.AgentWaitingForInput}
		}
		return Classification{State: model.AgentWaitingForInput}
	default:
		return Classification{State: model.AgentWaitingForInput}
	}
}

func classifyErrorKind(raw string) model.AgentErrorKind {
	switch raw {
	case string(model.ErrUnauthorized), string(model.ErrOutOfCredits),
		string(model.ErrNoInternet), string(model.ErrRateLimited):
		return model.AgentErrorKind(raw)
	default:
		return model.ErrOther
	}
}
