// Package output renders the bootstrap CLI's JSON envelope: every
// command prints exactly one schema-versioned object, so a scripted
// caller branches on .success instead of parsing prose. Failures
// carrying the daemon's structured error shapes (workspace, agent,
// snapshot, WAL) are unpacked into code/context/suggested-action fields.
package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/orchestratord/oj/internal/model"
)

const schemaVersion = "v1"

// Envelope is the single object every CLI command prints.
type Envelope struct {
	SchemaVersion   string            `json:"schema_version"`
	Success         bool              `json:"success"`
	Data            any               `json:"data,omitempty"`
	Error           string            `json:"error,omitempty"`
	ErrorCode       string            `json:"error_code,omitempty"`
	ErrorContext    map[string]string `json:"error_context,omitempty"`
	SuggestedAction string            `json:"suggested_action,omitempty"`
}

// OK wraps data in a success envelope.
func OK(data any) Envelope {
	return Envelope{SchemaVersion: schemaVersion, Success: true, Data: data}
}

// Fail wraps err. When the chain carries a model.RecoverableError — the
// shape every enriched daemon error implements — its code, context, and
// remediation hint ride along; a plain error yields just the message.
func Fail(err error) Envelope {
	env := Envelope{SchemaVersion: schemaVersion, Error: err.Error()}
	var re model.RecoverableError
	if errors.As(err, &re) {
		env.ErrorCode = re.ErrorCode()
		env.ErrorContext = re.Context()
		env.SuggestedAction = re.SuggestedAction()
	}
	return env
}

// Write renders e to w as one JSON object, indented when OJ_PRETTY_JSON
// is set truthy.
func (e Envelope) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	if pretty() {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(e)
}

func pretty() bool {
	v := os.Getenv("OJ_PRETTY_JSON")
	return v == "1" || v == "true"
}

// PrintSuccess prints a success envelope to stdout.
func PrintSuccess(data any) error { return OK(data).Write(os.Stdout) }

// PrintError prints a failure envelope to stdout. The returned error is
// the write's, not err — callers hand err off here precisely so the
// command can exit zero after reporting it in-band.
func PrintError(err error) error { return Fail(err).Write(os.Stdout) }
