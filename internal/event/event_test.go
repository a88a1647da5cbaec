package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestratord/oj/internal/model"
)

func TestNewAndDecodeRoundTrip(t *testing.T) {
	env, err := New(KindJobCreated, PayloadJobCreated{Job: model.Job{ID: "job_1", Namespace: "demo"}})
	require.NoError(t, err)
	require.Equal(t, KindJobCreated, env.Kind)
	require.Zero(t, env.Seq)

	p, err := Decode[PayloadJobCreated](env)
	require.NoError(t, err)
	require.Equal(t, "job_1", p.Job.ID)
	require.Equal(t, "demo", p.Job.Namespace)
}

func TestNewWithNilPayloadHasEmptyData(t *testing.T) {
	env, err := New(KindDaemonShutdown, nil)
	require.NoError(t, err)
	require.Empty(t, env.Data)

	p, err := Decode[PayloadDaemonShutdown](env)
	require.NoError(t, err)
	require.False(t, p.KillSessions)
}

func TestEnvelopeWireShape(t *testing.T) {
	env, err := New(KindTimerStart, PayloadTimer{TimerID: "cron:demo/janitor:tick"})
	require.NoError(t, err)
	env.Seq = 42

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var onWire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &onWire))
	require.Contains(t, onWire, "seq")
	require.Contains(t, onWire, "kind")
	require.JSONEq(t, `"timer:start"`, string(onWire["kind"]))

	var back Envelope
	require.NoError(t, json.Unmarshal(raw, &back))
	require.EqualValues(t, 42, back.Seq)
	p, err := Decode[PayloadTimer](back)
	require.NoError(t, err)
	require.Equal(t, "cron:demo/janitor:tick", p.TimerID)
}

func TestDecodeMismatchedPayloadErrors(t *testing.T) {
	env := Envelope{Kind: KindJobCreated, Data: json.RawMessage(`{"job": "not-an-object"}`)}
	_, err := Decode[PayloadJobCreated](env)
	require.Error(t, err)
}
