package event

import "encoding/json"

// Envelope is the WAL's on-disk unit: one JSON object per line, shaped
// {"seq": u64, "kind": "...", "data": {...payload}}. The payload stays a
// separate JSON block under "data": it is not flattened into the line and
// there is no nested "event" object. Apply and the functional core turn
// Data into a concrete payload type with Decode.
type Envelope struct {
	Seq  uint64          `json:"seq"`
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// New builds an Envelope for kind carrying payload, marshaled to Data.
// Seq is left zero; the WAL writer assigns it atomically at append time.
func New(kind Kind, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Kind: kind}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: kind, Data: data}, nil
}

// Decode unmarshals e.Data into a fresh T.
func Decode[T any](e Envelope) (T, error) {
	var out T
	if len(e.Data) == 0 {
		return out, nil
	}
	err := json.Unmarshal(e.Data, &out)
	return out, err
}
