// Package event defines the immutable envelope every handler receives and
// the decoding step that turns its payload into a typed struct.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
)

// Kind tags the trigger an envelope came from. The registry routes on it.
type Kind string

// Envelope is produced by the host for each invocation and consumed exactly once.
type Envelope struct {
	Kind    Kind              `json:"kind"`
	ID      string            `json:"id,omitempty"`
	Source  string            `json:"source,omitempty"`
	Subject string            `json:"subject,omitempty"`
	Time    time.Time         `json:"time,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Payload json.RawMessage   `json:"payload"`
}

// Validator is implemented by payload types that check their own required fields.
type Validator interface {
	Validate() error
}

// Decode unmarshals the envelope payload into T. A malformed payload, or one
// that fails T's own validation, is reported as fnerr.InvalidPayload.
func Decode[T any](env Envelope) (T, error) {
	var out T
	if len(bytes.TrimSpace(env.Payload)) == 0 || bytes.Equal(bytes.TrimSpace(env.Payload), []byte("null")) {
		return out, fnerr.Missing("payload")
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, &fnerr.InvalidPayload{Reason: fmt.Sprintf("cannot decode %s payload: %v", env.Kind, err)}
	}
	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, err
		}
	}
	return out, nil
}

// Param returns a path parameter captured by the trigger, e.g. "pushId".
func (e Envelope) Param(name string) (string, error) {
	v, ok := e.Params[name]
	if !ok || v == "" {
		return "", fnerr.Missing("params." + name)
	}
	return v, nil
}

// New builds an envelope with payload marshalled from v.
func New(kind Kind, v any) (Envelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Envelope{Kind: kind, Time: time.Now().UTC(), Payload: raw}, nil
}
