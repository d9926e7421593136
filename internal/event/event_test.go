package event_test

import (
	"encoding/json"
	"testing"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Valid(t *testing.T) {
	env := event.Envelope{
		Kind:    event.CrashlyticsNewFatalIssue,
		Payload: json.RawMessage(`{"appId":"myapp","issue":{"id":"abc123","title":"Crash"}}`),
	}
	p, err := event.Decode[sharedtypes.NewFatalIssuePayload](env)
	require.NoError(t, err)
	assert.Equal(t, "myapp", p.AppID)
	assert.Equal(t, "Crash", p.Issue.Title)
}

func TestDecode_Invalid(t *testing.T) {
	cases := map[string]json.RawMessage{
		"empty":          nil,
		"null":           json.RawMessage(`null`),
		"malformed":      json.RawMessage(`{"appId":`),
		"wrong type":     json.RawMessage(`{"appId":42}`),
		"missing issue":  json.RawMessage(`{"appId":"myapp"}`),
		"missing app id": json.RawMessage(`{"issue":{"id":"x"}}`),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := event.Decode[sharedtypes.NewFatalIssuePayload](event.Envelope{Kind: "k", Payload: payload})
			assert.True(t, fnerr.IsInvalidPayload(err), "got %v", err)
		})
	}
}

func TestParam(t *testing.T) {
	env := event.Envelope{Params: map[string]string{"pushId": "p1", "empty": ""}}
	v, err := env.Param("pushId")
	require.NoError(t, err)
	assert.Equal(t, "p1", v)

	_, err = env.Param("empty")
	assert.True(t, fnerr.IsInvalidPayload(err))
	_, err = env.Param("nope")
	assert.True(t, fnerr.IsInvalidPayload(err))
}

func TestNew(t *testing.T) {
	env, err := event.New(event.BackupApodTask, sharedtypes.BackupTask{Date: "1995-06-17"})
	require.NoError(t, err)
	assert.Equal(t, event.BackupApodTask, env.Kind)
	assert.JSONEq(t, `{"date":"1995-06-17"}`, string(env.Payload))
	assert.False(t, env.Time.IsZero())
}
