package uppercase_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/dynamoclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/docstore"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/uppercase"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	"github.com/outofoffice3/aws-samples/hermes/internal/rtdb"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler *uppercase.UppercaseHandler
	docs    *docstore.Store
	dynamo  *dynamoclient.FakeDynamoClient
	tree    *rtdb.DB
	log     *logger.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := &dynamoclient.FakeDynamoClient{}
	docs, err := docstore.New(docstore.Config{Client: fake, Table: "documents"})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	tree, err := rtdb.New(client, "")
	require.NoError(t, err)

	rec := &logger.Recorder{}
	h, err := uppercase.NewUppercaseHandler(uppercase.UppercaseHandlerConfig{Documents: docs, Tree: tree, Logger: rec})
	require.NoError(t, err)
	return &fixture{handler: h, docs: docs, dynamo: fake, tree: tree, log: rec}
}

func envelope(t *testing.T, kind event.Kind, params map[string]string, payload any) event.Envelope {
	t.Helper()
	env, err := event.New(kind, payload)
	require.NoError(t, err)
	env.Params = params
	return env
}

func TestHandleDocumentCreated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.docs.Set(ctx, "messages", "m1", map[string]any{"original": "hello"}))

	env := envelope(t, event.MessageDocCreated, map[string]string{"documentId": "m1"}, map[string]any{"original": "hello"})
	require.NoError(t, f.handler.HandleDocumentCreated(ctx, env))

	doc, ok, err := f.docs.Get(ctx, "messages", "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "HELLO", doc["uppercase"])
	assert.Equal(t, "hello", doc["original"])
}

func TestHandleDocumentCreated_OriginalNotString(t *testing.T) {
	f := newFixture(t)
	env := envelope(t, event.MessageDocCreated, map[string]string{"documentId": "m1"}, map[string]any{"original": 42})
	err := f.handler.HandleDocumentCreated(context.Background(), env)
	assert.True(t, fnerr.IsInvalidPayload(err))
	assert.Empty(t, f.dynamo.Keys())
}

func TestHandleDocumentWritten_OnlyOnCreate(t *testing.T) {
	tests := []struct {
		name   string
		change sharedtypes.Change
		writes bool
	}{
		{"create", sharedtypes.Change{After: json.RawMessage(`{"original":"hi"}`)}, true},
		{"update", sharedtypes.Change{Before: json.RawMessage(`{"original":"a"}`), After: json.RawMessage(`{"original":"b"}`)}, false},
		{"delete", sharedtypes.Change{Before: json.RawMessage(`{"original":"a"}`), After: json.RawMessage(`null`)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			env := envelope(t, event.MessageDocWritten, map[string]string{"documentId": "m1"}, tt.change)
			require.NoError(t, f.handler.HandleDocumentWritten(context.Background(), env))
			_, ok, err := f.docs.Get(context.Background(), "messages", "m1")
			require.NoError(t, err)
			assert.Equal(t, tt.writes, ok)
		})
	}
}

func TestHandleOriginalCreated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	env := envelope(t, event.MessageOriginalAdded, map[string]string{"pushId": "-Nabc"}, "shout")
	require.NoError(t, f.handler.HandleOriginalCreated(ctx, env))

	got, ok, err := f.tree.Get(ctx, "messages/-Nabc/uppercase")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SHOUT", got)
}

func TestHandleOriginalWritten_IgnoresUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	change := sharedtypes.Change{Before: json.RawMessage(`"a"`), After: json.RawMessage(`"b"`)}
	env := envelope(t, event.MessageOriginalWritten, map[string]string{"pushId": "p1"}, change)
	require.NoError(t, f.handler.HandleOriginalWritten(ctx, env))

	_, ok, err := f.tree.Get(ctx, "messages/p1/uppercase")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandleAddMessage(t *testing.T) {
	f := newFixture(t)
	r := registry.New(f.log)
	require.NoError(t, f.handler.Register(r))

	env := envelope(t, event.AddMessageRequest, nil, sharedtypes.HTTPRequest{Query: map[string]string{"text": "hello"}})
	out, err := r.Dispatch(context.Background(), env)
	require.NoError(t, err)
	resp := out.(sharedtypes.HTTPResponse)
	assert.Equal(t, 200, resp.Status)
	assert.Contains(t, resp.Body, "Message with ID: ")
	assert.Len(t, f.dynamo.Keys(), 1)

	env = envelope(t, event.AddMessageRequest, nil, sharedtypes.HTTPRequest{})
	out, err = r.Dispatch(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, 400, out.(sharedtypes.HTTPResponse).Status)
	assert.Len(t, f.dynamo.Keys(), 1)
}

func TestVerified(t *testing.T) {
	assert.True(t, uppercase.Verified("system", ""))
	assert.True(t, uppercase.Verified("unknown", "admin@example.com"))
	assert.True(t, uppercase.Verified("unauthenticated", "ops@example.com"))
	assert.False(t, uppercase.Verified("unknown", "admin@elsewhere.com"))
	assert.False(t, uppercase.Verified("api_key", "admin@example.com"))
}

func TestHandleCommentWritten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	write := sharedtypes.DocumentWrite{
		Change:   sharedtypes.Change{After: json.RawMessage(`{"text":"nice"}`)},
		AuthType: "unknown",
		AuthID:   "admin@example.com",
	}
	env := envelope(t, event.CommentUpdatedWithAuth, map[string]string{"commentId": "c1"}, write)
	require.NoError(t, f.handler.HandleCommentWritten(ctx, env))

	doc, ok, err := f.docs.Get(ctx, "comments", "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "admin@example.com", doc["created_by"])
	assert.Equal(t, true, doc["verified"])

	deleted := envelope(t, event.CommentUpdatedWithAuth, map[string]string{"commentId": "c2"}, sharedtypes.DocumentWrite{AuthType: "system"})
	require.NoError(t, f.handler.HandleCommentWritten(ctx, deleted))
	_, ok, err = f.docs.Get(ctx, "comments", "c2")
	require.NoError(t, err)
	assert.False(t, ok)
}
