package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(_ context.Context, env event.Envelope) (any, error) {
	return string(env.Kind), nil
}

func TestRegister_Validation(t *testing.T) {
	r := registry.New(&logger.NoopLogger{})

	err := r.Register(registry.Registration{Handler: echo})
	assert.EqualError(t, err, registry.KindNotSetErrMsg)

	err = r.Register(registry.Registration{Kind: "a"})
	assert.ErrorContains(t, err, registry.HandlerNilErrMsg)

	require.NoError(t, r.Register(registry.Registration{Kind: "a", Handler: echo}))
	err = r.Register(registry.Registration{Kind: "a", Handler: echo})
	assert.ErrorContains(t, err, registry.DuplicateKindErrMsg)

	r.Seal()
	err = r.Register(registry.Registration{Kind: "b", Handler: echo})
	assert.EqualError(t, err, registry.RegistryClosedErrMsg)
}

func TestDispatch(t *testing.T) {
	r := registry.New(&logger.NoopLogger{})
	require.NoError(t, r.Register(registry.Registration{Kind: "b", Handler: echo}))
	require.NoError(t, r.Register(registry.Registration{Kind: "a", Handler: echo}))

	out, err := r.Dispatch(context.Background(), event.Envelope{Kind: "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", out)

	_, err = r.Dispatch(context.Background(), event.Envelope{Kind: "missing"})
	assert.ErrorContains(t, err, registry.UnknownKindErrMsg)

	assert.Equal(t, []event.Kind{"a", "b"}, r.Kinds())

	reg, ok := r.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "b", reg.Name)
}

func TestTrigger_SwallowsAndLogsOnce(t *testing.T) {
	rec := &logger.Recorder{}
	h := registry.Trigger("postFatalIssue", func(context.Context, event.Envelope) error {
		return fnerr.NotConfigured("DISCORD_WEBHOOK_URL")
	}, rec)

	out, err := h(context.Background(), event.Envelope{Kind: "x"})
	assert.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1, rec.Count(logger.ERROR))
	assert.Contains(t, rec.Messages(logger.ERROR)[0], "postFatalIssue")
}

func TestTrigger_ReportsAbsorbedFailure(t *testing.T) {
	boom := errors.New("boom")
	fail := registry.Trigger("fail", func(context.Context, event.Envelope) error { return boom }, &logger.NoopLogger{})
	ok := registry.Trigger("ok", func(context.Context, event.Envelope) error { return nil }, &logger.NoopLogger{})

	ctx, outcome := registry.WithOutcome(context.Background())
	_, err := ok(ctx, event.Envelope{})
	require.NoError(t, err)
	assert.NoError(t, outcome.Err())

	_, err = fail(ctx, event.Envelope{})
	require.NoError(t, err)
	assert.ErrorIs(t, outcome.Err(), boom)

	// Without an outcome in the context the failure is only logged.
	_, err = fail(context.Background(), event.Envelope{})
	assert.NoError(t, err)
}

func TestTrigger_SuccessLogsNothing(t *testing.T) {
	rec := &logger.Recorder{}
	h := registry.Trigger("ok", func(context.Context, event.Envelope) error { return nil }, rec)
	_, err := h(context.Background(), event.Envelope{})
	assert.NoError(t, err)
	assert.Empty(t, rec.Entries())
}

func TestCallable_MapsErrors(t *testing.T) {
	h := registry.Callable(func(context.Context, event.Envelope) (map[string]int, error) {
		return nil, fnerr.Missing("firstNumber")
	})
	_, err := h(context.Background(), event.Envelope{})
	var he *fnerr.HTTPSError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, fnerr.InvalidArgument, he.Code)

	ok := registry.Callable(func(context.Context, event.Envelope) (int, error) { return 3, nil })
	out, err := ok(context.Background(), event.Envelope{})
	require.NoError(t, err)
	assert.Equal(t, 3, out)
}

func TestRequest(t *testing.T) {
	rec := &logger.Recorder{}
	h := registry.Request("addmessage", func(_ context.Context, req sharedtypes.HTTPRequest) (sharedtypes.HTTPResponse, error) {
		if req.Query["text"] == "" {
			return sharedtypes.HTTPResponse{}, fnerr.Missing("text")
		}
		return sharedtypes.HTTPResponse{Status: 200, Body: req.Query["text"]}, nil
	}, rec)

	env, err := event.New(event.AddMessageRequest, sharedtypes.HTTPRequest{Query: map[string]string{"text": "hi"}})
	require.NoError(t, err)
	out, err := h(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, sharedtypes.HTTPResponse{Status: 200, Body: "hi"}, out)

	env, err = event.New(event.AddMessageRequest, sharedtypes.HTTPRequest{})
	require.NoError(t, err)
	out, err = h(context.Background(), env)
	require.NoError(t, err)
	resp := out.(sharedtypes.HTTPResponse)
	assert.Equal(t, 400, resp.Status)
	assert.JSONEq(t, `{"error":{"status":"INVALID_ARGUMENT","message":"The request payload is invalid."}}`, resp.Body)
	assert.Equal(t, 1, rec.Count(logger.ERROR))

	ctx, outcome := registry.WithOutcome(context.Background())
	_, err = h(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, fnerr.InvalidArgument, fnerr.CodeFor(outcome.Err()))
}
