package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/dynamoclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/docstore"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/monitoring"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func newHandler(t *testing.T) (*monitoring.MonitoringHandler, *docstore.Store, *dynamoclient.FakeDynamoClient, *logger.Recorder) {
	t.Helper()
	fake := &dynamoclient.FakeDynamoClient{}
	store, err := docstore.New(docstore.Config{Client: fake, Table: "documents"})
	require.NoError(t, err)
	rec := &logger.Recorder{}
	h, err := monitoring.NewMonitoringHandler(monitoring.MonitoringHandlerConfig{
		Documents: store,
		Now:       func() time.Time { return today },
		Logger:    rec,
	})
	require.NoError(t, err)
	return h, store, fake, rec
}

func TestHandleHelloWorld(t *testing.T) {
	h, _, _, rec := newHandler(t)
	resp, err := h.HandleHelloWorld(context.Background(), sharedtypes.HTTPRequest{Method: "GET"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, monitoring.Greeting, resp.Body)
	assert.Equal(t, []string{"Hello logs!"}, rec.Messages(logger.INFO))
}

func TestQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("quote of the month", func(t *testing.T) {
		h, store, _, rec := newHandler(t)
		require.NoError(t, store.Set(ctx, "quotes/2024/months", "6", map[string]any{"text": "Simple is better than complex."}))
		assert.Equal(t, "Simple is better than complex.", h.Quote(ctx, today))
		assert.Zero(t, rec.Count(logger.WARN))
	})

	t.Run("missing month", func(t *testing.T) {
		h, store, _, rec := newHandler(t)
		require.NoError(t, store.Set(ctx, "quotes/2024/months", "5", map[string]any{"text": "last month"}))
		assert.Equal(t, monitoring.DefaultQuote, h.Quote(ctx, today))
		assert.Equal(t, 1, rec.Count(logger.WARN))
	})

	t.Run("store failure", func(t *testing.T) {
		h, _, fake, rec := newHandler(t)
		fake.Err = errors.New("throttled")
		assert.Equal(t, monitoring.DefaultQuote, h.Quote(ctx, today))
		assert.Equal(t, 1, rec.Count(logger.ERROR))
	})
}

func TestRegister(t *testing.T) {
	h, _, _, rec := newHandler(t)
	r := registry.New(&logger.NoopLogger{})
	require.NoError(t, h.Register(r))
	assert.ElementsMatch(t, []event.Kind{event.HelloWorldRequest, event.QuoteRequest}, r.Kinds())

	env, err := event.New(event.QuoteRequest, sharedtypes.HTTPRequest{Method: "GET"})
	require.NoError(t, err)
	out, err := r.Dispatch(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, monitoring.Greeting, out.(sharedtypes.HTTPResponse).Body)
	assert.Contains(t, rec.Messages(logger.INFO)[0], monitoring.DefaultQuote)

	bare, err := monitoring.NewMonitoringHandler(monitoring.MonitoringHandlerConfig{Logger: &logger.NoopLogger{}})
	require.NoError(t, err)
	r = registry.New(&logger.NoopLogger{})
	require.NoError(t, bare.Register(r))
	assert.Equal(t, []event.Kind{event.HelloWorldRequest}, r.Kinds())
}
