package customevents_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/dynamoclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/docstore"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/customevents"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) (*customevents.CustomEventsHandler, *docstore.Store) {
	t.Helper()
	docs, err := docstore.New(docstore.Config{Client: &dynamoclient.FakeDynamoClient{}, Table: "documents"})
	require.NoError(t, err)
	h, err := customevents.NewCustomEventsHandler(customevents.CustomEventsHandlerConfig{Documents: docs, Logger: &logger.NoopLogger{}})
	require.NoError(t, err)
	return h, docs
}

func TestDocID(t *testing.T) {
	assert.Equal(t, "photos_2024_cat.png", customevents.DocID("photos/2024/cat.png"))
	assert.Equal(t, "cat.png", customevents.DocID("cat.png"))
}

func TestHandleImageResized(t *testing.T) {
	h, docs := newHandler(t)
	env, err := event.New(event.ImageResized, sharedtypes.CustomEvent{
		Type:    "thumbnail.complete",
		Source:  "hermes.thumbnails",
		Subject: "photos/cat.png",
		Data:    json.RawMessage(`{"name":"photos/thumb_cat.png","bucket":"media"}`),
	})
	require.NoError(t, err)
	require.NoError(t, h.HandleImageResized(context.Background(), env))

	doc, ok, err := docs.Get(context.Background(), "images", "photos_cat.png")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"name": "photos/thumb_cat.png", "bucket": "media"}, doc)
}

func TestHandleImageResized_BadData(t *testing.T) {
	h, _ := newHandler(t)
	env, err := event.New(event.ImageResized, sharedtypes.CustomEvent{Subject: "a/b", Data: json.RawMessage(`"nope"`)})
	require.NoError(t, err)
	assert.True(t, fnerr.IsInvalidPayload(h.HandleImageResized(context.Background(), env)))

	env, err = event.New(event.ImageResized, sharedtypes.CustomEvent{Data: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.True(t, fnerr.IsInvalidPayload(h.HandleImageResized(context.Background(), env)))
}
