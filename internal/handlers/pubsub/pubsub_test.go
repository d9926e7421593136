package pubsub_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/pubsub"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func published(t *testing.T, kind event.Kind, msg sharedtypes.PubSubMessage) event.Envelope {
	t.Helper()
	env, err := event.New(kind, sharedtypes.MessagePublished{Message: msg})
	require.NoError(t, err)
	return env
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestHandlers(t *testing.T) {
	tests := []struct {
		name   string
		kind   event.Kind
		msg    sharedtypes.PubSubMessage
		want   string
		errors int
	}{
		{"body", event.PubSubHello, sharedtypes.PubSubMessage{Data: b64("Ada")}, "Hello Ada!", 0},
		{"no body", event.PubSubHello, sharedtypes.PubSubMessage{}, "Hello World!", 0},
		{"json", event.PubSubHelloJSON, sharedtypes.PubSubMessage{Data: b64(`{"name":"Grace"}`)}, "Hello Grace!", 0},
		{"not json", event.PubSubHelloJSON, sharedtypes.PubSubMessage{Data: b64("plain")}, "Hello World!", 1},
		{"attribute", event.PubSubHelloAttributes, sharedtypes.PubSubMessage{Attributes: map[string]string{"name": "Linus"}}, "Hello Linus!", 0},
		{"no attribute", event.PubSubHelloAttributes, sharedtypes.PubSubMessage{}, "Hello World!", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &logger.Recorder{}
			h, err := pubsub.NewPubSubHandler(pubsub.PubSubHandlerConfig{Logger: rec})
			require.NoError(t, err)
			r := registry.New(rec)
			require.NoError(t, h.Register(r))

			_, err = r.Dispatch(context.Background(), published(t, tt.kind, tt.msg))
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, rec.Messages(logger.INFO))
			assert.Equal(t, tt.errors, rec.Count(logger.ERROR))
		})
	}
}
