// Package pubsub greets whoever is named in a published message.
package pubsub

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
)

const defaultName = "World"

type PubSubHandler struct {
	Logger logger.Logger
}

type PubSubHandlerConfig struct {
	Logger logger.Logger
}

func NewPubSubHandler(config PubSubHandlerConfig) (*PubSubHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	return &PubSubHandler{Logger: config.Logger}, nil
}

func (h *PubSubHandler) Register(r *registry.Registry) error {
	for _, b := range []struct {
		kind event.Kind
		name string
		fn   registry.TriggerFunc
	}{
		{event.PubSubHello, "hellopubsub", h.HandleHello},
		{event.PubSubHelloJSON, "hellopubsubjson", h.HandleHelloJSON},
		{event.PubSubHelloAttributes, "hellopubsubattributes", h.HandleHelloAttributes},
	} {
		err := r.Register(registry.Registration{
			Kind:    b.kind,
			Name:    b.name,
			Style:   registry.StyleTrigger,
			Handler: registry.Trigger(b.name, b.fn, h.Logger),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Greeting returns "Hello <name>!" with World standing in for an empty name.
func Greeting(name string) string {
	if name == "" {
		name = defaultName
	}
	return "Hello " + name + "!"
}

// Body decodes the base64 message data. Undecodable data reads as empty.
func Body(m sharedtypes.PubSubMessage) string {
	if m.Data == "" {
		return ""
	}
	b, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return ""
	}
	return string(b)
}

// HandleHello greets the raw message body.
func (h *PubSubHandler) HandleHello(ctx context.Context, env event.Envelope) error {
	p, err := event.Decode[sharedtypes.MessagePublished](env)
	if err != nil {
		return err
	}
	h.Logger.Info("%s", Greeting(Body(p.Message)))
	return nil
}

// HandleHelloJSON greets the "name" field of a JSON message body.
func (h *PubSubHandler) HandleHelloJSON(ctx context.Context, env event.Envelope) error {
	p, err := event.Decode[sharedtypes.MessagePublished](env)
	if err != nil {
		return err
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(Body(p.Message)), &body); err != nil {
		h.Logger.Error("PubSub message was not JSON: %v", err)
	}
	h.Logger.Info("%s", Greeting(body.Name))
	return nil
}

// HandleHelloAttributes greets the "name" message attribute.
func (h *PubSubHandler) HandleHelloAttributes(ctx context.Context, env event.Envelope) error {
	p, err := event.Decode[sharedtypes.MessagePublished](env)
	if err != nil {
		return err
	}
	h.Logger.Info("%s", Greeting(p.Message.Attributes["name"]))
	return nil
}
