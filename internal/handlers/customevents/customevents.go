// Package customevents records image-resized custom events in the document store.
package customevents

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/outofoffice3/aws-samples/hermes/internal/docstore"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
)

const (
	// error msgs
	DocumentsNilErrMsg = "document store is nil"

	ImagesCollection = "images"
)

type CustomEventsHandler struct {
	Documents docstore.Documents
	Logger    logger.Logger
}

type CustomEventsHandlerConfig struct {
	Documents docstore.Documents
	Logger    logger.Logger
}

func NewCustomEventsHandler(config CustomEventsHandlerConfig) (*CustomEventsHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Documents == nil {
		return nil, handlers.LogAndReturnError(errors.New(DocumentsNilErrMsg), config.Logger)
	}
	return &CustomEventsHandler{Documents: config.Documents, Logger: config.Logger}, nil
}

func (h *CustomEventsHandler) Register(r *registry.Registry) error {
	const name = "onimageresized"
	return r.Register(registry.Registration{
		Kind:    event.ImageResized,
		Name:    name,
		Style:   registry.StyleTrigger,
		Handler: registry.Trigger(name, h.HandleImageResized, h.Logger),
	})
}

// DocID turns an object path into a document id.
func DocID(subject string) string {
	return strings.ReplaceAll(subject, "/", "_")
}

// HandleImageResized stores the event data under images/<subject>.
func (h *CustomEventsHandler) HandleImageResized(ctx context.Context, env event.Envelope) error {
	ce, err := event.Decode[sharedtypes.CustomEvent](env)
	if err != nil {
		return err
	}
	h.Logger.Info("Received image resize completed event %s from %s for %s", ce.Type, ce.Source, ce.Subject)
	var data map[string]any
	if err := json.Unmarshal(ce.Data, &data); err != nil || data == nil {
		return fnerr.WrongType("data", "an object")
	}
	return h.Documents.Set(ctx, ImagesCollection, DocID(ce.Subject), data)
}
