// Package uppercase keeps an uppercased copy of every message written to the
// document store or the realtime database, and serves the endpoint that adds
// messages.
package uppercase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/outofoffice3/aws-samples/hermes/internal/docstore"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	"github.com/outofoffice3/aws-samples/hermes/internal/rtdb"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
)

const (
	// error msgs
	DocumentsNilErrMsg = "document store is nil"

	MessagesCollection = "messages"
	CommentsCollection = "comments"
	VerifiedDomain     = "@example.com"
)

type UppercaseHandler struct {
	Documents docstore.Documents
	Tree      rtdb.Tree
	Logger    logger.Logger
}

type UppercaseHandlerConfig struct {
	Documents docstore.Documents
	// Tree is optional. The realtime database triggers are only bound when set.
	Tree   rtdb.Tree
	Logger logger.Logger
}

func NewUppercaseHandler(config UppercaseHandlerConfig) (*UppercaseHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Documents == nil {
		return nil, handlers.LogAndReturnError(errors.New(DocumentsNilErrMsg), config.Logger)
	}
	return &UppercaseHandler{
		Documents: config.Documents,
		Tree:      config.Tree,
		Logger:    config.Logger,
	}, nil
}

func (h *UppercaseHandler) Register(r *registry.Registry) error {
	regs := []registry.Registration{
		h.trigger(event.MessageDocCreated, "makeuppercase", h.HandleDocumentCreated),
		h.trigger(event.MessageDocWritten, "makeuppercase2", h.HandleDocumentWritten),
		h.trigger(event.CommentUpdatedWithAuth, "verifycomment", h.HandleCommentWritten),
		{
			Kind:    event.AddMessageRequest,
			Name:    "addmessage",
			Style:   registry.StyleRequest,
			Handler: registry.Request("addmessage", h.HandleAddMessage, h.Logger),
		},
	}
	if h.Tree != nil {
		regs = append(regs,
			h.trigger(event.MessageOriginalAdded, "makeuppercasertdb", h.HandleOriginalCreated),
			h.trigger(event.MessageOriginalWritten, "makeuppercasertdb2", h.HandleOriginalWritten),
		)
	}
	for _, reg := range regs {
		if err := r.Register(reg); err != nil {
			return err
		}
	}
	return nil
}

func (h *UppercaseHandler) trigger(kind event.Kind, name string, fn registry.TriggerFunc) registry.Registration {
	return registry.Registration{
		Kind:    kind,
		Name:    name,
		Style:   registry.StyleTrigger,
		Handler: registry.Trigger(name, fn, h.Logger),
	}
}

// original pulls the "original" field out of a message document.
func original(raw json.RawMessage) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fnerr.WrongType("document", "an object")
	}
	v, ok := doc["original"]
	if !ok {
		return "", fnerr.Missing("original")
	}
	s, ok := v.(string)
	if !ok {
		return "", fnerr.WrongType("original", "a string")
	}
	return s, nil
}

func (h *UppercaseHandler) uppercaseDocument(ctx context.Context, id string, raw json.RawMessage) error {
	text, err := original(raw)
	if err != nil {
		return err
	}
	h.Logger.Info("Uppercasing %s %s", id, text)
	return h.Documents.Update(ctx, MessagesCollection, id, map[string]any{"uppercase": strings.ToUpper(text)})
}

// HandleDocumentCreated reacts to messages/{documentId} being created.
func (h *UppercaseHandler) HandleDocumentCreated(ctx context.Context, env event.Envelope) error {
	id, err := env.Param("documentId")
	if err != nil {
		return err
	}
	return h.uppercaseDocument(ctx, id, env.Payload)
}

// HandleDocumentWritten is the write-trigger variant; it only acts on creation.
func (h *UppercaseHandler) HandleDocumentWritten(ctx context.Context, env event.Envelope) error {
	id, err := env.Param("documentId")
	if err != nil {
		return err
	}
	change, err := event.Decode[sharedtypes.Change](env)
	if err != nil {
		return err
	}
	if sharedtypes.Exists(change.Before) || !sharedtypes.Exists(change.After) {
		return nil
	}
	return h.uppercaseDocument(ctx, id, change.After)
}

func (h *UppercaseHandler) uppercaseNode(ctx context.Context, pushID string, raw json.RawMessage) error {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return fnerr.WrongType("original", "a string")
	}
	h.Logger.Info("Uppercasing %s %s", pushID, text)
	return h.Tree.Set(ctx, rtdb.Join(MessagesCollection, pushID, "uppercase"), strings.ToUpper(text))
}

// HandleOriginalCreated reacts to messages/{pushId}/original being created in
// the realtime database and writes the uppercase sibling.
func (h *UppercaseHandler) HandleOriginalCreated(ctx context.Context, env event.Envelope) error {
	pushID, err := env.Param("pushId")
	if err != nil {
		return err
	}
	return h.uppercaseNode(ctx, pushID, env.Payload)
}

func (h *UppercaseHandler) HandleOriginalWritten(ctx context.Context, env event.Envelope) error {
	pushID, err := env.Param("pushId")
	if err != nil {
		return err
	}
	change, err := event.Decode[sharedtypes.Change](env)
	if err != nil {
		return err
	}
	if sharedtypes.Exists(change.Before) || !sharedtypes.Exists(change.After) {
		return nil
	}
	return h.uppercaseNode(ctx, pushID, change.After)
}

// HandleAddMessage stores ?text= as a new message.
func (h *UppercaseHandler) HandleAddMessage(ctx context.Context, req sharedtypes.HTTPRequest) (sharedtypes.HTTPResponse, error) {
	text := req.Query["text"]
	if text == "" {
		return sharedtypes.HTTPResponse{}, fnerr.Missing("text")
	}
	id, err := h.Documents.Add(ctx, MessagesCollection, map[string]any{"original": text})
	if err != nil {
		return sharedtypes.HTTPResponse{}, err
	}
	body, err := json.Marshal(map[string]string{"result": fmt.Sprintf("Message with ID: %s added.", id)})
	if err != nil {
		return sharedtypes.HTTPResponse{}, err
	}
	return sharedtypes.HTTPResponse{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    string(body),
	}, nil
}

// Verified reports whether a writer identity is trusted: system writes are,
// and so are admin writes from the verified domain.
func Verified(authType, authID string) bool {
	switch authType {
	case "system":
		return true
	case "unknown", "unauthenticated":
		return strings.HasSuffix(authID, VerifiedDomain)
	}
	return false
}

// HandleCommentWritten stamps comments/{commentId} with its author and
// whether that author is trusted.
func (h *UppercaseHandler) HandleCommentWritten(ctx context.Context, env event.Envelope) error {
	id, err := env.Param("commentId")
	if err != nil {
		return err
	}
	write, err := event.Decode[sharedtypes.DocumentWrite](env)
	if err != nil {
		return err
	}
	if !sharedtypes.Exists(write.After) {
		h.Logger.Info("No data associated with the event")
		return nil
	}
	return h.Documents.Update(ctx, CommentsCollection, id, map[string]any{
		"created_by": write.AuthID,
		"verified":   Verified(write.AuthType, write.AuthID),
	})
}
