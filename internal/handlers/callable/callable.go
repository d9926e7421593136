// Package callable holds the callable functions: adding two numbers and
// posting a sanitized chat message.
package callable

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	"github.com/outofoffice3/aws-samples/hermes/internal/rtdb"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
)

const (
	AddNumbersArgsMsg = `The function must be called with two arguments, "firstNumber" and "secondNumber", which must both be numbers.`
	AddMessageArgsMsg = `The function must be called with one argument, "text", containing the message text to add.`
	AuthRequiredMsg   = "The function must be called while authenticated."

	MessagesPath = "messages"
)

type AddNumbersResult struct {
	FirstNumber     int64  `json:"firstNumber"`
	SecondNumber    int64  `json:"secondNumber"`
	Operator        string `json:"operator"`
	OperationResult int64  `json:"operationResult"`
}

type AddMessageResult struct {
	Text string `json:"text"`
}

// Author is stored with every message.
type Author struct {
	UID     string  `json:"uid"`
	Name    *string `json:"name"`
	Picture *string `json:"picture"`
	Email   *string `json:"email"`
}

type CallableHandler struct {
	Tree   rtdb.Tree
	Logger logger.Logger
}

type CallableHandlerConfig struct {
	// Tree stores chat messages. Without it addmessage is not registered.
	Tree   rtdb.Tree
	Logger logger.Logger
}

func NewCallableHandler(config CallableHandlerConfig) (*CallableHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	return &CallableHandler{Tree: config.Tree, Logger: config.Logger}, nil
}

func (h *CallableHandler) Register(r *registry.Registry) error {
	if err := r.Register(registry.Registration{
		Kind:    event.CallAddNumbers,
		Name:    "addnumbers",
		Style:   registry.StyleCallable,
		Handler: registry.Callable(h.AddNumbers),
	}); err != nil {
		return err
	}
	if h.Tree == nil {
		h.Logger.Warn("no realtime database; addmessage is disabled")
		return nil
	}
	return r.Register(registry.Registration{
		Kind:    event.CallAddMessage,
		Name:    "addmessage",
		Style:   registry.StyleCallable,
		Handler: registry.Callable(h.AddMessage),
	})
}

// toInt converts a JSON value the way int() does: whole numbers and
// numeric strings are accepted and fractions are truncated toward zero.
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return truncate(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func truncate(f float64) (int64, bool) {
	t := math.Trunc(f)
	if math.IsNaN(t) || t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}

func decodeData(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

// AddNumbers adds data.firstNumber and data.secondNumber as integers.
func (h *CallableHandler) AddNumbers(ctx context.Context, env event.Envelope) (AddNumbersResult, error) {
	req, err := event.Decode[sharedtypes.CallableRequest](env)
	if err != nil {
		return AddNumbersResult{}, err
	}
	var data map[string]any
	if err := decodeData(req.Data, &data); err != nil {
		return AddNumbersResult{}, fnerr.New(fnerr.InvalidArgument, AddNumbersArgsMsg)
	}
	first, ok1 := toInt(data["firstNumber"])
	second, ok2 := toInt(data["secondNumber"])
	if !ok1 || !ok2 {
		return AddNumbersResult{}, fnerr.New(fnerr.InvalidArgument, AddNumbersArgsMsg)
	}
	return AddNumbersResult{
		FirstNumber:     first,
		SecondNumber:    second,
		Operator:        "+",
		OperationResult: first + second,
	}, nil
}

func tokenString(tok map[string]any, key string) *string {
	if s, ok := tok[key].(string); ok && s != "" {
		return &s
	}
	return nil
}

// AddMessage sanitizes data.text and pushes it to /messages with its author.
func (h *CallableHandler) AddMessage(ctx context.Context, env event.Envelope) (AddMessageResult, error) {
	req, err := event.Decode[sharedtypes.CallableRequest](env)
	if err != nil {
		return AddMessageResult{}, err
	}
	var data struct {
		Text any `json:"text"`
	}
	if err := decodeData(req.Data, &data); err != nil {
		return AddMessageResult{}, fnerr.New(fnerr.InvalidArgument, AddMessageArgsMsg)
	}
	text, ok := data.Text.(string)
	if !ok || text == "" {
		return AddMessageResult{}, fnerr.New(fnerr.InvalidArgument, AddMessageArgsMsg)
	}
	if req.Auth == nil || req.Auth.UID == "" {
		return AddMessageResult{}, fnerr.New(fnerr.FailedPrecondition, AuthRequiredMsg)
	}

	author, err := json.Marshal(Author{
		UID:     req.Auth.UID,
		Name:    tokenString(req.Auth.Token, "name"),
		Picture: tokenString(req.Auth.Token, "picture"),
		Email:   tokenString(req.Auth.Token, "email"),
	})
	if err != nil {
		return AddMessageResult{}, err
	}
	sanitized := Sanitize(text)
	if _, err := h.Tree.Push(ctx, MessagesPath, map[string]string{
		"text":   sanitized,
		"author": string(author),
	}); err != nil {
		return AddMessageResult{}, &fnerr.HTTPSError{Code: fnerr.Unknown, Message: err.Error()}
	}
	h.Logger.Info("New Message written")
	return AddMessageResult{Text: sanitized}, nil
}
