// Package timeserver answers HTTP requests with the current time rendered
// through a strftime pattern.
package timeserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
)

const (
	ForbiddenMsg     = "Forbidden!"
	FormatMissingMsg = "Format string missing"

	allowedMethods = "GET, POST"
)

type TimeHandler struct {
	Now    func() time.Time
	Logger logger.Logger
}

type TimeHandlerConfig struct {
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger logger.Logger
}

func NewTimeHandler(config TimeHandlerConfig) (*TimeHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &TimeHandler{Now: config.Now, Logger: config.Logger}, nil
}

func (h *TimeHandler) Register(r *registry.Registry) error {
	return r.Register(registry.Registration{
		Kind:    event.DateRequest,
		Name:    "date",
		Style:   registry.StyleRequest,
		Handler: registry.Request("date", h.HandleDate, h.Logger),
	})
}

func text(status int, body string) sharedtypes.HTTPResponse {
	return sharedtypes.HTTPResponse{
		Status: status,
		Headers: map[string]string{
			"Content-Type":                 "text/plain; charset=utf-8",
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": allowedMethods,
		},
		Body: body,
	}
}

// Format reads the pattern from the "format" query parameter, then from the
// "format" field of a JSON body.
func Format(req sharedtypes.HTTPRequest) (string, bool) {
	if f, ok := req.Query["format"]; ok {
		return f, true
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return "", false
	}
	f, ok := body["format"].(string)
	return f, ok
}

// HandleDate renders the current time. PUT is refused.
func (h *TimeHandler) HandleDate(ctx context.Context, req sharedtypes.HTTPRequest) (sharedtypes.HTTPResponse, error) {
	switch req.Method {
	case http.MethodPut:
		return text(http.StatusForbidden, ForbiddenMsg), nil
	case http.MethodOptions:
		return text(http.StatusNoContent, ""), nil
	}
	pattern, ok := Format(req)
	if !ok {
		return text(http.StatusBadRequest, FormatMissingMsg), nil
	}
	formatted, err := strftime.Format(pattern, h.Now())
	if err != nil {
		h.Logger.Warn("bad date format %q: %v", pattern, err)
		return text(http.StatusBadRequest, err.Error()), nil
	}
	h.Logger.Info("Sending Formatted date: %s", formatted)
	return text(http.StatusOK, formatted), nil
}
