// Package monitoring holds request handlers that exist to show their log
// lines at each severity.
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/outofoffice3/aws-samples/hermes/internal/docstore"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
)

const (
	Greeting     = "Hello from Firebase!"
	DefaultQuote = "Python has been an important part of Google since the beginning, and remains so as the system grows and evolves."

	QuotesCollection = "quotes"
)

type MonitoringHandler struct {
	// Documents holds the quote of the month. Without it the quote endpoint
	// is not registered.
	Documents docstore.Documents
	Now       func() time.Time
	Logger    logger.Logger
}

type MonitoringHandlerConfig struct {
	Documents docstore.Documents
	Now       func() time.Time
	Logger    logger.Logger
}

func NewMonitoringHandler(config MonitoringHandlerConfig) (*MonitoringHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &MonitoringHandler{Documents: config.Documents, Now: config.Now, Logger: config.Logger}, nil
}

func (h *MonitoringHandler) Register(r *registry.Registry) error {
	regs := []registry.Registration{{
		Kind:    event.HelloWorldRequest,
		Name:    "hello_world",
		Style:   registry.StyleRequest,
		Handler: registry.Request("hello_world", h.HandleHelloWorld, h.Logger),
	}}
	if h.Documents != nil {
		regs = append(regs, registry.Registration{
			Kind:    event.QuoteRequest,
			Name:    "get_inspirational_quote",
			Style:   registry.StyleRequest,
			Handler: registry.Request("get_inspirational_quote", h.HandleQuote, h.Logger),
		})
	}
	for _, reg := range regs {
		if err := r.Register(reg); err != nil {
			return err
		}
	}
	return nil
}

func greet() sharedtypes.HTTPResponse {
	return sharedtypes.HTTPResponse{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:    Greeting,
	}
}

// HandleHelloWorld logs one line and greets.
func (h *MonitoringHandler) HandleHelloWorld(ctx context.Context, req sharedtypes.HTTPRequest) (sharedtypes.HTTPResponse, error) {
	h.Logger.Info("Hello logs!")
	return greet(), nil
}

// QuoteCollection is the collection holding one quote document per month of year.
func QuoteCollection(year int) string {
	return fmt.Sprintf("%s/%d/months", QuotesCollection, year)
}

// Quote returns the quote of the month for day, or DefaultQuote when there
// is none or the store cannot be read.
func (h *MonitoringHandler) Quote(ctx context.Context, day time.Time) string {
	collection, id := QuoteCollection(day.Year()), fmt.Sprint(int(day.Month()))
	doc, ok, err := h.Documents.Get(ctx, collection, id)
	if err != nil {
		h.Logger.Error("Unable to read quote from the document store, sending default instead: %v", err)
		return DefaultQuote
	}
	h.Logger.Debug("Monthly quote fetch result docRef=%s/%s exists=%t", collection, id, ok)
	text, isText := doc["text"].(string)
	if !ok || !isText {
		h.Logger.Warn("Quote not found for month, sending default instead doc_reference=%s/%s date_requested=%s",
			collection, id, day.Format(time.DateOnly))
		return DefaultQuote
	}
	return text
}

// HandleQuote logs the quote of the month and greets.
func (h *MonitoringHandler) HandleQuote(ctx context.Context, req sharedtypes.HTTPRequest) (sharedtypes.HTTPResponse, error) {
	quote := h.Quote(ctx, h.Now())
	h.Logger.Info("Sending a quote! quote=%q", quote)
	return greet(), nil
}
