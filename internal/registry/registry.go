// Package registry binds trigger tags to handler functions at process start
// and routes decoded envelopes to them.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
)

const (
	// error msgs
	HandlerNilErrMsg     = "handler is nil"
	KindNotSetErrMsg     = "kind is not set"
	DuplicateKindErrMsg  = "kind already registered"
	UnknownKindErrMsg    = "no handler registered for kind"
	RegistryClosedErrMsg = "registry is sealed"
)

// HandlerFunc handles one envelope. Trigger handlers return a nil result.
type HandlerFunc func(ctx context.Context, env event.Envelope) (any, error)

// TriggerFunc is a fire-and-forget handler.
type TriggerFunc func(ctx context.Context, env event.Envelope) error

// Style says how a handler's failures reach its caller.
type Style int

const (
	// StyleTrigger handlers never surface a failure; it is logged and dropped.
	StyleTrigger Style = iota
	// StyleCallable handlers answer with a result or a typed HTTPSError.
	StyleCallable
	// StyleRequest handlers answer with an HTTP response.
	StyleRequest
)

func (s Style) String() string {
	switch s {
	case StyleCallable:
		return "callable"
	case StyleRequest:
		return "request"
	default:
		return "trigger"
	}
}

// RetryPolicy is declared on a registration and honoured by the platform's
// dispatch layer, never in process.
type RetryPolicy struct {
	MaxAttempts             int
	MinBackoff              time.Duration
	MaxConcurrentDispatches int
}

// Registration is one bound handler.
type Registration struct {
	Kind    event.Kind
	Name    string
	Style   Style
	Handler HandlerFunc
	Retry   *RetryPolicy
}

// Registry maps kinds to registrations. It is written during cold start and
// read-only afterwards.
type Registry struct {
	mu     sync.RWMutex
	routes map[event.Kind]Registration
	sealed bool
	log    logger.Logger
}

// New returns an empty registry.
func New(log logger.Logger) *Registry {
	return &Registry{
		routes: make(map[event.Kind]Registration),
		log:    logger.OrDefault(log),
	}
}

// Register binds reg.Kind to reg.Handler.
func (r *Registry) Register(reg Registration) error {
	if reg.Kind == "" {
		return errors.New(KindNotSetErrMsg)
	}
	if reg.Handler == nil {
		return fmt.Errorf("%s: %s", reg.Kind, HandlerNilErrMsg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return errors.New(RegistryClosedErrMsg)
	}
	if _, ok := r.routes[reg.Kind]; ok {
		return fmt.Errorf("%s: %s", reg.Kind, DuplicateKindErrMsg)
	}
	if reg.Name == "" {
		reg.Name = string(reg.Kind)
	}
	r.routes[reg.Kind] = reg
	r.log.Debug("registry: bound %s to %s (%s)", reg.Kind, reg.Name, reg.Style)
	return nil
}

// Seal stops further registrations.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup returns the registration for kind.
func (r *Registry) Lookup(kind event.Kind) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.routes[kind]
	return reg, ok
}

// Kinds lists every registered kind in sorted order.
func (r *Registry) Kinds() []event.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]event.Kind, 0, len(r.routes))
	for k := range r.routes {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch routes env to its handler.
func (r *Registry) Dispatch(ctx context.Context, env event.Envelope) (any, error) {
	reg, ok := r.Lookup(env.Kind)
	if !ok {
		return nil, fmt.Errorf("%s: %q", UnknownKindErrMsg, env.Kind)
	}
	return reg.Handler(ctx, env)
}

// Outcome holds the failure a trigger or request handler absorbed instead of
// returning it.
type Outcome struct {
	mu  sync.Mutex
	err error
}

type outcomeKey struct{}

// WithOutcome returns a context that makes handlers report absorbed failures
// to the returned Outcome.
func WithOutcome(ctx context.Context) (context.Context, *Outcome) {
	o := &Outcome{}
	return context.WithValue(ctx, outcomeKey{}, o), o
}

// Err is the first absorbed failure, or nil.
func (o *Outcome) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func absorb(ctx context.Context, err error) {
	o, ok := ctx.Value(outcomeKey{}).(*Outcome)
	if !ok {
		return
	}
	o.mu.Lock()
	if o.err == nil {
		o.err = err
	}
	o.mu.Unlock()
}

// Trigger adapts fn so that any failure becomes exactly one Error log and a
// nil error. name is used in the log line.
func Trigger(name string, fn TriggerFunc, log logger.Logger) HandlerFunc {
	log = logger.OrDefault(log)
	return func(ctx context.Context, env event.Envelope) (any, error) {
		if err := fn(ctx, env); err != nil {
			log.Error("%s: %v", name, err)
			absorb(ctx, err)
		}
		return nil, nil
	}
}

// Callable adapts fn so that any failure is returned as a *fnerr.HTTPSError
// carrying a fixed code and message.
func Callable[T any](fn func(ctx context.Context, env event.Envelope) (T, error)) HandlerFunc {
	return func(ctx context.Context, env event.Envelope) (any, error) {
		out, err := fn(ctx, env)
		if err != nil {
			return nil, fnerr.ToHTTPS(err)
		}
		return out, nil
	}
}

// RequestFunc serves a plain HTTP request.
type RequestFunc func(ctx context.Context, req sharedtypes.HTTPRequest) (sharedtypes.HTTPResponse, error)

// Request adapts fn for HTTP endpoints. The envelope payload is decoded as an
// HTTPRequest; a failure is logged once and answered with the status and
// message of its callable code.
func Request(name string, fn RequestFunc, log logger.Logger) HandlerFunc {
	log = logger.OrDefault(log)
	return func(ctx context.Context, env event.Envelope) (any, error) {
		req, err := event.Decode[sharedtypes.HTTPRequest](env)
		if err == nil {
			var resp sharedtypes.HTTPResponse
			if resp, err = fn(ctx, req); err == nil {
				return resp, nil
			}
		}
		log.Error("%s: %v", name, err)
		absorb(ctx, err)
		he := fnerr.ToHTTPS(err)
		body, _ := json.Marshal(map[string]any{
			"error": map[string]string{"status": string(he.Code), "message": he.Message},
		})
		return sharedtypes.HTTPResponse{
			Status:  he.Code.HTTPStatus(),
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    string(body),
		}, nil
	}
}
