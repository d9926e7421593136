// Package host adapts Lambda invocations to registry dispatches. An
// invocation is either a ready envelope or, when the function is bound to a
// single kind, the raw event of the AWS source delivering that kind.
package host

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/bus"
	"github.com/outofoffice3/aws-samples/hermes/internal/callable"
	"github.com/outofoffice3/aws-samples/hermes/internal/docstore"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/uppercase"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/metrics"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
)

const (
	// error msgs
	RegistryNilErrMsg = "registry is nil"

	sourceSQS      = "aws:sqs"
	sourceS3       = "aws:s3"
	sourceSNS      = "aws:sns"
	sourceDynamoDB = "aws:dynamodb"

	scheduledSource = "aws.events"
)

// SQSFunc handles a whole SQS batch, reporting failed records itself.
type SQSFunc func(ctx context.Context, e events.SQSEvent) (events.SQSEventResponse, error)

// streamBinding names the collection a stream-delivered kind watches and
// the path parameter carrying the document id.
type streamBinding struct {
	collection string
	param      string
}

var streamBindings = map[event.Kind]streamBinding{
	event.MessageDocCreated: {collection: uppercase.MessagesCollection, param: "documentId"},
	event.MessageDocWritten: {collection: uppercase.MessagesCollection, param: "documentId"},
}

type Config struct {
	Registry *registry.Registry
	// Kind binds the function to one kind. Empty means every invocation is an envelope.
	Kind event.Kind
	// Verifier checks callable bearer tokens. Nil rejects every token.
	Verifier *callable.Verifier
	// SQS overrides per-record dispatch for kinds that consume whole batches.
	SQS map[event.Kind]SQSFunc
	// Metrics receives per-dispatch metrics, flushed at the end of each invocation.
	Metrics metrics.Emitter
	Logger  logger.Logger
}

// Host is the Lambda handler.
type Host struct {
	registry *registry.Registry
	kind     event.Kind
	verifier *callable.Verifier
	sqs      map[event.Kind]SQSFunc
	metrics  metrics.Emitter
	log      logger.Logger
}

func New(cfg Config) (*Host, error) {
	if cfg.Registry == nil {
		return nil, errors.New(RegistryNilErrMsg)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	return &Host{
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		kind:     cfg.Kind,
		verifier: cfg.Verifier,
		sqs:      cfg.SQS,
		log:      logger.OrDefault(cfg.Logger),
	}, nil
}

// shape is just enough of an event to tell the sources apart.
type shape struct {
	Records []struct {
		Source string `json:"eventSource"`
	} `json:"Records"`
	DetailType     *string          `json:"detail-type"`
	RequestContext *json.RawMessage `json:"requestContext"`
}

// Invoke is passed to lambda.Start.
func (h *Host) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	out, err := h.invoke(ctx, raw)
	if ferr := h.metrics.Flush(ctx); ferr != nil {
		h.log.Warn("flush metrics: %v", ferr)
	}
	return out, err
}

func (h *Host) invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	if h.kind == "" {
		var env event.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, &fnerr.InvalidPayload{Reason: fmt.Sprintf("cannot decode envelope: %v", err)}
		}
		return h.route(ctx, env)
	}

	var p shape
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &fnerr.InvalidPayload{Reason: fmt.Sprintf("cannot decode %s event: %v", h.kind, err)}
	}
	switch {
	case len(p.Records) > 0:
		switch p.Records[0].Source {
		case sourceSQS:
			return h.invokeSQS(ctx, raw)
		case sourceS3:
			return nil, h.invokeS3(ctx, raw)
		case sourceSNS:
			return nil, h.invokeSNS(ctx, raw)
		case sourceDynamoDB:
			return nil, h.invokeStream(ctx, raw)
		}
	case p.DetailType != nil:
		return h.invokeEventBridge(ctx, raw)
	case p.RequestContext != nil:
		return h.invokeURL(ctx, raw)
	}
	return h.route(ctx, event.Envelope{Kind: h.kind, Time: time.Now().UTC(), Payload: raw})
}

// route dispatches env and records its metrics. Failures that trigger and
// request handlers absorb still count as errors.
func (h *Host) route(ctx context.Context, env event.Envelope) (any, error) {
	start := time.Now()
	ctx, outcome := registry.WithOutcome(ctx)
	out, err := h.registry.Dispatch(ctx, env)
	failure := err
	if failure == nil {
		failure = outcome.Err()
	}
	h.record(env.Kind, start, failure)
	return out, err
}

func (h *Host) record(kind event.Kind, start time.Time, err error) {
	now := time.Now()
	dims := map[string]string{"Kind": string(kind)}
	failed := 0.0
	if err != nil {
		failed = 1
		h.metrics.Emit(metrics.Metric{
			Name:       metrics.ErrorsByCode,
			Value:      1,
			Unit:       cwTypes.StandardUnitCount,
			Timestamp:  now,
			Dimensions: map[string]string{"Kind": string(kind), "Code": string(fnerr.CodeFor(err))},
		})
	}
	h.metrics.Emit(metrics.Metric{Name: metrics.Invocations, Value: 1, Unit: cwTypes.StandardUnitCount, Timestamp: now, Dimensions: dims})
	h.metrics.Emit(metrics.Metric{Name: metrics.Errors, Value: failed, Unit: cwTypes.StandardUnitCount, Timestamp: now, Dimensions: dims})
	h.metrics.Emit(metrics.Metric{
		Name:       metrics.Duration,
		Value:      float64(now.Sub(start).Microseconds()) / 1000,
		Unit:       cwTypes.StandardUnitMilliseconds,
		Timestamp:  now,
		Dimensions: dims,
	})
}

func (h *Host) dispatch(ctx context.Context, id string, params map[string]string, v any) (any, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", h.kind, err)
	}
	return h.route(ctx, event.Envelope{
		Kind:    h.kind,
		ID:      id,
		Time:    time.Now().UTC(),
		Params:  params,
		Payload: payload,
	})
}

func (h *Host) invokeSQS(ctx context.Context, raw json.RawMessage) (events.SQSEventResponse, error) {
	var e events.SQSEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return events.SQSEventResponse{}, fmt.Errorf("decode sqs event: %w", err)
	}
	if fn, ok := h.sqs[h.kind]; ok {
		start := time.Now()
		resp, err := fn(ctx, e)
		h.record(h.kind, start, err)
		return resp, err
	}
	var resp events.SQSEventResponse
	for _, msg := range e.Records {
		_, err := h.route(ctx, event.Envelope{
			Kind:    h.kind,
			ID:      msg.MessageId,
			Time:    time.Now().UTC(),
			Payload: json.RawMessage(msg.Body),
		})
		if err != nil {
			h.log.Warn("record %s failed: %v", msg.MessageId, err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
		}
	}
	return resp, nil
}

func (h *Host) invokeS3(ctx context.Context, raw json.RawMessage) error {
	var e events.S3Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return fmt.Errorf("decode s3 event: %w", err)
	}
	var errs []error
	for _, rec := range e.Records {
		obj := sharedtypes.StorageObject{
			Bucket: rec.S3.Bucket.Name,
			Name:   rec.S3.Object.URLDecodedKey,
			Size:   rec.S3.Object.Size,
		}
		if _, err := h.dispatch(ctx, rec.S3.Object.Sequencer, nil, obj); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// snsAttributes flattens SNS message attributes to their string values.
func snsAttributes(in map[string]interface{}) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch a := v.(type) {
		case map[string]interface{}:
			if s, ok := a["Value"].(string); ok {
				out[k] = s
			}
		case string:
			out[k] = a
		}
	}
	return out
}

func (h *Host) invokeSNS(ctx context.Context, raw json.RawMessage) error {
	var e events.SNSEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return fmt.Errorf("decode sns event: %w", err)
	}
	var errs []error
	for _, rec := range e.Records {
		msg := sharedtypes.MessagePublished{
			Message: sharedtypes.PubSubMessage{
				MessageID:  rec.SNS.MessageID,
				Data:       base64.StdEncoding.EncodeToString([]byte(rec.SNS.Message)),
				Attributes: snsAttributes(rec.SNS.MessageAttributes),
			},
			Subscription: rec.EventSubscriptionArn,
		}
		if _, err := h.dispatch(ctx, rec.SNS.MessageID, nil, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Host) invokeStream(ctx context.Context, raw json.RawMessage) error {
	binding, ok := streamBindings[h.kind]
	if !ok {
		return fmt.Errorf("%s is not delivered by a table stream", h.kind)
	}
	var e events.DynamoDBEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return fmt.Errorf("decode stream event: %w", err)
	}
	var errs []error
	for _, rec := range e.Records {
		collection, id := docstore.StreamKey(rec.Change.Keys)
		if collection != binding.collection {
			continue
		}
		params := map[string]string{binding.param: id}
		before := docstore.FromStreamImage(rec.Change.OldImage)
		after := docstore.FromStreamImage(rec.Change.NewImage)

		var err error
		if h.kind == event.MessageDocCreated {
			if rec.EventName != string(events.DynamoDBOperationTypeInsert) {
				continue
			}
			_, err = h.dispatch(ctx, rec.EventID, params, after)
		} else {
			_, err = h.dispatch(ctx, rec.EventID, params, map[string]any{"before": before, "after": after})
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Host) invokeEventBridge(ctx context.Context, raw json.RawMessage) (any, error) {
	var e events.CloudWatchEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode eventbridge event: %w", err)
	}
	if e.Source == scheduledSource {
		tick := sharedtypes.ScheduledTick{ScheduleTime: e.Time.UTC().Format(time.RFC3339)}
		if len(e.Resources) > 0 {
			arn := e.Resources[0]
			tick.JobName = arn[strings.LastIndex(arn, "/")+1:]
		}
		return h.dispatch(ctx, e.ID, nil, tick)
	}
	ce, err := bus.FromCloudWatch(e)
	if err != nil {
		return nil, err
	}
	return h.dispatch(ctx, e.ID, nil, ce)
}

// Request converts a function URL request.
func Request(e events.LambdaFunctionURLRequest) (sharedtypes.HTTPRequest, error) {
	body := e.Body
	if e.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(e.Body)
		if err != nil {
			return sharedtypes.HTTPRequest{}, fnerr.WrongType("body", "base64")
		}
		body = string(b)
	}
	query := e.QueryStringParameters
	if query == nil && e.RawQueryString != "" {
		values, err := url.ParseQuery(e.RawQueryString)
		if err == nil {
			query = make(map[string]string, len(values))
			for k := range values {
				query[k] = values.Get(k)
			}
		}
	}
	return sharedtypes.HTTPRequest{
		Method:  e.RequestContext.HTTP.Method,
		Path:    e.RawPath,
		Query:   query,
		Headers: e.Headers,
		Body:    body,
	}, nil
}

// Respond converts a handler response.
func Respond(resp sharedtypes.HTTPResponse) events.LambdaFunctionURLResponse {
	return events.LambdaFunctionURLResponse{
		StatusCode: resp.Status,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}

// CallableResponse encodes a callable result or failure the way callable
// clients expect it.
func CallableResponse(result any, err error) events.LambdaFunctionURLResponse {
	headers := map[string]string{"Content-Type": "application/json"}
	if err != nil {
		he := fnerr.ToHTTPS(err)
		e := map[string]any{"status": string(he.Code), "message": he.Message}
		if he.Details != nil {
			e["details"] = he.Details
		}
		body, _ := json.Marshal(map[string]any{"error": e})
		return events.LambdaFunctionURLResponse{StatusCode: he.Code.HTTPStatus(), Headers: headers, Body: string(body)}
	}
	body, mErr := json.Marshal(map[string]any{"result": result})
	if mErr != nil {
		return CallableResponse(nil, mErr)
	}
	return events.LambdaFunctionURLResponse{StatusCode: http.StatusOK, Headers: headers, Body: string(body)}
}

func (h *Host) invokeURL(ctx context.Context, raw json.RawMessage) (events.LambdaFunctionURLResponse, error) {
	var e events.LambdaFunctionURLRequest
	if err := json.Unmarshal(raw, &e); err != nil {
		return events.LambdaFunctionURLResponse{}, fmt.Errorf("decode function url request: %w", err)
	}
	req, err := Request(e)
	if err != nil {
		return CallableResponse(nil, err), nil
	}
	reg, ok := h.registry.Lookup(h.kind)
	if !ok {
		return events.LambdaFunctionURLResponse{}, fmt.Errorf("%s: %q", registry.UnknownKindErrMsg, h.kind)
	}

	switch reg.Style {
	case registry.StyleCallable:
		if req.Method != http.MethodPost {
			return CallableResponse(nil, fnerr.New(fnerr.InvalidArgument, callable.BadRequestMsg)), nil
		}
		creq, err := callable.Bind(h.verifier, req)
		if err != nil {
			return CallableResponse(nil, err), nil
		}
		out, err := h.dispatch(ctx, e.RequestContext.RequestID, nil, creq)
		return CallableResponse(out, err), nil
	case registry.StyleRequest:
		out, err := h.dispatch(ctx, e.RequestContext.RequestID, nil, req)
		if err != nil {
			return events.LambdaFunctionURLResponse{}, err
		}
		resp, ok := out.(sharedtypes.HTTPResponse)
		if !ok {
			return events.LambdaFunctionURLResponse{}, fmt.Errorf("%s returned %T", h.kind, out)
		}
		return Respond(resp), nil
	default:
		if _, err := h.dispatch(ctx, e.RequestContext.RequestID, nil, req); err != nil {
			return events.LambdaFunctionURLResponse{}, err
		}
		return events.LambdaFunctionURLResponse{StatusCode: http.StatusNoContent}, nil
	}
}
