// Package bus publishes custom events to an EventBridge bus.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/eventbridgeclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
)

const (
	// error msgs
	ClientNilErrMsg   = "eventbridge client is nil"
	BusNotSetErrMsg   = "event bus name not set"
	TypeNotSetErrMsg  = "event type not set"
	DefaultBusName    = "default"
	DefaultSourceName = "hermes"
)

// Publisher sends one custom event.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Event is a custom event. Data is marshalled as the event detail.
type Event struct {
	Type    string
	Source  string
	Subject string
	Data    any
}

// detail is what rules and the customevents handlers receive.
type detail struct {
	Subject string `json:"subject,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBridge implements Publisher.
type EventBridge struct {
	client eventbridgeclient.EventBridgeClient
	name   string
}

// New returns a publisher for busName; empty means the account's default bus.
func New(client eventbridgeclient.EventBridgeClient, busName string) (*EventBridge, error) {
	if client == nil {
		return nil, errors.New(ClientNilErrMsg)
	}
	if busName == "" {
		busName = DefaultBusName
	}
	return &EventBridge{client: client, name: busName}, nil
}

func (b *EventBridge) Publish(ctx context.Context, e Event) error {
	if e.Type == "" {
		return errors.New(TypeNotSetErrMsg)
	}
	if e.Source == "" {
		e.Source = DefaultSourceName
	}
	body, err := json.Marshal(detail{Subject: e.Subject, Data: e.Data})
	if err != nil {
		return fmt.Errorf("marshal %s detail: %w", e.Type, err)
	}
	out, err := b.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{{
			EventBusName: aws.String(b.name),
			Source:       aws.String(e.Source),
			DetailType:   aws.String(e.Type),
			Detail:       aws.String(string(body)),
		}},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	if out.FailedEntryCount > 0 && len(out.Entries) > 0 {
		return fmt.Errorf("publish %s: %s: %s", e.Type,
			aws.ToString(out.Entries[0].ErrorCode), aws.ToString(out.Entries[0].ErrorMessage))
	}
	return nil
}

// FromCloudWatch turns an event delivered by an EventBridge rule back into
// the custom event that was published.
func FromCloudWatch(e events.CloudWatchEvent) (sharedtypes.CustomEvent, error) {
	var d struct {
		Subject string          `json:"subject"`
		Data    json.RawMessage `json:"data"`
	}
	if len(e.Detail) > 0 {
		if err := json.Unmarshal(e.Detail, &d); err != nil {
			return sharedtypes.CustomEvent{}, fnerr.WrongType("detail", "an object")
		}
	}
	return sharedtypes.CustomEvent{
		Type:    e.DetailType,
		Source:  e.Source,
		Subject: d.Subject,
		Data:    d.Data,
	}, nil
}
