package eventbridgeclient

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/outofoffice3/aws-samples/hermes/internal/utils"
)

// EventBridgeClient defines an interface for interacting w/ the eventbridge client
type EventBridgeClient interface {
	GetRegion() string
	// PutEvents
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

type EventBridgeClientImpl struct {
	region string
	client *eventbridge.Client
}

func NewEventBridgeClient(cfg aws.Config, region string) (EventBridgeClient, error) {
	if !utils.IsValidRegion(region) {
		return nil, errors.New("failed to create eventbridge client. invalid region")
	}
	cfg.Region = region
	return &EventBridgeClientImpl{
		region: region,
		client: eventbridge.NewFromConfig(cfg),
	}, nil
}

func (e *EventBridgeClientImpl) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	return e.client.PutEvents(ctx, params, optFns...)
}

func (e *EventBridgeClientImpl) GetRegion() string {
	return e.region
}
