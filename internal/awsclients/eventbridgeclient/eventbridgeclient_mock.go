package eventbridgeclient

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

// FakeEventBridgeClient records every entry put.
type FakeEventBridgeClient struct {
	Region string
	Err    error

	mu      sync.Mutex
	Entries []ebtypes.PutEventsRequestEntry
}

func (f *FakeEventBridgeClient) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Entries = append(f.Entries, params.Entries...)
	return &eventbridge.PutEventsOutput{FailedEntryCount: 0}, nil
}

func (f *FakeEventBridgeClient) GetRegion() string { return f.Region }
