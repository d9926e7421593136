package snsclient

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// FakeSnsClient records published messages. Targets listed in Errors fail
// with the mapped error.
type FakeSnsClient struct {
	Region string
	Errors map[string]error

	mu        sync.Mutex
	Published []*sns.PublishInput
}

func (f *FakeSnsClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Published = append(f.Published, params)
	if err, ok := f.Errors[aws.ToString(params.TargetArn)]; ok {
		return nil, err
	}
	return &sns.PublishOutput{MessageId: aws.String("message-id")}, nil
}

// Count returns the number of Publish calls.
func (f *FakeSnsClient) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Published)
}

func (f *FakeSnsClient) GetRegion() string { return f.Region }
