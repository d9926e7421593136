package sqsclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// FakeSqsClient records every sent message.
type FakeSqsClient struct {
	Region string
	// ErrorOnCall simulates an error on the specified call index (1-based). Zero disables it.
	ErrorOnCall int

	mu   sync.Mutex
	Sent []*sqs.SendMessageInput
}

func (f *FakeSqsClient) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrorOnCall > 0 && len(f.Sent)+1 == f.ErrorOnCall {
		f.Sent = append(f.Sent, params)
		return nil, fmt.Errorf("send message error on call %d", f.ErrorOnCall)
	}
	f.Sent = append(f.Sent, params)
	return &sqs.SendMessageOutput{MessageId: aws.String(fmt.Sprintf("msg-%d", len(f.Sent)))}, nil
}

// Count returns the number of SendMessage calls.
func (f *FakeSqsClient) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

func (f *FakeSqsClient) GetRegion() string { return f.Region }
