package sqsclient

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/outofoffice3/aws-samples/hermes/internal/utils"
)

// SqsClient defines an interface for interacting w/ the sqs client
type SqsClient interface {
	GetRegion() string
	// SendMessage
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SqsClientImpl struct {
	region string
	client *sqs.Client
}

func NewSqsClient(cfg aws.Config, region string) (SqsClient, error) {
	if !utils.IsValidRegion(region) {
		return nil, errors.New("failed to create sqs client. invalid region")
	}
	cfg.Region = region
	return &SqsClientImpl{
		region: region,
		client: sqs.NewFromConfig(cfg),
	}, nil
}

func (s *SqsClientImpl) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return s.client.SendMessage(ctx, params, optFns...)
}

func (s *SqsClientImpl) GetRegion() string {
	return s.region
}
