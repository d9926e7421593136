package snsclient

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/outofoffice3/aws-samples/hermes/internal/utils"
)

// SnsClient defines an interface for interacting w/ the sns client
type SnsClient interface {
	GetRegion() string
	// Publish
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SnsClientImpl struct {
	region string
	client *sns.Client
}

func NewSnsClient(cfg aws.Config, region string) (SnsClient, error) {
	if !utils.IsValidRegion(region) {
		return nil, errors.New("failed to create sns client. invalid region")
	}
	cfg.Region = region
	return &SnsClientImpl{
		region: region,
		client: sns.NewFromConfig(cfg),
	}, nil
}

func (s *SnsClientImpl) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return s.client.Publish(ctx, params, optFns...)
}

func (s *SnsClientImpl) GetRegion() string {
	return s.region
}
