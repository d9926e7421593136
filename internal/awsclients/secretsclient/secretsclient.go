package secretsclient

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/outofoffice3/aws-samples/hermes/internal/utils"
)

// SecretsClient defines an interface for interacting w/ secrets manager
type SecretsClient interface {
	GetRegion() string
	// GetSecretValue
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretsClientImpl struct {
	region string
	client *secretsmanager.Client
}

func NewSecretsClient(cfg aws.Config, region string) (SecretsClient, error) {
	if !utils.IsValidRegion(region) {
		return nil, errors.New("failed to create secrets manager client. invalid region")
	}
	cfg.Region = region
	return &SecretsClientImpl{
		region: region,
		client: secretsmanager.NewFromConfig(cfg),
	}, nil
}

func (s *SecretsClientImpl) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return s.client.GetSecretValue(ctx, params, optFns...)
}

func (s *SecretsClientImpl) GetRegion() string {
	return s.region
}
