package dynamoclient

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/outofoffice3/aws-samples/hermes/internal/utils"
)

// DynamoClient defines an interface for interacting w/ the dynamodb client
type DynamoClient interface {
	GetRegion() string
	// GetItem
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	// PutItem
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	// UpdateItem
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	// DeleteItem
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type DynamoClientImpl struct {
	region string
	client *dynamodb.Client
}

func NewDynamoClient(cfg aws.Config, region string) (DynamoClient, error) {
	if !utils.IsValidRegion(region) {
		return nil, errors.New("failed to create dynamodb client. invalid region")
	}
	cfg.Region = region
	return &DynamoClientImpl{
		region: region,
		client: dynamodb.NewFromConfig(cfg),
	}, nil
}

func (d *DynamoClientImpl) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return d.client.GetItem(ctx, params, optFns...)
}

func (d *DynamoClientImpl) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return d.client.PutItem(ctx, params, optFns...)
}

func (d *DynamoClientImpl) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return d.client.UpdateItem(ctx, params, optFns...)
}

func (d *DynamoClientImpl) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return d.client.DeleteItem(ctx, params, optFns...)
}

func (d *DynamoClientImpl) GetRegion() string {
	return d.region
}
