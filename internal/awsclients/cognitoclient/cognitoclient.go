package cognitoclient

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/outofoffice3/aws-samples/hermes/internal/utils"
)

// CognitoClient defines an interface for interacting w/ the cognito user pool api
type CognitoClient interface {
	GetRegion() string
	// ListUsers
	ListUsers(ctx context.Context, params *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error)
	// AdminGetUser
	AdminGetUser(ctx context.Context, params *cip.AdminGetUserInput, optFns ...func(*cip.Options)) (*cip.AdminGetUserOutput, error)
	// AdminDeleteUser
	AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error)
	// AdminUpdateUserAttributes
	AdminUpdateUserAttributes(ctx context.Context, params *cip.AdminUpdateUserAttributesInput, optFns ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error)
}

type CognitoClientImpl struct {
	region string
	client *cip.Client
}

func NewCognitoClient(cfg aws.Config, region string) (CognitoClient, error) {
	if !utils.IsValidRegion(region) {
		return nil, errors.New("failed to create cognito client. invalid region")
	}
	cfg.Region = region
	return &CognitoClientImpl{
		region: region,
		client: cip.NewFromConfig(cfg),
	}, nil
}

func (c *CognitoClientImpl) ListUsers(ctx context.Context, params *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error) {
	return c.client.ListUsers(ctx, params, optFns...)
}

func (c *CognitoClientImpl) AdminGetUser(ctx context.Context, params *cip.AdminGetUserInput, optFns ...func(*cip.Options)) (*cip.AdminGetUserOutput, error) {
	return c.client.AdminGetUser(ctx, params, optFns...)
}

func (c *CognitoClientImpl) AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error) {
	return c.client.AdminDeleteUser(ctx, params, optFns...)
}

func (c *CognitoClientImpl) AdminUpdateUserAttributes(ctx context.Context, params *cip.AdminUpdateUserAttributesInput, optFns ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error) {
	return c.client.AdminUpdateUserAttributes(ctx, params, optFns...)
}

func (c *CognitoClientImpl) GetRegion() string {
	return c.region
}
