package secretsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// FakeSecretsClient resolves secret ids from a map.
type FakeSecretsClient struct {
	Region  string
	Secrets map[string]string
	Calls   int
}

func (f *FakeSecretsClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.Calls++
	v, ok := f.Secrets[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &smtypes.ResourceNotFoundException{Message: aws.String("secret not found")}
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         params.SecretId,
		SecretString: aws.String(v),
	}, nil
}

func (f *FakeSecretsClient) GetRegion() string { return f.Region }
