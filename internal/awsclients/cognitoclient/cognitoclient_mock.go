package cognitoclient

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// FakeCognitoClient serves ListUsers from pre-built pages and AdminGetUser
// from a username map.
type FakeCognitoClient struct {
	Region string
	// Pages returned by ListUsers in order; pagination tokens are the page index.
	Pages []*cip.ListUsersOutput
	Users map[string]*cip.AdminGetUserOutput
	// DeleteErr, when set, fails every AdminDeleteUser call.
	DeleteErr error
	// UpdateErr, when set, fails every AdminUpdateUserAttributes call.
	UpdateErr error

	mu        sync.Mutex
	ListCalls int
	Deleted   []string
	Updated   map[string][]ciptypes.AttributeType
}

func (f *FakeCognitoClient) ListUsers(ctx context.Context, params *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.ListCalls
	f.ListCalls++
	if idx >= len(f.Pages) {
		return &cip.ListUsersOutput{}, nil
	}
	return f.Pages[idx], nil
}

func (f *FakeCognitoClient) AdminGetUser(ctx context.Context, params *cip.AdminGetUserInput, optFns ...func(*cip.Options)) (*cip.AdminGetUserOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[aws.ToString(params.Username)]
	if !ok {
		return nil, &ciptypes.UserNotFoundException{Message: aws.String("user not found")}
	}
	return u, nil
}

func (f *FakeCognitoClient) AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return nil, f.DeleteErr
	}
	if params.Username == nil {
		return nil, errors.New("username required")
	}
	f.Deleted = append(f.Deleted, aws.ToString(params.Username))
	return &cip.AdminDeleteUserOutput{}, nil
}

// AdminUpdateUserAttributes records the update and applies it to a user in Users.
func (f *FakeCognitoClient) AdminUpdateUserAttributes(ctx context.Context, params *cip.AdminUpdateUserAttributesInput, optFns ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	name := aws.ToString(params.Username)
	if f.Updated == nil {
		f.Updated = map[string][]ciptypes.AttributeType{}
	}
	f.Updated[name] = append(f.Updated[name], params.UserAttributes...)
	if u, ok := f.Users[name]; ok {
		for _, a := range params.UserAttributes {
			replaced := false
			for i := range u.UserAttributes {
				if aws.ToString(u.UserAttributes[i].Name) == aws.ToString(a.Name) {
					u.UserAttributes[i].Value = a.Value
					replaced = true
				}
			}
			if !replaced {
				u.UserAttributes = append(u.UserAttributes, a)
			}
		}
	}
	return &cip.AdminUpdateUserAttributesOutput{}, nil
}

func (f *FakeCognitoClient) GetRegion() string { return f.Region }
