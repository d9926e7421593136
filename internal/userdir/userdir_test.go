package userdir_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/cognitoclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/userdir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attr(name, value string) ciptypes.AttributeType {
	return ciptypes.AttributeType{Name: aws.String(name), Value: aws.String(value)}
}

func TestNew_Validation(t *testing.T) {
	_, err := userdir.New(userdir.Config{UserPoolID: "p"})
	assert.EqualError(t, err, userdir.ClientNilErrMsg)
	_, err = userdir.New(userdir.Config{Client: &cognitoclient.FakeCognitoClient{}})
	assert.EqualError(t, err, userdir.PoolNotSetErrMsg)
}

func TestGet(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &cognitoclient.FakeCognitoClient{
		Users: map[string]*cip.AdminGetUserOutput{
			"u1": {
				Username:       aws.String("u1"),
				UserCreateDate: &created,
				UserAttributes: []ciptypes.AttributeType{
					attr("email", "ada@example.com"),
					attr("name", "Ada"),
					attr("picture", "https://img.example/ada.png"),
					attr(userdir.LastSignInAttr, "2024-02-01T00:00:00Z"),
				},
			},
		},
	}
	dir, err := userdir.New(userdir.Config{Client: fake, UserPoolID: "pool"})
	require.NoError(t, err)

	u, err := dir.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.DisplayName)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "https://img.example/ada.png", u.PhotoURL)
	assert.Equal(t, created, u.Created)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), u.LastSignIn)
	assert.True(t, u.LastRefresh.IsZero())

	_, err = dir.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, userdir.ErrUserNotFound)
}

func TestListAndDelete(t *testing.T) {
	fake := &cognitoclient.FakeCognitoClient{
		Pages: []*cip.ListUsersOutput{
			{Users: []ciptypes.UserType{{Username: aws.String("a")}, {Username: aws.String("b")}}, PaginationToken: aws.String("1")},
			{Users: []ciptypes.UserType{{Username: aws.String("c")}}},
		},
	}
	dir, err := userdir.New(userdir.Config{Client: fake, UserPoolID: "pool"})
	require.NoError(t, err)

	p1, err := dir.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, p1.Users, 2)
	assert.Equal(t, "1", p1.NextToken)

	p2, err := dir.List(context.Background(), p1.NextToken)
	require.NoError(t, err)
	assert.Len(t, p2.Users, 1)
	assert.Equal(t, "", p2.NextToken)

	res, err := dir.Delete(context.Background(), []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, []string{"a", "c"}, fake.Deleted)

	fake.DeleteErr = errors.New("boom")
	res, err = dir.Delete(context.Background(), []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.SuccessCount)
	assert.Len(t, res.Failures, 1)
}

func TestGet_ActivityAttributes(t *testing.T) {
	created := time.Now().Add(-60 * 24 * time.Hour).UTC()
	user := func(value string) *cip.AdminGetUserOutput {
		return &cip.AdminGetUserOutput{
			Username:       aws.String("u1"),
			UserCreateDate: &created,
			UserAttributes: []ciptypes.AttributeType{attr(userdir.LastSignInAttr, value)},
		}
	}
	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339", value: "2024-05-31T23:00:00Z", want: time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC)},
		{name: "epoch millis", value: "1717196400000", want: time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC)},
		{name: "empty", value: ""},
		{name: "space separated", value: "2024-05-31 23:00:00", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &cognitoclient.FakeCognitoClient{Users: map[string]*cip.AdminGetUserOutput{"u1": user(tt.value)}}
			dir, err := userdir.New(userdir.Config{Client: fake, UserPoolID: "pool"})
			require.NoError(t, err)

			u, err := dir.Get(context.Background(), "u1")
			if tt.wantErr {
				assert.ErrorContains(t, err, userdir.LastSignInAttr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(u.LastSignIn))
		})
	}
}

func TestList_InvalidActivityIsReported(t *testing.T) {
	fake := &cognitoclient.FakeCognitoClient{
		Pages: []*cip.ListUsersOutput{{Users: []ciptypes.UserType{
			{Username: aws.String("ok")},
			{Username: aws.String("bad"), Attributes: []ciptypes.AttributeType{attr(userdir.LastRefreshAttr, "yesterday")}},
		}}},
	}
	dir, err := userdir.New(userdir.Config{Client: fake, UserPoolID: "pool"})
	require.NoError(t, err)

	page, err := dir.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "ok", page.Users[0].UID)
	assert.Contains(t, page.Invalid, "bad")
}

func TestRecordSignIn_RoundTrip(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := &cognitoclient.FakeCognitoClient{Users: map[string]*cip.AdminGetUserOutput{
		"u1": {Username: aws.String("u1"), UserCreateDate: &created},
	}}
	dir, err := userdir.New(userdir.Config{Client: fake, UserPoolID: "pool"})
	require.NoError(t, err)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, dir.RecordSignIn(context.Background(), "u1", at))

	u, err := dir.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, at, u.LastSignIn)

	fake.UpdateErr = errors.New("throttled")
	assert.ErrorContains(t, dir.RecordSignIn(context.Background(), "u1", at), "throttled")
}
