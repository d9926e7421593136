// Package userdir reads and deletes users in a Cognito user pool.
package userdir

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/cognitoclient"
)

const (
	// error msgs
	ClientNilErrMsg   = "cognito client is nil"
	PoolNotSetErrMsg  = "user pool id is not set"
	UserNotFoundError = "user not found"

	// Attributes maintained by the sign-in flow.
	LastSignInAttr  = "custom:last_sign_in"
	LastRefreshAttr = "custom:last_refresh"

	pageSize = 60
)

// ErrUserNotFound is returned by Get for an unknown uid.
var ErrUserNotFound = errors.New(UserNotFoundError)

// User is the subset of a directory record the handlers read.
type User struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	Created     time.Time
	LastSignIn  time.Time
	LastRefresh time.Time
}

// Page is one page of users and the token for the next, empty at the end.
// Users whose activity attributes cannot be read are left out of Users and
// reported in Invalid by uid.
type Page struct {
	Users     []User
	Invalid   map[string]error
	NextToken string
}

// Directory is the user directory surface handlers depend on.
type Directory interface {
	Get(ctx context.Context, uid string) (User, error)
	List(ctx context.Context, pageToken string) (Page, error)
	Delete(ctx context.Context, uids []string) (DeleteResult, error)
	// RecordSignIn stores at as the user's last sign-in time.
	RecordSignIn(ctx context.Context, uid string, at time.Time) error
}

// DeleteResult reports a bulk delete.
type DeleteResult struct {
	SuccessCount int
	Failures     map[string]error
}

type Config struct {
	Client     cognitoclient.CognitoClient
	UserPoolID string
}

// Cognito implements Directory.
type Cognito struct {
	client cognitoclient.CognitoClient
	pool   string
}

func New(cfg Config) (*Cognito, error) {
	if cfg.Client == nil {
		return nil, errors.New(ClientNilErrMsg)
	}
	if cfg.UserPoolID == "" {
		return nil, errors.New(PoolNotSetErrMsg)
	}
	return &Cognito{client: cfg.Client, pool: cfg.UserPoolID}, nil
}

func fromAttributes(uid string, attrs []ciptypes.AttributeType, created *time.Time) (User, error) {
	u := User{UID: uid, Created: aws.ToTime(created)}
	var err error
	for _, a := range attrs {
		v := aws.ToString(a.Value)
		switch name := aws.ToString(a.Name); name {
		case "email":
			u.Email = v
		case "name":
			u.DisplayName = v
		case "picture":
			u.PhotoURL = v
		case LastSignInAttr:
			u.LastSignIn, err = parseActivity(name, v)
		case LastRefreshAttr:
			u.LastRefresh, err = parseActivity(name, v)
		}
		if err != nil {
			return User{}, fmt.Errorf("user %s: %w", uid, err)
		}
	}
	return u, nil
}

// parseActivity reads an activity attribute written as RFC3339 or as epoch
// milliseconds. An empty value means no activity.
func parseActivity(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%s %q is neither RFC3339 nor epoch milliseconds", name, v)
}

// Get looks a user up by uid.
func (c *Cognito) Get(ctx context.Context, uid string) (User, error) {
	out, err := c.client.AdminGetUser(ctx, &cip.AdminGetUserInput{
		UserPoolId: aws.String(c.pool),
		Username:   aws.String(uid),
	})
	if err != nil {
		var nf *ciptypes.UserNotFoundException
		if errors.As(err, &nf) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user %s: %w", uid, err)
	}
	return fromAttributes(aws.ToString(out.Username), out.UserAttributes, out.UserCreateDate)
}

// List returns one page of users.
func (c *Cognito) List(ctx context.Context, pageToken string) (Page, error) {
	in := &cip.ListUsersInput{
		UserPoolId: aws.String(c.pool),
		Limit:      aws.Int32(pageSize),
	}
	if pageToken != "" {
		in.PaginationToken = aws.String(pageToken)
	}
	out, err := c.client.ListUsers(ctx, in)
	if err != nil {
		return Page{}, fmt.Errorf("list users: %w", err)
	}
	page := Page{NextToken: aws.ToString(out.PaginationToken)}
	for _, u := range out.Users {
		uid := aws.ToString(u.Username)
		user, err := fromAttributes(uid, u.Attributes, u.UserCreateDate)
		if err != nil {
			if page.Invalid == nil {
				page.Invalid = map[string]error{}
			}
			page.Invalid[uid] = err
			continue
		}
		page.Users = append(page.Users, user)
	}
	return page, nil
}

// RecordSignIn writes the last sign-in attribute in RFC3339.
func (c *Cognito) RecordSignIn(ctx context.Context, uid string, at time.Time) error {
	_, err := c.client.AdminUpdateUserAttributes(ctx, &cip.AdminUpdateUserAttributesInput{
		UserPoolId: aws.String(c.pool),
		Username:   aws.String(uid),
		UserAttributes: []ciptypes.AttributeType{{
			Name:  aws.String(LastSignInAttr),
			Value: aws.String(at.UTC().Format(time.RFC3339)),
		}},
	})
	if err != nil {
		return fmt.Errorf("record sign-in of %s: %w", uid, err)
	}
	return nil
}

// Delete removes every uid, collecting per-user failures instead of stopping.
func (c *Cognito) Delete(ctx context.Context, uids []string) (DeleteResult, error) {
	res := DeleteResult{Failures: map[string]error{}}
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := c.client.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
			UserPoolId: aws.String(c.pool),
			Username:   aws.String(uid),
		})
		if err != nil {
			res.Failures[uid] = err
			continue
		}
		res.SuccessCount++
	}
	return res, nil
}
