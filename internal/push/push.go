// Package push sends notifications to device tokens registered as SNS
// platform endpoints.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/snsclient"
)

const (
	// error msgs
	ClientNilErrMsg = "sns client is nil"
)

// Notification is the user-visible part of a push message.
type Notification struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	ImageURL string `json:"image,omitempty"`
}

// Result is the outcome of sending to one token.
type Result struct {
	Token     string
	MessageID string
	Err       error
}

// Sender is the push surface handlers depend on.
type Sender interface {
	Send(ctx context.Context, token string, n Notification) (string, error)
}

// SNS implements Sender. Each token is an endpoint ARN.
type SNS struct {
	client snsclient.SnsClient
}

func New(client snsclient.SnsClient) (*SNS, error) {
	if client == nil {
		return nil, errors.New(ClientNilErrMsg)
	}
	return &SNS{client: client}, nil
}

// Message renders n as an SNS per-protocol JSON message.
func Message(n Notification) (string, error) {
	gcm, err := json.Marshal(map[string]any{"notification": n})
	if err != nil {
		return "", err
	}
	apns, err := json.Marshal(map[string]any{
		"aps": map[string]any{
			"alert":           map[string]string{"title": n.Title, "body": n.Body},
			"mutable-content": 1,
		},
		"image": n.ImageURL,
	})
	if err != nil {
		return "", err
	}
	msg, err := json.Marshal(map[string]string{
		"default": n.Body,
		"GCM":     string(gcm),
		"APNS":    string(apns),
	})
	if err != nil {
		return "", err
	}
	return string(msg), nil
}

// Send publishes n to one token.
func (s *SNS) Send(ctx context.Context, token string, n Notification) (string, error) {
	msg, err := Message(n)
	if err != nil {
		return "", fmt.Errorf("render notification: %w", err)
	}
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(token),
		Message:          aws.String(msg),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

// IsStaleToken reports whether err means the token is no longer registered
// and should be removed. Malformed requests and throttling are not stale.
func IsStaleToken(err error) bool {
	var disabled *snstypes.EndpointDisabledException
	var notFound *snstypes.NotFoundException
	return errors.As(err, &disabled) || errors.As(err, &notFound)
}
