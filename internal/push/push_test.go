package push_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/snsclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/push"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	raw, err := push.Message(push.Notification{Title: "t", Body: "b", ImageURL: "https://img"})
	require.NoError(t, err)

	var outer map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &outer))
	assert.Equal(t, "b", outer["default"])
	assert.JSONEq(t, `{"notification":{"title":"t","body":"b","image":"https://img"}}`, outer["GCM"])
	assert.Contains(t, outer["APNS"], `"title":"t"`)
}

func TestSend(t *testing.T) {
	fake := &snsclient.FakeSnsClient{}
	s, err := push.New(fake)
	require.NoError(t, err)

	id, err := s.Send(context.Background(), "arn:endpoint/1", push.Notification{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, "message-id", id)
	require.Len(t, fake.Published, 1)
	assert.Equal(t, "json", aws.ToString(fake.Published[0].MessageStructure))
	assert.Equal(t, "arn:endpoint/1", aws.ToString(fake.Published[0].TargetArn))
}

func TestIsStaleToken(t *testing.T) {
	assert.True(t, push.IsStaleToken(&snstypes.EndpointDisabledException{}))
	assert.True(t, push.IsStaleToken(&snstypes.NotFoundException{}))
	assert.True(t, push.IsStaleToken(fmt.Errorf("publish: %w", &snstypes.EndpointDisabledException{})))
	assert.False(t, push.IsStaleToken(&snstypes.InvalidParameterException{}))
	assert.False(t, push.IsStaleToken(&snstypes.ThrottledException{}))
	assert.False(t, push.IsStaleToken(errors.New("throttled")))
	assert.False(t, push.IsStaleToken(nil))
}

func TestNew_NilClient(t *testing.T) {
	_, err := push.New(nil)
	assert.EqualError(t, err, push.ClientNilErrMsg)
}
