package metrics_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/cwlclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/metrics"
)

func TestBuild_Document(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	rec, err := metrics.Build("Hermes", metrics.Metric{
		Name:       metrics.Invocations,
		Value:      1,
		Unit:       cwTypes.StandardUnitCount,
		Timestamp:  ts,
		Dimensions: map[string]string{"Kind": "alerts.crashlytics.newFatalIssue", "Function": "alerts"},
	})
	require.NoError(t, err)
	assert.Equal(t, ts.UnixMilli(), rec.Timestamp)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Payload, &doc))
	assert.Equal(t, float64(1), doc["Invocations"])
	assert.Equal(t, "alerts.crashlytics.newFatalIssue", doc["Kind"])

	awsDoc := doc["_aws"].(map[string]any)
	cw := awsDoc["CloudWatchMetrics"].([]any)[0].(map[string]any)
	assert.Equal(t, "Hermes", cw["Namespace"])
	assert.Equal(t, []any{[]any{"Function", "Kind"}}, cw["Dimensions"])
	assert.Equal(t, []any{map[string]any{"Name": "Invocations", "Unit": "Count"}}, cw["Metrics"])
}

func TestBuild_Defaults(t *testing.T) {
	rec, err := metrics.Build("Hermes", metrics.Metric{Name: "x"})
	require.NoError(t, err)
	assert.NotZero(t, rec.Timestamp)
	assert.Contains(t, string(rec.Payload), `"Unit":"None"`)

	_, err = metrics.Build("Hermes", metrics.Metric{})
	assert.Error(t, err)
}

func TestNewCloudWatchLogs_Validation(t *testing.T) {
	_, err := metrics.NewCloudWatchLogs(metrics.CloudWatchLogsConfig{LogGroup: "g"})
	assert.EqualError(t, err, metrics.ClientNilErrMsg)

	_, err = metrics.NewCloudWatchLogs(metrics.CloudWatchLogsConfig{Client: &cwlclient.FakeCloudWatchLogsClient{}})
	assert.EqualError(t, err, metrics.LogGroupEmptyErrMsg)
}

func TestCloudWatchLogs_FlushSortsAndClears(t *testing.T) {
	fake := &cwlclient.FakeCloudWatchLogsClient{Region: "us-east-1"}
	c, err := metrics.NewCloudWatchLogs(metrics.CloudWatchLogsConfig{
		Client: fake, LogGroup: "hermes-metrics", LogStream: "fn", Logger: &logger.NoopLogger{},
	})
	require.NoError(t, err)
	require.NoError(t, c.Ensure(context.Background()))

	now := time.Now()
	c.Emit(metrics.Metric{Name: metrics.Duration, Value: 12, Unit: cwTypes.StandardUnitMilliseconds, Timestamp: now})
	c.Emit(metrics.Metric{Name: metrics.Invocations, Value: 1, Timestamp: now.Add(-time.Second)})
	c.Emit(metrics.Metric{})
	assert.Equal(t, 2, c.Pending())

	require.NoError(t, c.Flush(context.Background()))
	require.Len(t, fake.Batches, 1)
	batch := fake.Batches[0]
	require.Len(t, batch, 2)
	assert.Less(t, aws.ToInt64(batch[0].Timestamp), aws.ToInt64(batch[1].Timestamp))
	assert.True(t, strings.Contains(aws.ToString(batch[0].Message), metrics.Invocations))
	assert.Zero(t, c.Pending())

	// nothing buffered, nothing sent
	require.NoError(t, c.Flush(context.Background()))
	assert.Len(t, fake.Batches, 1)
}

func TestCloudWatchLogs_FlushSplitsLargeBatches(t *testing.T) {
	fake := &cwlclient.FakeCloudWatchLogsClient{}
	c, err := metrics.NewCloudWatchLogs(metrics.CloudWatchLogsConfig{Client: fake, LogGroup: "g", LogStream: "s"})
	require.NoError(t, err)

	for i := 0; i < 10001; i++ {
		c.Emit(metrics.Metric{Name: metrics.Invocations, Value: 1})
	}
	require.NoError(t, c.Flush(context.Background()))
	require.Len(t, fake.Batches, 2)
	assert.Len(t, fake.Batches[0], 10000)
	assert.Len(t, fake.Batches[1], 1)
}

func TestCloudWatchLogs_FlushError(t *testing.T) {
	fake := &cwlclient.FakeCloudWatchLogsClient{PutErr: errors.New("throttled")}
	rec := &logger.Recorder{}
	c, err := metrics.NewCloudWatchLogs(metrics.CloudWatchLogsConfig{Client: fake, LogGroup: "g", LogStream: "s", Logger: rec})
	require.NoError(t, err)

	c.Emit(metrics.Metric{Name: metrics.Errors, Value: 1})
	err = c.Flush(context.Background())
	assert.ErrorContains(t, err, "throttled")
	assert.Equal(t, 1, rec.Count(logger.ERROR))
	assert.Zero(t, c.Pending())
}

func TestNoop(t *testing.T) {
	var e metrics.Emitter = metrics.Noop{}
	e.Emit(metrics.Metric{Name: "x"})
	assert.NoError(t, e.Flush(context.Background()))
}
