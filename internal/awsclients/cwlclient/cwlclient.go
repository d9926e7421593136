package cwlclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwlTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/utils"
)

// CloudWatchLogsClient is the slice of the cloudwatch logs API the metrics
// writer needs.
type CloudWatchLogsClient interface {
	GetRegion() string
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
}

// CloudWatchLogsClientImpl wraps *cloudwatchlogs.Client.
type CloudWatchLogsClientImpl struct {
	*cloudwatchlogs.Client
	region string
}

func NewCloudWatchLogsClient(cfg aws.Config, region string) (CloudWatchLogsClient, error) {
	if !utils.IsValidRegion(region) {
		return nil, errors.New("cloudwatchlogsclient creation failed. invalid region")
	}
	cfg.Region = region
	return &CloudWatchLogsClientImpl{
		Client: cloudwatchlogs.NewFromConfig(cfg),
		region: region,
	}, nil
}

func (c *CloudWatchLogsClientImpl) GetRegion() string {
	return c.region
}

// Destination is a log group and stream metrics are written to.
type Destination struct {
	Group  string
	Stream string
	// RetentionDays is applied when the group is created. Zero keeps logs forever.
	RetentionDays int32
}

// Ensure creates the destination's group and stream when missing. Losing a
// creation race to another cold start is not an error.
func (d Destination) Ensure(ctx context.Context, client CloudWatchLogsClient) error {
	found, err := groupExists(ctx, client, d.Group)
	if err != nil {
		return err
	}
	if !found {
		_, err := client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: aws.String(d.Group)})
		switch {
		case alreadyCreated(err):
		case err != nil:
			return fmt.Errorf("[%s] create log group %q: %w", client.GetRegion(), d.Group, err)
		case d.RetentionDays > 0:
			if _, err := client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
				LogGroupName:    aws.String(d.Group),
				RetentionInDays: aws.Int32(d.RetentionDays),
			}); err != nil {
				return fmt.Errorf("[%s] set retention on %q: %w", client.GetRegion(), d.Group, err)
			}
		}
	}

	found, err = streamExists(ctx, client, d.Group, d.Stream)
	if err != nil || found {
		return err
	}
	_, err = client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(d.Group),
		LogStreamName: aws.String(d.Stream),
	})
	if err != nil && !alreadyCreated(err) {
		return fmt.Errorf("[%s] create log stream %q: %w", client.GetRegion(), d.Stream, err)
	}
	return nil
}

func groupExists(ctx context.Context, client CloudWatchLogsClient, group string) (bool, error) {
	p := cloudwatchlogs.NewDescribeLogGroupsPaginator(client, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(group),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return false, fmt.Errorf("[%s] describe log groups: %w", client.GetRegion(), err)
		}
		for _, g := range page.LogGroups {
			if aws.ToString(g.LogGroupName) == group {
				return true, nil
			}
		}
	}
	return false, nil
}

func streamExists(ctx context.Context, client CloudWatchLogsClient, group, stream string) (bool, error) {
	p := cloudwatchlogs.NewDescribeLogStreamsPaginator(client, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(group),
		LogStreamNamePrefix: aws.String(stream),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return false, fmt.Errorf("[%s] describe log streams: %w", client.GetRegion(), err)
		}
		for _, s := range page.LogStreams {
			if aws.ToString(s.LogStreamName) == stream {
				return true, nil
			}
		}
	}
	return false, nil
}

func alreadyCreated(err error) bool {
	var exists *cwlTypes.ResourceAlreadyExistsException
	var aborted *cwlTypes.OperationAbortedException
	return errors.As(err, &exists) || errors.As(err, &aborted)
}
