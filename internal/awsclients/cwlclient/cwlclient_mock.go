package cwlclient

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwlTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// FakeCloudWatchLogsClient keeps groups, streams and put batches in memory.
type FakeCloudWatchLogsClient struct {
	Region  string
	Groups  map[string]bool
	Streams map[string]bool
	// PutErr, when set, is returned by every PutLogEvents call.
	PutErr error

	mu        sync.Mutex
	Batches   [][]cwlTypes.InputLogEvent
	Created   []string
	Retention map[string]int32
}

func (f *FakeCloudWatchLogsClient) GetRegion() string { return f.Region }

func (f *FakeCloudWatchLogsClient) PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PutErr != nil {
		return nil, f.PutErr
	}
	f.Batches = append(f.Batches, params.LogEvents)
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

func (f *FakeCloudWatchLogsClient) CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Groups == nil {
		f.Groups = map[string]bool{}
	}
	name := aws.ToString(params.LogGroupName)
	if f.Groups[name] {
		return nil, &cwlTypes.ResourceAlreadyExistsException{}
	}
	f.Groups[name] = true
	f.Created = append(f.Created, "group:"+name)
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *FakeCloudWatchLogsClient) PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Retention == nil {
		f.Retention = map[string]int32{}
	}
	f.Retention[aws.ToString(params.LogGroupName)] = aws.ToInt32(params.RetentionInDays)
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *FakeCloudWatchLogsClient) DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &cloudwatchlogs.DescribeLogGroupsOutput{}
	for name := range f.Groups {
		out.LogGroups = append(out.LogGroups, cwlTypes.LogGroup{LogGroupName: aws.String(name)})
	}
	return out, nil
}

func (f *FakeCloudWatchLogsClient) DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &cloudwatchlogs.DescribeLogStreamsOutput{}
	group := aws.ToString(params.LogGroupName)
	for key := range f.Streams {
		if len(key) > len(group) && key[:len(group)+1] == group+"/" {
			out.LogStreams = append(out.LogStreams, cwlTypes.LogStream{LogStreamName: aws.String(key[len(group)+1:])})
		}
	}
	return out, nil
}

func (f *FakeCloudWatchLogsClient) CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Streams == nil {
		f.Streams = map[string]bool{}
	}
	key := aws.ToString(params.LogGroupName) + "/" + aws.ToString(params.LogStreamName)
	f.Streams[key] = true
	f.Created = append(f.Created, "stream:"+key)
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}
