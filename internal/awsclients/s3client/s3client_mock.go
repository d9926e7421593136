package s3client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// FakeObject is one object held by FakeS3Client.
type FakeObject struct {
	Body        []byte
	ContentType string
}

// FakeS3Client is an in-memory S3Client keyed by "bucket/key".
type FakeS3Client struct {
	Region  string
	Objects map[string]FakeObject
	// PutErr, when set, is returned by every PutObject call.
	PutErr error

	mu        sync.Mutex
	GetCalls  int
	PutCalls  int
	HeadCalls int
}

func fakeKey(bucket, key *string) string {
	return aws.ToString(bucket) + "/" + aws.ToString(key)
}

func (f *FakeS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++
	obj, ok := f.Objects[fakeKey(params.Bucket, params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.Body)),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Body))),
	}, nil
}

func (f *FakeS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++
	if f.PutErr != nil {
		return nil, f.PutErr
	}
	if params.Body == nil {
		return nil, errors.New("put object: nil body")
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if f.Objects == nil {
		f.Objects = map[string]FakeObject{}
	}
	f.Objects[fakeKey(params.Bucket, params.Key)] = FakeObject{Body: body, ContentType: aws.ToString(params.ContentType)}
	return &s3.PutObjectOutput{}, nil
}

func (f *FakeS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HeadCalls++
	obj, ok := f.Objects[fakeKey(params.Bucket, params.Key)]
	if !ok {
		return nil, &s3types.NotFound{Message: aws.String("not found")}
	}
	return &s3.HeadObjectOutput{
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Body))),
	}, nil
}

func (f *FakeS3Client) GetRegion() string { return f.Region }
