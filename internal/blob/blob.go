// Package blob reads and writes objects in S3 buckets.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/s3client"
)

const (
	// error msgs
	ClientNilErrMsg = "s3 client is nil"
)

// Object is a downloaded blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is the blob surface handlers depend on.
type Store interface {
	Download(ctx context.Context, bucket, key string) (Object, error)
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	ContentType(ctx context.Context, bucket, key string) (string, error)
}

// S3 implements Store.
type S3 struct {
	client s3client.S3Client
}

func New(client s3client.S3Client) (*S3, error) {
	if client == nil {
		return nil, errors.New(ClientNilErrMsg)
	}
	return &S3{client: client}, nil
}

func (s *S3) Download(ctx context.Context, bucket, key string) (Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Object{}, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Object{}, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	return Object{Data: data, ContentType: aws.ToString(out.ContentType)}, nil
}

func (s *S3) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3) ContentType(ctx context.Context, bucket, key string) (string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("head s3://%s/%s: %w", bucket, key, err)
	}
	return aws.ToString(out.ContentType), nil
}
