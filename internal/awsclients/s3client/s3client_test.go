package s3client_test

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/s3client"
	"github.com/stretchr/testify/assert"
)

func TestNewS3Client_Success(t *testing.T) {
	c, err := s3client.NewS3Client(aws.Config{}, "us-west-2")
	assert.NoError(t, err, "should not be error creating s3 client")
	assert.IsType(t, &s3client.S3ClientImpl{}, c)
	assert.Equal(t, "us-west-2", c.GetRegion())
}

func TestNewS3Client_InvalidRegion(t *testing.T) {
	c, err := s3client.NewS3Client(aws.Config{}, "mars-1")
	assert.Error(t, err, "should be error creating s3 client")
	assert.Nil(t, c)
}
