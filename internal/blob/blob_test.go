package blob_test

import (
	"context"
	"testing"

	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/s3client"
	"github.com/outofoffice3/aws-samples/hermes/internal/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadDownload(t *testing.T) {
	fake := &s3client.FakeS3Client{}
	s, err := blob.New(fake)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "bucket", "apod/1995-06-17.jpg", []byte("jpeg"), "image/jpeg"))
	obj, err := s.Download(ctx, "bucket", "apod/1995-06-17.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), obj.Data)
	assert.Equal(t, "image/jpeg", obj.ContentType)

	ct, err := s.ContentType(ctx, "bucket", "apod/1995-06-17.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)

	_, err = s.Download(ctx, "bucket", "missing")
	assert.Error(t, err)
}

func TestNew_NilClient(t *testing.T) {
	_, err := blob.New(nil)
	assert.EqualError(t, err, blob.ClientNilErrMsg)
}
