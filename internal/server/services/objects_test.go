package services

import (
	"context"
	"errors"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	s := NewObjectService(testConfig())

	assert.NoError(t, s.ValidateKey("u1", "u1/d1/scan.pdf"))
	assert.True(t, errors.Is(s.ValidateKey("u1", "u2/d1/scan.pdf"), common.ErrUnauthorized))
	assert.True(t, errors.Is(s.ValidateKey("u1", "u1/../u2/scan.pdf"), common.ErrValidation))
}

func TestGetPresignedPutURL_UsesConfiguredBucket(t *testing.T) {
	orig := presignPutObject
	defer func() { presignPutObject = orig }()

	var gotBucket, gotKey string
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		gotBucket, gotKey = *in.Bucket, *in.Key
		return &v4.PresignedHTTPRequest{URL: "https://signed.example/put"}, nil
	}

	s := NewObjectService(testConfig())
	url, err := s.GetPresignedPutURL(context.Background(), "u1/d1/scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/put", url)
	assert.Equal(t, "papersync", gotBucket)
	assert.Equal(t, "u1/d1/scan.pdf", gotKey)
}

func TestGetPresignedGetURL_PropagatesError(t *testing.T) {
	orig := presignGetObject
	defer func() { presignGetObject = orig }()

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign failed")
	}

	s := NewObjectService(testConfig())
	_, err := s.GetPresignedGetURL(context.Background(), "u1/d1/scan.pdf")
	assert.ErrorContains(t, err, "presign failed")
}

func TestDeleteObject_CallsS3(t *testing.T) {
	orig := deleteS3Object
	defer func() { deleteS3Object = orig }()

	var gotKey string
	deleteS3Object = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		gotKey = *in.Key
		return &s3.DeleteObjectOutput{}, nil
	}

	s := NewObjectService(testConfig())
	require.NoError(t, s.DeleteObject(context.Background(), "u1/d1/scan.pdf"))
	assert.Equal(t, "u1/d1/scan.pdf", gotKey)
}
