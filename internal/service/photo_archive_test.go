package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pageza/chopchop/backend/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func newTestArchive(client S3PutObjectAPI) *S3PhotoArchive {
	cfg := &config.S3Config{BucketName: "chopchop-photos", Region: "us-west-2"}
	archive := NewS3PhotoArchive(cfg)
	archive.client = client
	return archive
}

func TestS3PhotoArchive_Archive(t *testing.T) {
	fake := &fakeS3{}
	archive := newTestArchive(fake)

	url, err := archive.Archive(context.Background(), testEmail, EncodedImage{ContentType: "image/jpg", Data: []byte("jpeg-bytes")})
	require.NoError(t, err)

	key := aws.ToString(fake.input.Key)
	assert.True(t, strings.HasPrefix(key, "fridge-photos/"))
	assert.True(t, strings.HasSuffix(key, ".jpeg"))
	assert.Equal(t, "chopchop-photos", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "image/jpg", aws.ToString(fake.input.ContentType))
	assert.Equal(t, testEmail, fake.input.Metadata["owner"])
	assert.Equal(t, []byte("jpeg-bytes"), fake.body)
	assert.Equal(t, "https://chopchop-photos.s3.us-west-2.amazonaws.com/"+key, url)
}

func TestS3PhotoArchive_Error(t *testing.T) {
	archive := newTestArchive(&fakeS3{err: errors.New("access denied")})

	_, err := archive.Archive(context.Background(), testEmail, EncodedImage{ContentType: "image/png", Data: []byte{1}})
	assert.ErrorContains(t, err, "access denied")
}
