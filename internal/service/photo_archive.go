package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pageza/chopchop/backend/config"
)

// PhotoArchive keeps a copy of uploaded fridge photos and returns their URL
type PhotoArchive interface {
	Archive(ctx context.Context, email string, img EncodedImage) (string, error)
}

// S3PutObjectAPI is the part of the S3 client used by the archive
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3PhotoArchive stores photos under fridge-photos/ in a bucket
type S3PhotoArchive struct {
	client S3PutObjectAPI
	bucket string
	urlFor func(key string) string
}

// NewS3PhotoArchive creates an archive from an S3 configuration
func NewS3PhotoArchive(cfg *config.S3Config) *S3PhotoArchive {
	return &S3PhotoArchive{
		client: cfg.Client,
		bucket: cfg.BucketName,
		urlFor: cfg.ObjectURL,
	}
}

// Archive uploads img and returns its object URL
func (a *S3PhotoArchive) Archive(ctx context.Context, email string, img EncodedImage) (string, error) {
	ext := img.Format()
	if ext == "jpg" {
		ext = "jpeg"
	}
	key := fmt.Sprintf("fridge-photos/%s.%s", uuid.New().String(), ext)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.ContentType),
		Metadata:    map[string]string{"owner": email},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload photo to S3: %w", err)
	}
	return a.urlFor(key), nil
}
