package upload

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the part of *s3.Client the saver uses
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Saver stores uploads in an S3 bucket
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	saver := upload.NewS3Saver(s3.NewFromConfig(cfg), "my-bucket", "uploads/")
//	err := bean.Photo.Save(ctx, saver, bean.Photo.FileName)
type S3Saver struct {
	client S3API
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Saver creates a saver writing under prefix in bucket
func NewS3Saver(client S3API, bucket, prefix string) *S3Saver {
	return &S3Saver{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// Save implements Saver
func (s *S3Saver) Save(ctx context.Context, key, contentType string, size int64, r io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + key),
		Body:        r,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"upload-time": s.now().UTC().Format(time.RFC3339),
		},
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}
