package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 stores uploads in a bucket under a prefix.
type S3 struct {
	client S3API
	bucket string
	prefix string
}

// NewS3 loads the AWS configuration for profile and region and returns a
// bucket-backed store.
func NewS3(ctx context.Context, bucket, prefix, profile, region string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 storage bucket is empty")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client S3API, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3) Save(ctx context.Context, originalName string, data []byte) (*Object, error) {
	key := NewKey(originalName)
	objectKey := s.objectKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading to s3://%s/%s: %w", s.bucket, objectKey, err)
	}
	uri := fmt.Sprintf("s3://%s/%s", s.bucket, objectKey)
	return &Object{Key: key, Path: uri, URI: uri}, nil
}

func (s *S3) Read(ctx context.Context, key string) ([]byte, error) {
	objectKey := s.objectKey(key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, objectKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("downloading s3://%s/%s: %w", s.bucket, objectKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, objectKey, err)
	}
	return data, nil
}

// LocalPath always reports false: objects must be downloaded.
func (s *S3) LocalPath(string) (string, bool) {
	return "", false
}

func (s *S3) objectKey(key string) string {
	return path.Join(s.prefix, key)
}
