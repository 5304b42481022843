package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Store implements ObjectStore on Amazon S3. Containers map to key
// prefixes inside the configured bucket.
type S3Store struct {
	client *s3.S3
	bucket string
}

// NewS3Store creates a new S3Store instance
func NewS3Store(config *S3Config) (*S3Store, error) {
	if config == nil {
		return nil, fmt.Errorf("S3 storage configuration is required")
	}
	if config.Bucket == "" || config.Region == "" {
		return nil, fmt.Errorf("S3 storage requires bucket and region")
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"", // token
		)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client: s3.New(sess),
		bucket: config.Bucket,
	}, nil
}

// Put uploads a blob to S3
func (s *S3Store) Put(ctx context.Context, container, key string, data []byte) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(container, key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	return nil
}

// Get downloads a blob from S3
func (s *S3Store) Get(ctx context.Context, container, key string) ([]byte, error) {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(container, key)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from S3: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from S3: %w", key, err)
	}
	return data, nil
}

// Exists reports whether a blob is present in S3
func (s *S3Store) Exists(ctx context.Context, container, key string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(container, key)),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok {
			switch awsErr.Code() {
			case s3.ErrCodeNoSuchKey, "NotFound":
				return false, nil
			}
		}
		return false, fmt.Errorf("failed to check %s in S3: %w", key, err)
	}
	return true, nil
}

// Delete removes a blob from S3
func (s *S3Store) Delete(ctx context.Context, container, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(container, key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from S3: %w", key, err)
	}
	return nil
}

// List returns the keys of all blobs under a container prefix
func (s *S3Store) List(ctx context.Context, container string) ([]string, error) {
	prefix := container + "/"

	var keys []string
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(*obj.Key, prefix))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list container %s in S3: %w", container, err)
	}

	return keys, nil
}

// EnsureContainer is a no-op for S3: the bucket must pre-exist and prefixes
// need no creation
func (s *S3Store) EnsureContainer(ctx context.Context, container string) error {
	return nil
}

func (s *S3Store) objectKey(container, key string) string {
	return container + "/" + key
}
