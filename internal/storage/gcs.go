package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore implements ObjectStore on Google Cloud Storage. Containers map
// to object prefixes inside the configured bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore creates a new GCSStore instance
func NewGCSStore(ctx context.Context, config *GCSConfig) (*GCSStore, error) {
	if config == nil || config.Bucket == "" {
		return nil, fmt.Errorf("GCS storage requires a bucket")
	}

	var opts []option.ClientOption
	if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: config.Bucket,
	}, nil
}

// Put uploads a blob to GCS
func (gs *GCSStore) Put(ctx context.Context, container, key string, data []byte) error {
	obj := gs.client.Bucket(gs.bucket).Object(gs.objectKey(container, key))

	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/octet-stream"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to upload %s to GCS: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s in GCS: %w", key, err)
	}

	return nil
}

// Get downloads a blob from GCS
func (gs *GCSStore) Get(ctx context.Context, container, key string) ([]byte, error) {
	obj := gs.client.Bucket(gs.bucket).Object(gs.objectKey(container, key))

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from GCS: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from GCS: %w", key, err)
	}
	return data, nil
}

// Exists reports whether a blob is present in GCS
func (gs *GCSStore) Exists(ctx context.Context, container, key string) (bool, error) {
	obj := gs.client.Bucket(gs.bucket).Object(gs.objectKey(container, key))

	_, err := obj.Attrs(ctx)
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s in GCS: %w", key, err)
	}
	return true, nil
}

// Delete removes a blob from GCS
func (gs *GCSStore) Delete(ctx context.Context, container, key string) error {
	obj := gs.client.Bucket(gs.bucket).Object(gs.objectKey(container, key))

	if err := obj.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s from GCS: %w", key, err)
	}
	return nil
}

// List returns the keys of all blobs under a container prefix
func (gs *GCSStore) List(ctx context.Context, container string) ([]string, error) {
	prefix := container + "/"
	it := gs.client.Bucket(gs.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list container %s in GCS: %w", container, err)
		}
		keys = append(keys, strings.TrimPrefix(attrs.Name, prefix))
	}

	return keys, nil
}

// EnsureContainer is a no-op for GCS: the bucket must pre-exist and prefixes
// need no creation
func (gs *GCSStore) EnsureContainer(ctx context.Context, container string) error {
	return nil
}

// Close releases the underlying client
func (gs *GCSStore) Close() error {
	return gs.client.Close()
}

func (gs *GCSStore) objectKey(container, key string) string {
	return container + "/" + key
}
