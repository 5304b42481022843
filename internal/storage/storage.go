package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"
)

// ObjectStore is the capability contract this engine requires from remote
// blob storage: five operations over named blobs in a container, plus
// best-effort container auto-creation. No vendor-specific semantics are
// assumed beyond these.
type ObjectStore interface {
	Put(ctx context.Context, container, key string, data []byte) error
	Get(ctx context.Context, container, key string) ([]byte, error)
	Exists(ctx context.Context, container, key string) (bool, error)
	Delete(ctx context.Context, container, key string) error
	List(ctx context.Context, container string) ([]string, error)

	// EnsureContainer creates the container if the backend supports it;
	// backends where containers pre-exist return nil.
	EnsureContainer(ctx context.Context, container string) error
}

// healthProbeKey is the blob name used by HealthCheck. It is deleted after
// every probe, so a leftover probe blob indicates an interrupted check.
const healthProbeKey = ".health_probe"

// HealthCheck verifies the store is reachable and writable by round-tripping
// a small probe blob through the container and deleting it again.
func HealthCheck(ctx context.Context, store ObjectStore, container string) error {
	payload := []byte("probe " + time.Now().UTC().Format(time.RFC3339Nano))

	if err := store.EnsureContainer(ctx, container); err != nil {
		return fmt.Errorf("health probe container check failed: %w", err)
	}
	if err := store.Put(ctx, container, healthProbeKey, payload); err != nil {
		return fmt.Errorf("health probe write failed: %w", err)
	}
	read, err := store.Get(ctx, container, healthProbeKey)
	if err != nil {
		return fmt.Errorf("health probe read failed: %w", err)
	}
	if !bytes.Equal(read, payload) {
		return fmt.Errorf("health probe read back different content")
	}
	if err := store.Delete(ctx, container, healthProbeKey); err != nil {
		return fmt.Errorf("health probe delete failed: %w", err)
	}
	return nil
}

// ProviderType identifies a storage backend
type ProviderType string

const (
	ProviderLocal  ProviderType = "LOCAL"
	ProviderS3     ProviderType = "S3"
	ProviderAzure  ProviderType = "AZURE"
	ProviderGCS    ProviderType = "GCS"
	ProviderMemory ProviderType = "MEMORY"
)

// Config selects and configures a storage backend
type Config struct {
	Provider ProviderType `yaml:"provider" mapstructure:"provider"`
	Local    *LocalConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3       *S3Config    `yaml:"s3,omitempty" mapstructure:"s3"`
	Azure    *AzureConfig `yaml:"azure,omitempty" mapstructure:"azure"`
	GCS      *GCSConfig   `yaml:"gcs,omitempty" mapstructure:"gcs"`
}

// LocalConfig for local file system storage
type LocalConfig struct {
	BasePath    string      `yaml:"base_path" mapstructure:"base_path"`
	Permissions os.FileMode `yaml:"permissions" mapstructure:"permissions"`
}

// S3Config for Amazon S3 storage
type S3Config struct {
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName string `yaml:"account_name" mapstructure:"account_name"`
	AccountKey  string `yaml:"account_key" mapstructure:"account_key"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	CredentialsPath string `yaml:"credentials_path" mapstructure:"credentials_path"`
	ProjectID       string `yaml:"project_id" mapstructure:"project_id"`
}

// Configured reports whether any backend is configured at all. An empty
// provider means the backup subsystem degrades to a logged no-op rather
// than failing the host application.
func (c *Config) Configured() bool {
	return c != nil && c.Provider != ""
}

// Validate validates the storage configuration
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.Local == nil || c.Local.BasePath == "" {
			return fmt.Errorf("local storage requires a base path")
		}
	case ProviderS3:
		if c.S3 == nil {
			return fmt.Errorf("S3 storage configuration is required")
		}
		if c.S3.Bucket == "" || c.S3.Region == "" {
			return fmt.Errorf("S3 storage requires bucket and region")
		}
	case ProviderAzure:
		if c.Azure == nil || c.Azure.AccountName == "" || c.Azure.AccountKey == "" {
			return fmt.Errorf("Azure storage requires account name and key")
		}
	case ProviderGCS:
		if c.GCS == nil || c.GCS.Bucket == "" {
			return fmt.Errorf("GCS storage requires a bucket")
		}
	case ProviderMemory:
		// Nothing to validate; test backend.
	default:
		return fmt.Errorf("unsupported storage provider: %s", c.Provider)
	}
	return nil
}
