package storage

import (
	"context"
	"fmt"
)

// Factory creates object stores based on configuration
type Factory struct{}

// NewFactory creates a new storage factory
func NewFactory() *Factory {
	return &Factory{}
}

// Create creates an object store for the configured provider
func (f *Factory) Create(ctx context.Context, config Config) (ObjectStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", err)
	}

	switch config.Provider {
	case ProviderLocal:
		return NewLocalStore(config.Local)
	case ProviderS3:
		return NewS3Store(config.S3)
	case ProviderAzure:
		return NewAzureStore(config.Azure)
	case ProviderGCS:
		return NewGCSStore(ctx, config.GCS)
	case ProviderMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", config.Provider)
	}
}

// SupportedProviders returns the provider types this factory can create
func (f *Factory) SupportedProviders() []ProviderType {
	return []ProviderType{ProviderLocal, ProviderS3, ProviderAzure, ProviderGCS, ProviderMemory}
}
