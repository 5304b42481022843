package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureStore implements ObjectStore on Azure Blob Storage. Containers map
// directly to Azure containers.
type AzureStore struct {
	serviceURL azblob.ServiceURL
}

// NewAzureStore creates a new AzureStore instance
func NewAzureStore(config *AzureConfig) (*AzureStore, error) {
	if config == nil || config.AccountName == "" || config.AccountKey == "" {
		return nil, fmt.Errorf("Azure storage requires account name and key")
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURLStr := fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName)
	parsedURL, err := url.Parse(serviceURLStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Azure service URL: %w", err)
	}

	return &AzureStore{
		serviceURL: azblob.NewServiceURL(*parsedURL, pipeline),
	}, nil
}

// Put uploads a blob to Azure
func (as *AzureStore) Put(ctx context.Context, container, key string, data []byte) error {
	blobURL := as.serviceURL.NewContainerURL(container).NewBlockBlobURL(key)

	_, err := azblob.UploadBufferToBlockBlob(ctx, data, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to Azure: %w", key, err)
	}
	return nil
}

// Get downloads a blob from Azure
func (as *AzureStore) Get(ctx context.Context, container, key string) ([]byte, error) {
	blobURL := as.serviceURL.NewContainerURL(container).NewBlockBlobURL(key)

	response, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from Azure: %w", key, err)
	}

	bodyStream := response.Body(azblob.RetryReaderOptions{MaxRetryRequests: 20})
	defer bodyStream.Close()

	data := bytes.Buffer{}
	if _, err := io.Copy(&data, bodyStream); err != nil {
		return nil, fmt.Errorf("failed to read %s from Azure: %w", key, err)
	}

	return data.Bytes(), nil
}

// Exists reports whether a blob is present in Azure
func (as *AzureStore) Exists(ctx context.Context, container, key string) (bool, error) {
	blobURL := as.serviceURL.NewContainerURL(container).NewBlockBlobURL(key)

	_, err := blobURL.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if storageErr, ok := err.(azblob.StorageError); ok {
			if storageErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
				return false, nil
			}
		}
		return false, fmt.Errorf("failed to check %s in Azure: %w", key, err)
	}
	return true, nil
}

// Delete removes a blob from Azure
func (as *AzureStore) Delete(ctx context.Context, container, key string) error {
	blobURL := as.serviceURL.NewContainerURL(container).NewBlockBlobURL(key)

	_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	if err != nil {
		return fmt.Errorf("failed to delete %s from Azure: %w", key, err)
	}
	return nil
}

// List returns the keys of all blobs in an Azure container
func (as *AzureStore) List(ctx context.Context, container string) ([]string, error) {
	containerURL := as.serviceURL.NewContainerURL(container)

	var keys []string
	for marker := (azblob.Marker{}); marker.NotDone(); {
		listBlob, err := containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to list container %s in Azure: %w", container, err)
		}
		marker = listBlob.NextMarker

		for _, blobInfo := range listBlob.Segment.BlobItems {
			keys = append(keys, blobInfo.Name)
		}
	}

	return keys, nil
}

// EnsureContainer creates the Azure container if it doesn't already exist
func (as *AzureStore) EnsureContainer(ctx context.Context, container string) error {
	containerURL := as.serviceURL.NewContainerURL(container)

	_, err := containerURL.Create(ctx, azblob.Metadata{}, azblob.PublicAccessNone)
	if err != nil {
		if storageErr, ok := err.(azblob.StorageError); ok {
			if storageErr.ServiceCode() == azblob.ServiceCodeContainerAlreadyExists {
				return nil
			}
		}
		return fmt.Errorf("failed to create container %s in Azure: %w", container, err)
	}
	return nil
}
