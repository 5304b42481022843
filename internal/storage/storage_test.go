package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(&LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte("backup payload")

	err = store.Put(ctx, "backups", "backup_20260101.gz", data)
	require.NoError(t, err)

	got, err := store.Get(ctx, "backups", "backup_20260101.gz")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	exists, err := store.Exists(ctx, "backups", "backup_20260101.gz")
	require.NoError(t, err)
	assert.True(t, exists)

	err = store.Delete(ctx, "backups", "backup_20260101.gz")
	require.NoError(t, err)

	exists, err = store.Exists(ctx, "backups", "backup_20260101.gz")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStoreList(t *testing.T) {
	store, err := NewLocalStore(&LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "backups", "b.gz", []byte("b")))
	require.NoError(t, store.Put(ctx, "backups", "a.gz", []byte("a")))
	require.NoError(t, store.Put(ctx, "other", "c.gz", []byte("c")))

	keys, err := store.List(ctx, "backups")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.gz", "b.gz"}, keys)
}

func TestLocalStoreListMissingContainer(t *testing.T) {
	store, err := NewLocalStore(&LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	keys, err := store.List(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocalStoreGetMissingBlob(t *testing.T) {
	store, err := NewLocalStore(&LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "backups", "missing.gz")
	assert.Error(t, err)
}

func TestLocalStoreSanitizesTraversal(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStore(&LocalConfig{BasePath: base})
	require.NoError(t, err)

	ctx := context.Background()
	err = store.Put(ctx, "backups", "../../etc/passwd", []byte("nope"))
	require.NoError(t, err)

	// The write must land inside the container, not outside the base path.
	keys, err := store.List(ctx, "backups")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "/")
}

func TestLocalStoreRequiresBasePath(t *testing.T) {
	_, err := NewLocalStore(&LocalConfig{})
	assert.Error(t, err)

	_, err = NewLocalStore(nil)
	assert.Error(t, err)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("payload")
	require.NoError(t, store.Put(ctx, "backups", "key", data))

	got, err := store.Get(ctx, "backups", "key")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Mutating the returned slice must not affect the stored copy.
	got[0] = 'x'
	again, err := store.Get(ctx, "backups", "key")
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestMemoryStoreDeleteMissing(t *testing.T) {
	store := NewMemoryStore()
	err := store.Delete(context.Background(), "backups", "missing")
	assert.Error(t, err)
}

func TestMemoryStoreListSorted(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "c", "zeta", []byte("1")))
	require.NoError(t, store.Put(ctx, "c", "alpha", []byte("2")))
	require.NoError(t, store.Put(ctx, "c", "mid", []byte("3")))

	keys, err := store.List(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, keys)
}

func TestMemoryStoreFailureInjection(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.FailPut = true
	assert.Error(t, store.Put(ctx, "c", "k", []byte("x")))
	store.FailPut = false

	require.NoError(t, store.Put(ctx, "c", "k", []byte("x")))

	store.FailGet = true
	_, err := store.Get(ctx, "c", "k")
	assert.Error(t, err)
	store.FailGet = false

	store.FailDelete = true
	assert.Error(t, store.Delete(ctx, "c", "k"))
}

func TestFactoryCreatesMemoryStore(t *testing.T) {
	factory := NewFactory()
	store, err := factory.Create(context.Background(), Config{Provider: ProviderMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	factory := NewFactory()
	_, err := factory.Create(context.Background(), Config{Provider: "FTP"})
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid local",
			config:  Config{Provider: ProviderLocal, Local: &LocalConfig{BasePath: "/tmp/backups"}},
			wantErr: false,
		},
		{
			name:    "local without base path",
			config:  Config{Provider: ProviderLocal, Local: &LocalConfig{}},
			wantErr: true,
		},
		{
			name:    "valid s3",
			config:  Config{Provider: ProviderS3, S3: &S3Config{Bucket: "b", Region: "us-east-1"}},
			wantErr: false,
		},
		{
			name:    "s3 without region",
			config:  Config{Provider: ProviderS3, S3: &S3Config{Bucket: "b"}},
			wantErr: true,
		},
		{
			name:    "azure without key",
			config:  Config{Provider: ProviderAzure, Azure: &AzureConfig{AccountName: "acct"}},
			wantErr: true,
		},
		{
			name:    "valid gcs",
			config:  Config{Provider: ProviderGCS, GCS: &GCSConfig{Bucket: "b"}},
			wantErr: false,
		},
		{
			name:    "memory needs nothing",
			config:  Config{Provider: ProviderMemory},
			wantErr: false,
		},
		{
			name:    "unknown provider",
			config:  Config{Provider: "TAPE"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHealthCheckRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, HealthCheck(ctx, store, "backups"))

	// The probe blob does not linger.
	keys, err := store.List(ctx, "backups")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestHealthCheckUnwritableStore(t *testing.T) {
	store := NewMemoryStore()
	store.FailPut = true

	err := HealthCheck(context.Background(), store, "backups")
	assert.Error(t, err)
}

func TestConfigured(t *testing.T) {
	var nilConfig *Config
	assert.False(t, nilConfig.Configured())
	assert.False(t, (&Config{}).Configured())
	assert.True(t, (&Config{Provider: ProviderMemory}).Configured())
}
