package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/checksum"
	"dataguard/internal/database"
	"dataguard/internal/logging"
	"dataguard/internal/storage"
)

// stubInspector satisfies database.Inspector with canned row counts,
// keyed by the path the manager opened.
type stubInspector struct {
	counts map[string]int64

	// names, when set, overrides the table list so a table can be listed
	// but fail to count.
	names []string
}

func (s *stubInspector) TableExists(ctx context.Context, table string) (bool, error) {
	_, ok := s.counts[table]
	return ok, nil
}

func (s *stubInspector) RowCount(ctx context.Context, table string) (int64, error) {
	count, ok := s.counts[table]
	if !ok {
		return 0, os.ErrNotExist
	}
	return count, nil
}

func (s *stubInspector) RowsInKeyOrder(ctx context.Context, table string) ([]checksum.Row, error) {
	return nil, nil
}

func (s *stubInspector) TableNames(ctx context.Context) ([]string, error) {
	if s.names != nil {
		return s.names, nil
	}
	names := make([]string, 0, len(s.counts))
	for name := range s.counts {
		names = append(names, name)
	}
	return names, nil
}

func (s *stubInspector) TableDefinitions(ctx context.Context) ([]checksum.TableDefinition, error) {
	return nil, nil
}

func (s *stubInspector) SelfTest(ctx context.Context) error { return nil }
func (s *stubInspector) Close() error                       { return nil }

func quietLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(logging.Config{
		Level:  logging.LogLevelQuiet,
		Output: io.Discard,
	})
	require.NoError(t, err)
	return logger
}

type managerFixture struct {
	manager *Manager
	store   *storage.MemoryStore
	dbPath  string
	counts  map[string]int64
	now     time.Time
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("sqlite file contents for testing"), 0644))

	store := storage.NewMemoryStore()
	counts := map[string]int64{"users": 42, "courses": 7}
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	config := Config{
		Compression: CompressionConfig{Enabled: true, Algorithm: CompressionTypeGzip},
	}

	manager := NewManager(config, dbPath, filepath.Join(dir, "state"), store, quietLogger(t))
	manager.now = func() time.Time { return now }
	manager.openInspector = func(path string) (database.Inspector, error) {
		return &stubInspector{counts: counts}, nil
	}

	return &managerFixture{
		manager: manager,
		store:   store,
		dbPath:  dbPath,
		counts:  counts,
		now:     now,
	}
}

func TestCreateBackupCatalogsEntry(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	meta, ok := f.manager.CreateBackup(ctx, KindScheduled)
	require.True(t, ok)
	require.NotNil(t, meta)

	assert.Equal(t, KindScheduled, meta.Kind)
	assert.Equal(t, int64(32), meta.DatabaseSizeBytes)
	assert.Equal(t, int64(42), meta.RecordCounts["users"])
	assert.Equal(t, f.now.Add(RetentionScheduled), meta.RetentionDate)

	exists, err := f.store.Exists(ctx, "backups", meta.BlobKey())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.store.Exists(ctx, "backups", CatalogKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateBackupManualRetention(t *testing.T) {
	f := newManagerFixture(t)

	meta, ok := f.manager.CreateBackup(context.Background(), KindManual)
	require.True(t, ok)
	assert.Equal(t, f.now.Add(RetentionManual), meta.RetentionDate)

	meta, ok = f.manager.CreateBackup(context.Background(), KindPreDeployment)
	require.True(t, ok)
	assert.Equal(t, f.now.Add(RetentionManual), meta.RetentionDate)
}

func TestCreateBackupRejectsUnknownKind(t *testing.T) {
	f := newManagerFixture(t)

	meta, ok := f.manager.CreateBackup(context.Background(), Kind("hourly"))
	assert.False(t, ok)
	assert.Nil(t, meta)
}

func TestCreateBackupDegradedWithoutStore(t *testing.T) {
	f := newManagerFixture(t)
	manager := NewManager(Config{}, f.dbPath, t.TempDir(), nil, quietLogger(t))

	meta, ok := manager.CreateBackup(context.Background(), KindScheduled)
	assert.False(t, ok)
	assert.Nil(t, meta)
}

func TestCreateBackupUploadFailureLeavesNoCatalogEntry(t *testing.T) {
	f := newManagerFixture(t)
	f.store.FailPut = true

	meta, ok := f.manager.CreateBackup(context.Background(), KindScheduled)
	assert.False(t, ok)
	assert.Nil(t, meta)

	// The catalog must not reference a blob that never landed.
	_, err := os.Stat(f.manager.catalog.LocalPath())
	assert.True(t, os.IsNotExist(err))
}

func TestCreateBackupUnreadableCountRecordedAsUnknown(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.openInspector = func(path string) (database.Inspector, error) {
		// "grades" is listed but cannot be counted.
		return &stubInspector{
			counts: map[string]int64{"users": 42},
			names:  []string{"users", "grades"},
		}, nil
	}

	meta, ok := f.manager.CreateBackup(context.Background(), KindScheduled)
	require.True(t, ok)
	assert.Equal(t, int64(42), meta.RecordCounts["users"])
	assert.Equal(t, int64(-1), meta.RecordCounts["grades"])
}

func TestListRestorePointsNewestFirst(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	first, ok := f.manager.CreateBackup(ctx, KindScheduled)
	require.True(t, ok)

	f.manager.now = func() time.Time { return f.now.Add(2 * time.Hour) }
	second, ok := f.manager.CreateBackup(ctx, KindManual)
	require.True(t, ok)

	points := f.manager.ListRestorePoints(ctx, 7)
	require.Len(t, points, 2)
	assert.Equal(t, second.ID, points[0].BackupID)
	assert.Equal(t, first.ID, points[1].BackupID)
	assert.Contains(t, points[0].Tables, "users")
}

func TestListRestorePointsFiltersByAge(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, ok := f.manager.CreateBackup(ctx, KindScheduled)
	require.True(t, ok)

	f.manager.now = func() time.Time { return f.now.Add(10 * 24 * time.Hour) }
	recent, ok := f.manager.CreateBackup(ctx, KindScheduled)
	require.True(t, ok)

	points := f.manager.ListRestorePoints(ctx, 7)
	require.Len(t, points, 1)
	assert.Equal(t, recent.ID, points[0].BackupID)
}

func TestRestoreRoundTrip(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	meta, ok := f.manager.CreateBackup(ctx, KindManual)
	require.True(t, ok)

	original, err := os.ReadFile(f.dbPath)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "restored.db")
	require.True(t, f.manager.Restore(ctx, meta.ID, target))

	restored, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestRestoreUnknownBackup(t *testing.T) {
	f := newManagerFixture(t)
	target := filepath.Join(t.TempDir(), "restored.db")
	assert.False(t, f.manager.Restore(context.Background(), "backup_missing", target))
}

func TestRestoreVerificationFailureDeletesTarget(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	meta, ok := f.manager.CreateBackup(ctx, KindManual)
	require.True(t, ok)

	// The restored file reads back a different row count than the catalog
	// recorded, so verification must fail and remove the target.
	f.manager.openInspector = func(path string) (database.Inspector, error) {
		return &stubInspector{counts: map[string]int64{"users": 1, "courses": 7}}, nil
	}

	target := filepath.Join(t.TempDir(), "restored.db")
	assert.False(t, f.manager.Restore(ctx, meta.ID, target))

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreWithEncryption(t *testing.T) {
	f := newManagerFixture(t)
	key := make([]byte, 32)
	f.manager.config.Encryption = EncryptionConfig{
		Enabled:      true,
		KeyRetriever: func() ([]byte, error) { return key, nil },
	}
	f.manager.encryption = NewEncryptionManager(&f.manager.config.Encryption)

	ctx := context.Background()
	meta, ok := f.manager.CreateBackup(ctx, KindManual)
	require.True(t, ok)
	assert.True(t, meta.Encrypted)

	target := filepath.Join(t.TempDir(), "restored.db")
	require.True(t, f.manager.Restore(ctx, meta.ID, target))

	original, err := os.ReadFile(f.dbPath)
	require.NoError(t, err)
	restored, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestRestoreEncryptedBackupWithoutKey(t *testing.T) {
	f := newManagerFixture(t)
	key := make([]byte, 32)
	f.manager.config.Encryption = EncryptionConfig{
		Enabled:      true,
		KeyRetriever: func() ([]byte, error) { return key, nil },
	}
	f.manager.encryption = NewEncryptionManager(&f.manager.config.Encryption)

	ctx := context.Background()
	meta, ok := f.manager.CreateBackup(ctx, KindManual)
	require.True(t, ok)
	require.True(t, meta.Encrypted)

	// An operator restoring on a host without the key must get a clean
	// failure, not ciphertext fed into the decompressor.
	f.manager.config.Encryption = EncryptionConfig{Enabled: false}
	f.manager.encryption = NewEncryptionManager(&f.manager.config.Encryption)

	target := filepath.Join(t.TempDir(), "restored.db")
	assert.False(t, f.manager.Restore(ctx, meta.ID, target))

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestVerifySkipsUnknownCounts(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	meta, ok := f.manager.CreateBackup(ctx, KindManual)
	require.True(t, ok)

	target := filepath.Join(t.TempDir(), "restored.db")
	require.True(t, f.manager.Restore(ctx, meta.ID, target))

	// Mark a count unknown in the catalog; verification must skip it even
	// though the inspector cannot count that table.
	catalog, err := f.manager.catalog.Load(ctx)
	require.NoError(t, err)
	entry, found := catalog.Find(meta.ID)
	require.True(t, found)
	entry.RecordCounts["grades"] = -1
	require.NoError(t, f.manager.catalog.Save(ctx, catalog))

	assert.True(t, f.manager.Verify(ctx, target, meta.ID))
}

func TestCleanupExpiredDeletesOldBackups(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	expired, ok := f.manager.CreateBackup(ctx, KindScheduled)
	require.True(t, ok)

	f.manager.now = func() time.Time { return f.now.Add(31 * 24 * time.Hour) }
	kept, ok := f.manager.CreateBackup(ctx, KindScheduled)
	require.True(t, ok)

	result := f.manager.CleanupExpired(ctx)
	assert.Equal(t, 2, result.Examined)
	assert.Equal(t, []string{expired.ID}, result.Deleted)
	assert.Empty(t, result.Failed)

	exists, err := f.store.Exists(ctx, "backups", expired.BlobKey())
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = f.store.Exists(ctx, "backups", kept.BlobKey())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCleanupFailureKeepsCatalogEntry(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	expired, ok := f.manager.CreateBackup(ctx, KindScheduled)
	require.True(t, ok)

	f.manager.now = func() time.Time { return f.now.Add(31 * 24 * time.Hour) }
	f.store.FailDelete = true

	result := f.manager.CleanupExpired(ctx)
	assert.Empty(t, result.Deleted)
	assert.Equal(t, []string{expired.ID}, result.Failed)

	// The entry stays cataloged for the next pass.
	catalog, err := f.manager.catalog.Load(ctx)
	require.NoError(t, err)
	_, found := catalog.Find(expired.ID)
	assert.True(t, found)
}

func TestHealthEmptyCatalog(t *testing.T) {
	f := newManagerFixture(t)

	status := f.manager.Health(context.Background())
	assert.Equal(t, HealthError, status.State)
	assert.Zero(t, status.TotalBackups)
}

func TestHealthCurrentBackup(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	meta, ok := f.manager.CreateBackup(ctx, KindScheduled)
	require.True(t, ok)

	f.manager.now = func() time.Time { return f.now.Add(2 * time.Hour) }
	status := f.manager.Health(ctx)
	assert.Equal(t, HealthHealthy, status.State)
	assert.Equal(t, meta.ID, status.LastBackupID)
	assert.InDelta(t, 2.0, status.HoursSinceLastBackup, 0.01)
	assert.Equal(t, 1, status.TotalBackups)
}

func TestHealthStaleBackup(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, ok := f.manager.CreateBackup(ctx, KindScheduled)
	require.True(t, ok)

	f.manager.now = func() time.Time { return f.now.Add(30 * time.Hour) }
	status := f.manager.Health(ctx)
	assert.Equal(t, HealthWarning, status.State)
}

func TestHealthUnreachableStore(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, ok := f.manager.CreateBackup(ctx, KindScheduled)
	require.True(t, ok)

	// The catalog falls back to its local cache, so only the storage probe
	// can surface an unreachable store.
	f.store.FailPut = true
	status := f.manager.Health(ctx)
	assert.Equal(t, HealthError, status.State)
	assert.Contains(t, status.Message, "unreachable")
}

func TestHealthDegradedWithoutStore(t *testing.T) {
	manager := NewManager(Config{}, "/nonexistent.db", t.TempDir(), nil, quietLogger(t))
	status := manager.Health(context.Background())
	assert.Equal(t, HealthError, status.State)
}

func TestMarkVerified(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	meta, ok := f.manager.CreateBackup(ctx, KindManual)
	require.True(t, ok)
	require.True(t, f.manager.MarkVerified(ctx, meta.ID))

	points := f.manager.ListRestorePoints(ctx, 7)
	require.Len(t, points, 1)
	assert.True(t, points[0].IsVerified)
}

func TestLatest(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, ok := f.manager.CreateBackup(ctx, KindScheduled)
	require.True(t, ok)

	f.manager.now = func() time.Time { return f.now.Add(time.Hour) }
	newest, ok := f.manager.CreateBackup(ctx, KindManual)
	require.True(t, ok)

	latest, found := f.manager.Latest(ctx)
	require.True(t, found)
	assert.Equal(t, newest.ID, latest.ID)
}
