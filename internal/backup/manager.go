package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"dataguard/internal/checksum"
	"dataguard/internal/database"
	"dataguard/internal/logging"
	"dataguard/internal/storage"
)

// Manager owns the backup lifecycle: create, list, restore, verify, clean
// up, and report health. All mutating operations are serialized by an
// internal mutex so concurrent callers can never interleave a restore with a
// cleanup.
//
// When no object store is configured the manager runs degraded: every
// operation logs once and returns its failure value without touching the
// network. The host application keeps working without backups.
type Manager struct {
	mu sync.Mutex

	config      Config
	dbPath      string
	store       storage.ObjectStore
	catalog     *CatalogStore
	compression *CompressionManager
	encryption  *EncryptionManager
	logger      *logging.Logger

	degradedOnce sync.Once

	// Injection points for tests
	now           func() time.Time
	openInspector func(path string) (database.Inspector, error)
}

// NewManager creates a backup manager. store may be nil, which puts the
// manager in degraded no-op mode.
func NewManager(config Config, dbPath, stateDir string, store storage.ObjectStore, logger *logging.Logger) *Manager {
	config.SetDefaults()

	m := &Manager{
		config:      config,
		dbPath:      dbPath,
		store:       store,
		catalog:     NewCatalogStore(stateDir, store, config.Container, logger),
		compression: NewCompressionManager(),
		logger:      logger,
		now:         time.Now,
		openInspector: func(path string) (database.Inspector, error) {
			return database.NewInspector(path)
		},
	}
	m.encryption = NewEncryptionManager(&m.config.Encryption)
	return m
}

// Degraded reports whether the manager has no object store configured
func (m *Manager) Degraded() bool {
	return m.store == nil
}

func (m *Manager) noteDegraded() {
	m.degradedOnce.Do(func() {
		m.logger.Warn("No backup storage configured, backup operations are disabled")
	})
}

// CreateBackup reads the database file, compresses and optionally encrypts
// it, uploads the payload, and appends a catalog entry. The catalog is only
// written after the blob upload succeeds, so a partial failure can orphan a
// blob but never catalog a missing one.
//
// Returns (nil, false) on any failure; the cause is logged, never panicked.
func (m *Manager) CreateBackup(ctx context.Context, kind Kind) (*Metadata, bool) {
	return m.CreateBackupWithOptions(ctx, kind, "", "")
}

// CreateBackupWithOptions creates a backup with an operator-supplied
// description and creator tag
func (m *Manager) CreateBackupWithOptions(ctx context.Context, kind Kind, description, createdBy string) (*Metadata, bool) {
	if m.Degraded() {
		m.noteDegraded()
		return nil, false
	}
	if !kind.Valid() {
		m.logger.WithField("kind", string(kind)).Error("Unknown backup kind")
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.now()
	backupID := fmt.Sprintf("backup_%s_%s", start.UTC().Format("20060102_150405"), uuid.New().String()[:8])

	raw, err := os.ReadFile(m.dbPath)
	if err != nil {
		m.logFailedBackup(backupID, kind, 0, start,
			NewDatabaseError("failed to read database file", err))
		return nil, false
	}

	recordCounts := m.collectRecordCounts(ctx)

	algorithm := CompressionTypeNone
	level := 0
	if m.config.Compression.Enabled {
		algorithm = m.config.Compression.Algorithm
		level = m.config.Compression.Level
	}

	payload, stats, err := m.compression.Compress(raw, algorithm, level)
	if err != nil {
		m.logFailedBackup(backupID, kind, int64(len(raw)), start, err)
		return nil, false
	}

	encrypted := false
	if m.encryption.IsEnabled() {
		payload, _, err = m.encryption.Encrypt(payload)
		if err != nil {
			m.logFailedBackup(backupID, kind, int64(len(raw)), start, err)
			return nil, false
		}
		encrypted = true
	}

	meta := Metadata{
		ID:                backupID,
		Timestamp:         start.UTC(),
		Kind:              kind,
		DatabaseSizeBytes: int64(len(raw)),
		CompressedSize:    stats.CompressedSize,
		CompressionType:   algorithm,
		CompressionRatio:  stats.CompressionRatio,
		Encrypted:         encrypted,
		Checksum:          checksum.HashBytes(raw),
		RecordCounts:      recordCounts,
		RetentionDate:     start.UTC().Add(m.config.Retention.MaxAge(kind)),
		CreatedBy:         createdBy,
		Description:       description,
	}
	meta.Location = fmt.Sprintf("%s/%s", m.config.Container, meta.BlobKey())

	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	if err := m.store.EnsureContainer(opCtx, m.config.Container); err != nil {
		m.logFailedBackup(backupID, kind, meta.DatabaseSizeBytes, start,
			NewStorageError("failed to ensure backup container", err).WithContext("container", m.config.Container))
		return nil, false
	}

	if err := m.store.Put(opCtx, m.config.Container, meta.BlobKey(), payload); err != nil {
		m.logFailedBackup(backupID, kind, meta.DatabaseSizeBytes, start,
			NewStorageError("failed to upload backup payload", err).WithContext("blob_key", meta.BlobKey()))
		return nil, false
	}

	catalog, err := m.catalog.Load(opCtx)
	if err != nil {
		m.logFailedBackup(backupID, kind, meta.DatabaseSizeBytes, start, err)
		return nil, false
	}

	catalog.Append(meta)
	if err := m.catalog.Save(opCtx, catalog); err != nil {
		// The blob is uploaded but uncataloged. Leave it for a manual
		// audit rather than risking a delete of a good payload.
		m.logFailedBackup(backupID, kind, meta.DatabaseSizeBytes, start, err)
		return nil, false
	}

	m.logger.LogBackupOperation(backupID, string(kind), meta.DatabaseSizeBytes, m.now().Sub(start), nil)
	return &meta, true
}

// logFailedBackup logs a failed backup together with its retry
// classification, so operators can tell from the log alone whether the next
// scheduled run can recover on its own.
func (m *Manager) logFailedBackup(backupID string, kind Kind, size int64, start time.Time, err error) {
	m.logger.LogBackupOperation(backupID, string(kind), size, m.now().Sub(start), err)

	switch {
	case IsRetryable(err):
		m.logger.WithField("backup_id", backupID).Warn("Failure is transient, the next scheduled backup may succeed")
	case IsPermanent(err):
		m.logger.WithField("backup_id", backupID).Error("Failure is permanent, operator attention required")
	}
}

// collectRecordCounts reads per-table row counts from the live database. A
// table that cannot be counted is recorded as -1 so verification knows to
// skip it.
func (m *Manager) collectRecordCounts(ctx context.Context) map[string]int64 {
	counts := make(map[string]int64)

	inspector, err := m.openInspector(m.dbPath)
	if err != nil {
		m.logger.WithField("error", err.Error()).Warn("Cannot inspect database for record counts")
		return counts
	}
	defer inspector.Close()

	tables, err := inspector.TableNames(ctx)
	if err != nil {
		m.logger.WithField("error", err.Error()).Warn("Cannot list tables for record counts")
		return counts
	}

	for _, table := range tables {
		count, err := inspector.RowCount(ctx, table)
		if err != nil {
			m.logger.WithFields(map[string]interface{}{
				"table": table,
				"error": err.Error(),
			}).Warn("Cannot count table rows, recording as unknown")
			counts[table] = -1
			continue
		}
		counts[table] = count
	}

	return counts
}

// ListRestorePoints returns catalog entries from the last daysBack days,
// newest first. A nil slice means the catalog could not be read.
func (m *Manager) ListRestorePoints(ctx context.Context, daysBack int) []RestorePoint {
	if m.Degraded() {
		m.noteDegraded()
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	catalog, err := m.catalog.Load(opCtx)
	if err != nil {
		m.logger.WithField("error", err.Error()).Error("Cannot load backup catalog")
		return nil
	}

	cutoff := m.now().UTC().AddDate(0, 0, -daysBack)

	points := make([]RestorePoint, 0)
	for _, entry := range catalog.SortedNewestFirst() {
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		points = append(points, restorePointFromMetadata(entry))
	}

	return points
}

func restorePointFromMetadata(entry Metadata) RestorePoint {
	tables := make([]string, 0, len(entry.RecordCounts))
	for table := range entry.RecordCounts {
		tables = append(tables, table)
	}

	return RestorePoint{
		BackupID:    entry.ID,
		Timestamp:   entry.Timestamp,
		Kind:        entry.Kind,
		Description: entry.Description,
		SizeMB:      float64(entry.DatabaseSizeBytes) / (1024 * 1024),
		Tables:      tables,
		IsVerified:  entry.Verified,
	}
}

// Latest returns the newest catalog entry
func (m *Manager) Latest(ctx context.Context) (*Metadata, bool) {
	if m.Degraded() {
		m.noteDegraded()
		return nil, false
	}

	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	catalog, err := m.catalog.Load(opCtx)
	if err != nil {
		m.logger.WithField("error", err.Error()).Error("Cannot load backup catalog")
		return nil, false
	}

	return catalog.Latest()
}

// Restore downloads a backup, decrypts and decompresses it, writes it to
// targetPath, and verifies the result. On verification failure the target
// file is deleted so a corrupt restore can never be mistaken for a good one.
//
// targetPath must never be the live database path; the caller swaps files
// after verification.
func (m *Manager) Restore(ctx context.Context, backupID, targetPath string) bool {
	if m.Degraded() {
		m.noteDegraded()
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.now()

	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	catalog, err := m.catalog.Load(opCtx)
	if err != nil {
		m.logger.LogRestoreOperation(backupID, targetPath, m.now().Sub(start), err)
		return false
	}

	entry, found := catalog.Find(backupID)
	if !found {
		m.logger.LogRestoreOperation(backupID, targetPath, m.now().Sub(start),
			NewNotFoundError(fmt.Sprintf("backup %s not in catalog", backupID), nil))
		return false
	}

	payload, err := m.store.Get(opCtx, m.config.Container, entry.BlobKey())
	if err != nil {
		m.logger.LogRestoreOperation(backupID, targetPath, m.now().Sub(start),
			NewStorageError("failed to download backup payload", err))
		return false
	}

	if entry.Encrypted {
		// Without a key Decrypt would pass the ciphertext through and the
		// failure would surface later as a baffling decompression error.
		if !m.encryption.IsEnabled() {
			m.logger.LogRestoreOperation(backupID, targetPath, m.now().Sub(start),
				NewConfigurationError("backup is encrypted but no encryption key is configured", nil).
					WithContext("backup_id", backupID))
			return false
		}
		payload, err = m.encryption.Decrypt(payload)
		if err != nil {
			m.logger.LogRestoreOperation(backupID, targetPath, m.now().Sub(start), err)
			return false
		}
	}

	raw, err := m.compression.Decompress(payload, entry.CompressionType)
	if err != nil {
		m.logger.LogRestoreOperation(backupID, targetPath, m.now().Sub(start), err)
		return false
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		m.logger.LogRestoreOperation(backupID, targetPath, m.now().Sub(start),
			NewStorageError("failed to create restore directory", err))
		return false
	}

	if err := os.WriteFile(targetPath, raw, 0644); err != nil {
		m.logger.LogRestoreOperation(backupID, targetPath, m.now().Sub(start),
			NewStorageError("failed to write restored database", err))
		return false
	}

	if !m.verifyAgainstEntry(opCtx, targetPath, entry) {
		os.Remove(targetPath)
		m.logger.LogRestoreOperation(backupID, targetPath, m.now().Sub(start),
			NewCorruptionError("restored database failed verification", nil))
		return false
	}

	m.logger.LogRestoreOperation(backupID, targetPath, m.now().Sub(start), nil)
	return true
}

// Verify checks a restored database file against its catalog entry: exact
// file size, checksum, and per-table row counts. Counts recorded as -1 at
// backup time are skipped.
func (m *Manager) Verify(ctx context.Context, path, backupID string) bool {
	if m.Degraded() {
		m.noteDegraded()
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	catalog, err := m.catalog.Load(opCtx)
	if err != nil {
		m.logger.WithField("error", err.Error()).Error("Cannot load backup catalog")
		return false
	}

	entry, found := catalog.Find(backupID)
	if !found {
		m.logger.WithField("backup_id", backupID).Error("Backup not in catalog")
		return false
	}

	return m.verifyAgainstEntry(opCtx, path, entry)
}

func (m *Manager) verifyAgainstEntry(ctx context.Context, path string, entry *Metadata) bool {
	info, err := os.Stat(path)
	if err != nil {
		m.logger.WithFields(map[string]interface{}{
			"backup_id": entry.ID,
			"error":     err.Error(),
		}).Error("Cannot stat restored database")
		return false
	}

	if info.Size() != entry.DatabaseSizeBytes {
		m.logger.WithFields(map[string]interface{}{
			"backup_id":     entry.ID,
			"expected_size": entry.DatabaseSizeBytes,
			"actual_size":   info.Size(),
		}).Error("Restored database size mismatch")
		return false
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		m.logger.WithField("error", err.Error()).Error("Cannot read restored database")
		return false
	}
	if got := checksum.HashBytes(raw); got != entry.Checksum {
		m.logger.WithFields(map[string]interface{}{
			"backup_id": entry.ID,
			"expected":  entry.Checksum,
			"actual":    got,
		}).Error("Restored database checksum mismatch")
		return false
	}

	inspector, err := m.openInspector(path)
	if err != nil {
		m.logger.WithField("error", err.Error()).Error("Cannot inspect restored database")
		return false
	}
	defer inspector.Close()

	for table, expected := range entry.RecordCounts {
		if expected == -1 {
			continue
		}
		actual, err := inspector.RowCount(ctx, table)
		if err != nil {
			m.logger.WithFields(map[string]interface{}{
				"backup_id": entry.ID,
				"table":     table,
				"error":     err.Error(),
			}).Error("Cannot count restored table rows")
			return false
		}
		if actual != expected {
			m.logger.WithFields(map[string]interface{}{
				"backup_id": entry.ID,
				"table":     table,
				"expected":  expected,
				"actual":    actual,
			}).Error("Restored table row count mismatch")
			return false
		}
	}

	return true
}

// MarkVerified records a successful verification in the catalog
func (m *Manager) MarkVerified(ctx context.Context, backupID string) bool {
	if m.Degraded() {
		m.noteDegraded()
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	catalog, err := m.catalog.Load(opCtx)
	if err != nil {
		return false
	}

	entry, found := catalog.Find(backupID)
	if !found {
		return false
	}
	entry.Verified = true

	return m.catalog.Save(opCtx, catalog) == nil
}

// CleanupExpired deletes every backup whose retention date has passed. One
// entry's failure never aborts the rest; failed entries stay cataloged for
// the next pass.
func (m *Manager) CleanupExpired(ctx context.Context) CleanupResult {
	result := CleanupResult{Deleted: []string{}, Failed: []string{}}

	if m.Degraded() {
		m.noteDegraded()
		return result
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	catalog, err := m.catalog.Load(opCtx)
	if err != nil {
		m.logger.WithField("error", err.Error()).Error("Cannot load backup catalog for cleanup")
		return result
	}

	now := m.now().UTC()
	result.Examined = len(catalog.Entries)

	for _, entry := range catalog.SortedNewestFirst() {
		if !entry.Expired(now) {
			continue
		}

		if err := m.store.Delete(opCtx, m.config.Container, entry.BlobKey()); err != nil {
			m.logger.WithFields(map[string]interface{}{
				"backup_id": entry.ID,
				"error":     err.Error(),
			}).Warn("Failed to delete expired backup blob, keeping catalog entry")
			result.Failed = append(result.Failed, entry.ID)
			continue
		}

		catalog.Remove(entry.ID)
		result.Deleted = append(result.Deleted, entry.ID)
		m.logger.WithFields(map[string]interface{}{
			"backup_id":      entry.ID,
			"retention_date": entry.RetentionDate.Format(time.RFC3339),
		}).Info("Deleted expired backup")
	}

	if len(result.Deleted) > 0 {
		if err := m.catalog.Save(opCtx, catalog); err != nil {
			m.logger.WithField("error", err.Error()).Error("Failed to persist catalog after cleanup")
		}
	}

	return result
}

// Health reports backup currency: ERROR with an empty catalog, WARNING when
// the newest backup is older than the staleness threshold, HEALTHY otherwise.
func (m *Manager) Health(ctx context.Context) HealthStatus {
	if m.Degraded() {
		m.noteDegraded()
		return HealthStatus{
			State:   HealthError,
			Message: "no backup storage configured",
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	// Probe the store directly. The catalog read below falls back to the
	// local cache, so it alone cannot tell an unreachable store from a
	// healthy one.
	if err := storage.HealthCheck(opCtx, m.store, m.config.Container); err != nil {
		return HealthStatus{
			State:   HealthError,
			Message: fmt.Sprintf("backup storage unreachable: %v", err),
		}
	}

	catalog, err := m.catalog.Load(opCtx)
	if err != nil {
		return HealthStatus{
			State:   HealthError,
			Message: fmt.Sprintf("cannot load backup catalog: %v", err),
		}
	}

	latest, found := catalog.Latest()
	if !found {
		return HealthStatus{
			State:        HealthError,
			Message:      "no backups exist",
			TotalBackups: 0,
		}
	}

	age := m.now().UTC().Sub(latest.Timestamp)
	status := HealthStatus{
		LastBackupID:         latest.ID,
		LastBackupAt:         latest.Timestamp,
		HoursSinceLastBackup: age.Hours(),
		TotalBackups:         len(catalog.Entries),
	}

	if age > m.config.Retention.StalenessThreshold {
		status.State = HealthWarning
		status.Message = fmt.Sprintf("newest backup is %.1f hours old", age.Hours())
	} else {
		status.State = HealthHealthy
		status.Message = "backups are current"
	}

	return status
}
