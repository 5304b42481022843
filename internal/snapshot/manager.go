package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dataguard/internal/checksum"
	"dataguard/internal/database"
	"dataguard/internal/logging"
)

// baseTables are always counted regardless of which tables the caller
// designates critical
var baseTables = []string{"users", "courses"}

// Manager captures snapshots of the live database and owns the persisted
// pre-deployment snapshot file. No other component reads or writes that file.
type Manager struct {
	engine   *checksum.Engine
	logger   *logging.Logger
	prePath  string
	tempPath string
}

// NewManager creates a snapshot manager persisting its pre-deployment
// snapshot under stateDir
func NewManager(stateDir string, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	prePath := filepath.Join(stateDir, "pre_deployment_snapshot.json")

	return &Manager{
		engine:   checksum.NewEngine(),
		logger:   logger,
		prePath:  prePath,
		tempPath: prePath + ".tmp",
	}
}

// PrePath returns the path of the persisted pre-deployment snapshot
func (m *Manager) PrePath() string {
	return m.prePath
}

// Capture builds a DataSnapshot from the live database. Row counts cover the
// base tables plus criticalTables; a table that does not exist yields count 0
// so the capture tolerates schema drift across versions. Content checksums
// are computed only for criticalTables to bound cost; a critical table that
// cannot be read records the error sentinel instead of failing the capture.
func (m *Manager) Capture(ctx context.Context, inspector database.Inspector, criticalTables []string) (*DataSnapshot, error) {
	snap := &DataSnapshot{
		Timestamp:      time.Now().UTC(),
		TableCounts:    make(map[string]int64),
		TableChecksums: make(map[string]string),
	}

	for _, table := range countTables(criticalTables) {
		exists, err := inspector.TableExists(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !exists {
			snap.TableCounts[table] = 0
			continue
		}

		count, err := inspector.RowCount(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to count table %s: %w", table, err)
		}
		snap.TableCounts[table] = count
	}

	definitions, err := inspector.TableDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read table definitions: %w", err)
	}
	snap.SchemaHash = m.engine.HashSchema(definitions)

	for _, table := range criticalTables {
		exists, err := inspector.TableExists(ctx, table)
		if err != nil || !exists {
			continue
		}

		rows, err := inspector.RowsInKeyOrder(ctx, table)
		if err != nil {
			m.logger.Warnf("Cannot read table %s for checksum: %v", table, err)
			snap.TableChecksums[table] = checksum.ErrorChecksum
			continue
		}
		snap.TableChecksums[table] = m.engine.HashTable(rows)
	}

	return snap, nil
}

// PersistPre writes the snapshot as the pre-deployment baseline, atomically
// replacing any prior one. It fails closed: false on any I/O error, so the
// caller decides whether to block deployment.
func (m *Manager) PersistPre(snap *DataSnapshot) bool {
	if snap == nil {
		m.logger.Error("Cannot persist nil snapshot")
		return false
	}

	data, err := snap.ToJSON()
	if err != nil {
		m.logger.Errorf("Failed to serialize snapshot: %v", err)
		return false
	}

	if err := os.MkdirAll(filepath.Dir(m.prePath), 0755); err != nil {
		m.logger.Errorf("Failed to create snapshot directory: %v", err)
		return false
	}

	// Temp file plus rename so a crash mid-write never corrupts the baseline.
	if err := os.WriteFile(m.tempPath, data, 0644); err != nil {
		m.logger.Errorf("Failed to write snapshot: %v", err)
		return false
	}
	if err := os.Rename(m.tempPath, m.prePath); err != nil {
		m.logger.Errorf("Failed to replace snapshot: %v", err)
		os.Remove(m.tempPath)
		return false
	}

	m.logger.WithFields(map[string]interface{}{
		"path":        m.prePath,
		"schema_hash": snap.SchemaHash,
		"tables":      len(snap.TableCounts),
	}).Info("Pre-deployment snapshot persisted")

	return true
}

// LoadPre loads the persisted pre-deployment snapshot. It returns
// (nil, false) when no baseline exists, which callers must treat as
// "first-ever run", distinct from a comparison failure. Unreadable or
// corrupt baselines also yield (nil, false) with the cause logged.
func (m *Manager) LoadPre() (*DataSnapshot, bool) {
	data, err := os.ReadFile(m.prePath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Errorf("Failed to read pre-deployment snapshot: %v", err)
		}
		return nil, false
	}

	var snap DataSnapshot
	if err := snap.FromJSON(data); err != nil {
		m.logger.Errorf("Pre-deployment snapshot is corrupt: %v", err)
		return nil, false
	}

	return &snap, true
}

// countTables merges the base tables with the critical tables, without
// duplicates, preserving order
func countTables(criticalTables []string) []string {
	seen := make(map[string]bool, len(baseTables)+len(criticalTables))
	var tables []string

	for _, table := range baseTables {
		if !seen[table] {
			seen[table] = true
			tables = append(tables, table)
		}
	}
	for _, table := range criticalTables {
		if !seen[table] {
			seen[table] = true
			tables = append(tables, table)
		}
	}

	return tables
}
