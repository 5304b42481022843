package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"dataguard/internal/checksum"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Inspector defines the read interface this engine consumes from the
// application database: row counts, rows in primary-key order for checksum
// computation, and table definitions for schema hashing. It never writes to
// the live database.
type Inspector interface {
	TableExists(ctx context.Context, table string) (bool, error)
	RowCount(ctx context.Context, table string) (int64, error)
	RowsInKeyOrder(ctx context.Context, table string) ([]checksum.Row, error)
	TableNames(ctx context.Context) ([]string, error)
	TableDefinitions(ctx context.Context) ([]checksum.TableDefinition, error)
	SelfTest(ctx context.Context) error
	Close() error
}

// SQLiteInspector implements Inspector against a SQLite database file
type SQLiteInspector struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
}

// NewInspector opens a SQLite database file for inspection.
// path can be a file path or ":memory:" for an in-memory database in tests.
func NewInspector(path string) (*SQLiteInspector, error) {
	return NewInspectorWithTimeout(path, 30*time.Second)
}

// NewInspectorWithTimeout opens a SQLite database file with a custom per-query timeout
func NewInspectorWithTimeout(path string, timeout time.Duration) (*SQLiteInspector, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// SQLite handles a single writer; a single connection keeps the
	// inspector's reads serialized.
	db.SetMaxOpenConns(1)

	return &SQLiteInspector{
		db:           db,
		path:         path,
		queryTimeout: timeout,
	}, nil
}

// NewInspectorFromDB wraps an existing database connection.
// The caller remains responsible for closing the underlying connection.
func NewInspectorFromDB(db *sql.DB) *SQLiteInspector {
	return &SQLiteInspector{
		db:           db,
		queryTimeout: 30 * time.Second,
	}
}

// DB exposes the underlying connection for test setup
func (si *SQLiteInspector) DB() *sql.DB {
	return si.db
}

// Path returns the database file path
func (si *SQLiteInspector) Path() string {
	return si.path
}

// Close closes the underlying database connection
func (si *SQLiteInspector) Close() error {
	return si.db.Close()
}

// TableExists reports whether a table is present in the database
func (si *SQLiteInspector) TableExists(ctx context.Context, table string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, si.queryTimeout)
	defer cancel()

	var count int
	err := si.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}

	return count > 0, nil
}

// RowCount returns the number of rows in a table
func (si *SQLiteInspector) RowCount(ctx context.Context, table string) (int64, error) {
	if err := validateTableName(table); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, si.queryTimeout)
	defer cancel()

	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)
	if err := si.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}

	return count, nil
}

// RowsInKeyOrder returns all rows of a table ordered by primary key
// ascending, with column values in declaration order. Tables without an
// explicit primary key are ordered by rowid.
func (si *SQLiteInspector) RowsInKeyOrder(ctx context.Context, table string) ([]checksum.Row, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}

	columns, keyColumns, err := si.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table)
	}

	orderBy := "rowid"
	if len(keyColumns) > 0 {
		orderBy = strings.Join(keyColumns, ", ")
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = fmt.Sprintf("%q", col)
	}

	ctx, cancel := context.WithTimeout(ctx, si.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM "%s" ORDER BY %s`, strings.Join(quoted, ", "), table, orderBy)
	rows, err := si.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from %s: %w", table, err)
	}
	defer rows.Close()

	var result []checksum.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", table, err)
		}

		result = append(result, checksum.Row(values))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows of %s: %w", table, err)
	}

	return result, nil
}

// TableNames returns the names of all non-system tables, sorted
func (si *SQLiteInspector) TableNames(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, si.queryTimeout)
	defer cancel()

	rows, err := si.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query table names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// TableDefinitions returns (name, definition) pairs for all non-system
// tables from the system catalog, for schema hashing
func (si *SQLiteInspector) TableDefinitions(ctx context.Context) ([]checksum.TableDefinition, error) {
	ctx, cancel := context.WithTimeout(ctx, si.queryTimeout)
	defer cancel()

	rows, err := si.db.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query table definitions: %w", err)
	}
	defer rows.Close()

	var definitions []checksum.TableDefinition
	for rows.Next() {
		var name string
		var definition sql.NullString
		if err := rows.Scan(&name, &definition); err != nil {
			return nil, fmt.Errorf("failed to scan table definition: %w", err)
		}
		definitions = append(definitions, checksum.TableDefinition{
			Name:       name,
			Definition: definition.String,
		})
	}

	return definitions, rows.Err()
}

// SelfTest verifies that the database accepts a transaction and honors
// rollback. It writes only to a temporary table, which never touches the
// main database file.
func (si *SQLiteInspector) SelfTest(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, si.queryTimeout)
	defer cancel()

	tx, err := si.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("self-test failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE _dataguard_selftest (id INTEGER PRIMARY KEY, marker TEXT)`); err != nil {
		tx.Rollback()
		return fmt.Errorf("self-test failed to create temp table: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO _dataguard_selftest (marker) VALUES ('ok')`); err != nil {
		tx.Rollback()
		return fmt.Errorf("self-test failed to insert: %w", err)
	}

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM _dataguard_selftest`).Scan(&count); err != nil {
		tx.Rollback()
		return fmt.Errorf("self-test failed to read back: %w", err)
	}
	if count != 1 {
		tx.Rollback()
		return fmt.Errorf("self-test read back %d rows, expected 1", count)
	}

	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("self-test rollback failed: %w", err)
	}

	return nil
}

// tableColumns returns the column names in declaration order and the
// primary-key columns in key order
func (si *SQLiteInspector) tableColumns(ctx context.Context, table string) ([]string, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, si.queryTimeout)
	defer cancel()

	rows, err := si.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	type columnInfo struct {
		name    string
		pkIndex int
	}

	var columns []string
	var keys []columnInfo

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull int
		var dflt sql.NullString
		var pk int

		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, nil, fmt.Errorf("failed to scan column info of %s: %w", table, err)
		}

		columns = append(columns, name)
		if pk > 0 {
			keys = append(keys, columnInfo{name: name, pkIndex: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	// pkIndex is 1-based position within a composite key
	keyColumns := make([]string, 0, len(keys))
	for i := 1; i <= len(keys); i++ {
		for _, key := range keys {
			if key.pkIndex == i {
				keyColumns = append(keyColumns, fmt.Sprintf("%q", key.name))
			}
		}
	}

	return columns, keyColumns, nil
}

// validateTableName rejects names that cannot safely be interpolated into a
// quoted identifier
func validateTableName(table string) error {
	if table == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if strings.ContainsAny(table, `"';`) {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}
