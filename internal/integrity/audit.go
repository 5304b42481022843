package integrity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AuditRecord is one line of the integrity audit log: the full report plus
// the table counts on both sides of the comparison.
type AuditRecord struct {
	*Report
	CountsBefore map[string]int64 `json:"counts_before,omitempty"`
	CountsAfter  map[string]int64 `json:"counts_after,omitempty"`
}

// AuditLog is an append-only JSONL file of integrity check outcomes. The
// file is never rewritten, only appended, so it stays a trustworthy history
// even after an incident.
type AuditLog struct {
	mu   sync.Mutex
	path string
}

// NewAuditLog creates an audit log backed by the given file path
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Append writes one record as a single JSON line
func (a *AuditLog) Append(record AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize audit record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	return nil
}

// Path returns the audit log file path
func (a *AuditLog) Path() string {
	return a.path
}
