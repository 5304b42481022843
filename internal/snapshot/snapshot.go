package snapshot

import (
	"encoding/json"
	"time"
)

// DataSnapshot is a point-in-time fingerprint of the application database:
// row counts, a schema hash, and per-table content checksums for the
// designated critical tables. Two snapshots of an unchanged database produce
// identical SchemaHash and identical TableChecksums for unchanged tables.
type DataSnapshot struct {
	Timestamp      time.Time         `json:"timestamp"`
	TableCounts    map[string]int64  `json:"table_counts"`
	SchemaHash     string            `json:"schema_hash"`
	TableChecksums map[string]string `json:"table_checksums"`
}

// Count returns the recorded row count for a table, or 0 if the table was
// not captured
func (s *DataSnapshot) Count(table string) int64 {
	return s.TableCounts[table]
}

// ToJSON serializes the snapshot
func (s *DataSnapshot) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON deserializes JSON data into the snapshot
func (s *DataSnapshot) FromJSON(data []byte) error {
	return json.Unmarshal(data, s)
}
