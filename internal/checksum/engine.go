package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ErrorChecksum is the sentinel recorded when a table cannot be read.
// Comparisons must treat it as unknown and skip the table.
const ErrorChecksum = "ERROR"

// TableDefinition pairs a table name with its DDL text from the system catalog
type TableDefinition struct {
	Name       string
	Definition string
}

// Row is one table row as an ordered list of column values.
// Column order must be stable across captures of the same table.
type Row []interface{}

// Engine computes deterministic content hashes for schema definitions
// and table row sets
type Engine struct{}

// NewEngine creates a new checksum engine
func NewEngine() *Engine {
	return &Engine{}
}

// HashSchema computes a content hash over a set of table definitions.
// The result is independent of the input order: definitions are sorted by
// table name before hashing, so two captures of an unchanged schema always
// produce the same hash.
func (e *Engine) HashSchema(definitions []TableDefinition) string {
	sorted := make([]TableDefinition, len(definitions))
	copy(sorted, definitions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var builder strings.Builder
	for _, def := range sorted {
		builder.WriteString(def.Name)
		builder.WriteString(":")
		builder.WriteString(def.Definition)
		builder.WriteString("\n")
	}

	return hashString(builder.String())
}

// HashTable computes a content hash over a table's rows. Rows must be
// supplied pre-sorted by primary key ascending; the hash covers each row's
// values in column order, so the result depends only on table content and
// never on storage engine internals.
func (e *Engine) HashTable(rows []Row) string {
	var builder strings.Builder
	for _, row := range rows {
		builder.WriteString(serializeRow(row))
		builder.WriteString("\n")
	}

	return hashString(builder.String())
}

// HashBytes computes a hex-encoded SHA-256 checksum of arbitrary data
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// serializeRow renders a row as a stable field-separated string
func serializeRow(row Row) string {
	fields := make([]string, len(row))
	for i, value := range row {
		fields[i] = serializeValue(value)
	}
	return strings.Join(fields, "|")
}

// serializeValue renders a single column value deterministically.
// NULL, text, integer, float and blob values each get a distinct prefix so
// that e.g. the string "1" and the integer 1 never collide.
func serializeValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "N:"
	case []byte:
		return "B:" + hex.EncodeToString(v)
	case string:
		return "S:" + v
	case int64:
		return "I:" + fmt.Sprintf("%d", v)
	case float64:
		return "F:" + fmt.Sprintf("%g", v)
	case bool:
		return "I:" + map[bool]string{false: "0", true: "1"}[v]
	default:
		return "S:" + fmt.Sprintf("%v", v)
	}
}

func hashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
