package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashSchema_OrderIndependent(t *testing.T) {
	engine := NewEngine()

	defs := []TableDefinition{
		{Name: "users", Definition: "CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)"},
		{Name: "courses", Definition: "CREATE TABLE courses (id INTEGER PRIMARY KEY, title TEXT)"},
	}
	reversed := []TableDefinition{defs[1], defs[0]}

	assert.Equal(t, engine.HashSchema(defs), engine.HashSchema(reversed))
}

func TestHashSchema_DefinitionSensitive(t *testing.T) {
	engine := NewEngine()

	original := []TableDefinition{
		{Name: "users", Definition: "CREATE TABLE users (id INTEGER PRIMARY KEY)"},
	}
	altered := []TableDefinition{
		{Name: "users", Definition: "CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)"},
	}

	assert.NotEqual(t, engine.HashSchema(original), engine.HashSchema(altered))
}

func TestHashTable_Deterministic(t *testing.T) {
	engine := NewEngine()

	rows := []Row{
		{int64(1), "alice@example.com"},
		{int64(2), "bob@example.com"},
	}

	assert.Equal(t, engine.HashTable(rows), engine.HashTable(rows))
}

func TestHashTable_ContentSensitive(t *testing.T) {
	engine := NewEngine()

	rows := []Row{{int64(1), "alice@example.com"}}
	mutated := []Row{{int64(1), "mallory@example.com"}}

	assert.NotEqual(t, engine.HashTable(rows), engine.HashTable(mutated))
}

func TestHashTable_TypePrefixesPreventCollisions(t *testing.T) {
	engine := NewEngine()

	asInt := []Row{{int64(1)}}
	asString := []Row{{"1"}}

	assert.NotEqual(t, engine.HashTable(asInt), engine.HashTable(asString))
}

func TestHashTable_NullDistinctFromEmptyString(t *testing.T) {
	engine := NewEngine()

	withNull := []Row{{nil}}
	withEmpty := []Row{{""}}

	assert.NotEqual(t, engine.HashTable(withNull), engine.HashTable(withEmpty))
}

func TestHashTable_EmptyRowSet(t *testing.T) {
	engine := NewEngine()

	// An empty table still hashes to a stable value.
	assert.Equal(t, engine.HashTable(nil), engine.HashTable([]Row{}))
	assert.NotEmpty(t, engine.HashTable(nil))
	assert.NotEqual(t, ErrorChecksum, engine.HashTable(nil))
}

func TestHashBytes(t *testing.T) {
	data := []byte("coursetrack database contents")
	assert.Equal(t, HashBytes(data), HashBytes(data))
	assert.Len(t, HashBytes(data), 64)
	assert.NotEqual(t, HashBytes(data), HashBytes([]byte("other")))
}
