package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"dataguard/internal/logging"
	"dataguard/internal/storage"
)

// CatalogKey is the fixed object store key for the catalog document
const CatalogKey = "catalog.json"

// Catalog is the single JSON document recording every live backup. It is
// owned exclusively by the Manager; nothing else reads or writes it.
type Catalog struct {
	UpdatedAt time.Time  `json:"updated_at"`
	Entries   []Metadata `json:"entries"`
}

// Append adds an entry to the catalog
func (c *Catalog) Append(m Metadata) {
	c.Entries = append(c.Entries, m)
}

// Remove deletes the entry with the given ID, reporting whether it existed
func (c *Catalog) Remove(id string) bool {
	for i, entry := range c.Entries {
		if entry.ID == id {
			c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the entry with the given ID
func (c *Catalog) Find(id string) (*Metadata, bool) {
	for i := range c.Entries {
		if c.Entries[i].ID == id {
			return &c.Entries[i], true
		}
	}
	return nil, false
}

// Latest returns the most recent entry by timestamp
func (c *Catalog) Latest() (*Metadata, bool) {
	if len(c.Entries) == 0 {
		return nil, false
	}

	latest := &c.Entries[0]
	for i := range c.Entries {
		if c.Entries[i].Timestamp.After(latest.Timestamp) {
			latest = &c.Entries[i]
		}
	}
	return latest, true
}

// SortedNewestFirst returns a copy of the entries ordered newest first
func (c *Catalog) SortedNewestFirst() []Metadata {
	entries := make([]Metadata, len(c.Entries))
	copy(entries, c.Entries)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries
}

// CatalogStore persists the catalog locally and mirrors it to the object
// store. The remote copy is the source of truth on read; the local file is a
// fallback cache for when the store is unreachable.
type CatalogStore struct {
	localPath string
	store     storage.ObjectStore
	container string
	logger    *logging.Logger
}

// NewCatalogStore creates a catalog store rooted at stateDir
func NewCatalogStore(stateDir string, store storage.ObjectStore, container string, logger *logging.Logger) *CatalogStore {
	return &CatalogStore{
		localPath: filepath.Join(stateDir, CatalogKey),
		store:     store,
		container: container,
		logger:    logger,
	}
}

// Load reads the catalog, preferring the remote copy. A missing or corrupt
// remote copy falls back to the local cache; the next Save rewrites the
// remote document. A missing catalog on both sides yields an empty catalog,
// not an error.
func (cs *CatalogStore) Load(ctx context.Context) (*Catalog, error) {
	if cs.store != nil {
		data, err := cs.store.Get(ctx, cs.container, CatalogKey)
		if err == nil {
			catalog, parseErr := parseCatalog(data)
			if parseErr == nil {
				return cs.pruneInvalid(catalog), nil
			}
			cs.logger.WithField("error", parseErr.Error()).Warn("Remote catalog is corrupt, falling back to local copy")
		} else {
			cs.logger.WithField("error", err.Error()).Debug("Remote catalog unavailable, falling back to local copy")
		}
	}

	data, err := os.ReadFile(cs.localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{}, nil
		}
		return nil, NewCatalogError("failed to read local catalog", err)
	}

	catalog, err := parseCatalog(data)
	if err != nil {
		return nil, NewCatalogError("local catalog is corrupt", err)
	}
	return cs.pruneInvalid(catalog), nil
}

// pruneInvalid drops structurally invalid entries so one damaged record
// never poisons every operation that reads the catalog. The drop becomes
// permanent on the next Save.
func (cs *CatalogStore) pruneInvalid(catalog *Catalog) *Catalog {
	kept := catalog.Entries[:0]
	for i := range catalog.Entries {
		if err := catalog.Entries[i].Validate(); err != nil {
			cs.logger.WithFields(map[string]interface{}{
				"backup_id": catalog.Entries[i].ID,
				"error":     err.Error(),
			}).Warn("Dropping invalid catalog entry")
			continue
		}
		kept = append(kept, catalog.Entries[i])
	}
	catalog.Entries = kept
	return catalog
}

// Save writes the catalog locally first, then mirrors it to the object
// store. The local write uses a temp file and rename so a crash never leaves
// a truncated catalog.
func (cs *CatalogStore) Save(ctx context.Context, catalog *Catalog) error {
	catalog.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return NewCatalogError("failed to serialize catalog", err)
	}

	if err := os.MkdirAll(filepath.Dir(cs.localPath), 0755); err != nil {
		return NewCatalogError("failed to create catalog directory", err)
	}

	tempPath := cs.localPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return NewCatalogError("failed to write catalog temp file", err)
	}
	if err := os.Rename(tempPath, cs.localPath); err != nil {
		os.Remove(tempPath)
		return NewCatalogError("failed to replace local catalog", err)
	}

	if cs.store != nil {
		if err := cs.store.Put(ctx, cs.container, CatalogKey, data); err != nil {
			return NewCatalogError("failed to mirror catalog to object store", err)
		}
	}

	return nil
}

// LocalPath returns the path of the local catalog cache
func (cs *CatalogStore) LocalPath() string {
	return cs.localPath
}

func parseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}
