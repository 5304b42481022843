package backup

import (
	"fmt"
	"time"
)

// Kind classifies why a backup was taken. Retention depends on it.
type Kind string

const (
	KindScheduled     Kind = "scheduled"
	KindManual        Kind = "manual"
	KindPreDeployment Kind = "pre_deployment"
)

// Retention periods by backup kind. Scheduled backups are routine and churn
// daily; manual and pre-deployment backups mark events worth keeping longer.
const (
	RetentionScheduled = 30 * 24 * time.Hour
	RetentionManual    = 90 * 24 * time.Hour
)

// RetentionPeriod returns how long a backup of this kind is kept
func (k Kind) RetentionPeriod() time.Duration {
	if k == KindScheduled {
		return RetentionScheduled
	}
	return RetentionManual
}

// Valid reports whether the kind is one of the known values
func (k Kind) Valid() bool {
	switch k {
	case KindScheduled, KindManual, KindPreDeployment:
		return true
	}
	return false
}

// CompressionType represents supported compression algorithms
type CompressionType string

const (
	CompressionTypeNone CompressionType = "NONE"
	CompressionTypeGzip CompressionType = "GZIP"
	CompressionTypeLZ4  CompressionType = "LZ4"
	CompressionTypeZstd CompressionType = "ZSTD"
)

// Metadata describes a single backup in the catalog
type Metadata struct {
	ID                string           `json:"id"`
	Timestamp         time.Time        `json:"timestamp"`
	Kind              Kind             `json:"kind"`
	DatabaseSizeBytes int64            `json:"database_size_bytes"`
	CompressedSize    int64            `json:"compressed_size"`
	CompressionType   CompressionType  `json:"compression_type"`
	CompressionRatio  float64          `json:"compression_ratio"`
	Encrypted         bool             `json:"encrypted"`
	Checksum          string           `json:"checksum"`
	RecordCounts      map[string]int64 `json:"record_counts"`
	Location          string           `json:"location"`
	RetentionDate     time.Time        `json:"retention_date"`
	CreatedBy         string           `json:"created_by,omitempty"`
	Description       string           `json:"description,omitempty"`
	Verified          bool             `json:"verified"`
}

// Validate checks the metadata for structural problems
func (m *Metadata) Validate() error {
	var errors ValidationErrors

	if m.ID == "" {
		errors.Add("id", "backup ID cannot be empty", nil)
	}
	if m.Timestamp.IsZero() {
		errors.Add("timestamp", "backup timestamp cannot be zero", nil)
	}
	if !m.Kind.Valid() {
		errors.Add("kind", "unknown backup kind", string(m.Kind))
	}
	if m.Checksum == "" {
		errors.Add("checksum", "backup checksum cannot be empty", nil)
	}
	if m.DatabaseSizeBytes < 0 {
		errors.Add("database_size_bytes", "database size cannot be negative", m.DatabaseSizeBytes)
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// Expired reports whether the backup's retention date has passed
func (m *Metadata) Expired(now time.Time) bool {
	return now.After(m.RetentionDate)
}

// BlobKey returns the object store key for this backup's payload
func (m *Metadata) BlobKey() string {
	key := fmt.Sprintf("%s.db.%s", m.ID, compressionExtension(m.CompressionType))
	if m.Encrypted {
		key += ".enc"
	}
	return key
}

func compressionExtension(ct CompressionType) string {
	switch ct {
	case CompressionTypeLZ4:
		return "lz4"
	case CompressionTypeZstd:
		return "zst"
	case CompressionTypeNone:
		return "raw"
	default:
		return "gz"
	}
}

// RestorePoint is the operator-facing view of a backup
type RestorePoint struct {
	BackupID    string    `json:"backup_id"`
	Timestamp   time.Time `json:"timestamp"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	SizeMB      float64   `json:"size_mb"`
	Tables      []string  `json:"tables"`
	IsVerified  bool      `json:"is_verified"`
}

// CleanupResult summarizes a retention cleanup pass
type CleanupResult struct {
	Examined int      `json:"examined"`
	Deleted  []string `json:"deleted"`
	Failed   []string `json:"failed"`
}

// HealthState classifies the backup subsystem's health
type HealthState string

const (
	HealthHealthy HealthState = "HEALTHY"
	HealthWarning HealthState = "WARNING"
	HealthError   HealthState = "ERROR"
)

// HealthStatus reports whether backups are current
type HealthStatus struct {
	State                HealthState `json:"state"`
	Message              string      `json:"message"`
	LastBackupID         string      `json:"last_backup_id,omitempty"`
	LastBackupAt         time.Time   `json:"last_backup_at,omitempty"`
	HoursSinceLastBackup float64     `json:"hours_since_last_backup"`
	TotalBackups         int         `json:"total_backups"`
}

// DefaultStalenessThreshold is how old the newest backup may be before the
// health check degrades to WARNING. A daily cadence plus an hour of slack.
const DefaultStalenessThreshold = 25 * time.Hour

// CompressionConfig defines compression settings
type CompressionConfig struct {
	Enabled   bool            `yaml:"enabled" mapstructure:"enabled"`
	Algorithm CompressionType `yaml:"algorithm" mapstructure:"algorithm"`
	Level     int             `yaml:"level" mapstructure:"level"`
	Threshold int64           `yaml:"threshold" mapstructure:"threshold"`
}

// SetDefaults sets default values for compression settings
func (cc *CompressionConfig) SetDefaults() {
	if cc.Algorithm == "" {
		cc.Algorithm = CompressionTypeGzip
	}
	if cc.Level == 0 {
		cc.Level = 6
	}
}

// EncryptionConfig defines encryption settings
type EncryptionConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	KeySource string `yaml:"key_source" mapstructure:"key_source"` // "env", "file" or "passphrase"
	KeyPath   string `yaml:"key_path" mapstructure:"key_path"`
	KeyEnvVar string `yaml:"key_env_var" mapstructure:"key_env_var"`

	// Passphrase and Salt feed the "passphrase" key source. The salt is hex
	// and must stay fixed, or old backups become undecryptable. An empty
	// passphrase falls back to the DATAGUARD_ENCRYPTION_PASSPHRASE variable.
	Passphrase string `yaml:"passphrase" mapstructure:"passphrase"`
	Salt       string `yaml:"salt" mapstructure:"salt"`

	// KeyRetriever overrides key lookup, for tests and external key management
	KeyRetriever func() ([]byte, error) `yaml:"-" mapstructure:"-"`
}

// GetEncryptionKey resolves the 32-byte AES-256 key from the configured source
func (ec *EncryptionConfig) GetEncryptionKey() ([]byte, error) {
	if ec.KeyRetriever != nil {
		return ec.KeyRetriever()
	}

	km := NewKeyManager(ec)
	switch ec.KeySource {
	case "file":
		return km.LoadKeyFromFile(ec.KeyPath)
	case "passphrase":
		return km.DeriveKeyFromPassphrase(ec.Passphrase, ec.Salt)
	case "env", "":
		envVar := ec.KeyEnvVar
		if envVar == "" {
			envVar = "DATAGUARD_ENCRYPTION_KEY"
		}
		return km.LoadKeyFromEnv(envVar)
	default:
		return nil, NewConfigurationError(fmt.Sprintf("unknown key source: %s", ec.KeySource), nil)
	}
}

// RetentionConfig defines backup retention and staleness policy
type RetentionConfig struct {
	ScheduledMaxAge    time.Duration `yaml:"scheduled_max_age" mapstructure:"scheduled_max_age"`
	ManualMaxAge       time.Duration `yaml:"manual_max_age" mapstructure:"manual_max_age"`
	StalenessThreshold time.Duration `yaml:"staleness_threshold" mapstructure:"staleness_threshold"`
}

// SetDefaults sets default values for retention settings
func (rc *RetentionConfig) SetDefaults() {
	if rc.ScheduledMaxAge == 0 {
		rc.ScheduledMaxAge = RetentionScheduled
	}
	if rc.ManualMaxAge == 0 {
		rc.ManualMaxAge = RetentionManual
	}
	if rc.StalenessThreshold == 0 {
		rc.StalenessThreshold = DefaultStalenessThreshold
	}
}

// MaxAge returns the configured retention period for a backup kind
func (rc *RetentionConfig) MaxAge(kind Kind) time.Duration {
	if kind == KindScheduled {
		return rc.ScheduledMaxAge
	}
	return rc.ManualMaxAge
}

// Config bundles the backup subsystem configuration
type Config struct {
	Container        string            `yaml:"container" mapstructure:"container"`
	OperationTimeout time.Duration     `yaml:"operation_timeout" mapstructure:"operation_timeout"`
	Compression      CompressionConfig `yaml:"compression" mapstructure:"compression"`
	Encryption       EncryptionConfig  `yaml:"encryption" mapstructure:"encryption"`
	Retention        RetentionConfig   `yaml:"retention" mapstructure:"retention"`
}

// SetDefaults sets default values for the backup configuration
func (c *Config) SetDefaults() {
	if c.Container == "" {
		c.Container = "backups"
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = 2 * time.Minute
	}
	c.Compression.SetDefaults()
	c.Retention.SetDefaults()
}
