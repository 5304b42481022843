package backup

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupErrorMessage(t *testing.T) {
	err := NewStorageError("upload failed", errors.New("connection reset"))
	assert.Contains(t, err.Error(), "STORAGE_ERROR")
	assert.Contains(t, err.Error(), "upload failed")
	assert.Contains(t, err.Error(), "connection reset")

	bare := NewNotFoundError("backup missing", nil)
	assert.Contains(t, bare.Error(), "NOT_FOUND_ERROR")
}

func TestBackupErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("write failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestWithContext(t *testing.T) {
	err := NewStorageError("upload failed", nil).
		WithContext("backup_id", "backup_20260823").
		WithContext("container", "backups")

	assert.Equal(t, "backup_20260823", err.Context["backup_id"])
	assert.Equal(t, "backups", err.Context["container"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewStorageError("timeout", nil)))
	assert.True(t, IsRetryable(NewCatalogError("mirror failed", nil)))

	assert.False(t, IsRetryable(NewValidationError("bad metadata", nil)))
	assert.False(t, IsRetryable(NewCorruptionError("checksum mismatch", nil)))
	assert.False(t, IsRetryable(NewConfigurationError("no key", nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(NewValidationError("bad metadata", nil)))
	assert.True(t, IsPermanent(NewCorruptionError("checksum mismatch", nil)))
	assert.True(t, IsPermanent(NewConfigurationError("no key", nil)))
	assert.True(t, IsPermanent(NewNotFoundError("backup missing", nil)))

	assert.False(t, IsPermanent(NewStorageError("timeout", nil)))
	assert.False(t, IsPermanent(NewCompressionError("bad payload", nil)))
	assert.False(t, IsPermanent(errors.New("plain error")))
}

func TestValidationErrorsAccumulate(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())

	errs.Add("id", "cannot be empty", nil)
	assert.True(t, errs.HasErrors())
	assert.Contains(t, errs.Error(), "id")

	errs.Add("checksum", "cannot be empty", nil)
	errs.Add("kind", "unknown backup kind", "weekly")
	assert.Contains(t, errs.Error(), "3 validation errors")
}

func TestMetadataValidate(t *testing.T) {
	valid := Metadata{
		ID:        "backup_20260823_120000_abcd1234",
		Timestamp: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		Kind:      KindManual,
		Checksum:  "deadbeef",
	}
	assert.NoError(t, valid.Validate())

	damaged := Metadata{Kind: Kind("weekly"), DatabaseSizeBytes: -1}
	err := damaged.Validate()
	require.Error(t, err)

	errs, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, errs, 5)
}
