package scheduler

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/backup"
	"dataguard/internal/logging"
	"dataguard/internal/storage"
)

func quietLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(logging.Config{
		Level:  logging.LogLevelQuiet,
		Output: io.Discard,
	})
	require.NoError(t, err)
	return logger
}

func testManager(t *testing.T) (*backup.Manager, *storage.MemoryStore) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("database contents"), 0644))

	store := storage.NewMemoryStore()
	manager := backup.NewManager(backup.Config{}, dbPath, filepath.Join(dir, "state"), store, quietLogger(t))
	return manager, store
}

func TestConfigDefaults(t *testing.T) {
	var config Config
	config.SetDefaults()

	assert.Equal(t, "03:00", config.BackupTime)
	assert.Equal(t, 6*time.Hour, config.HealthInterval)
	assert.Equal(t, time.Minute, config.PollInterval)
	assert.NoError(t, config.Validate())
}

func TestConfigValidateRejectsBadTimes(t *testing.T) {
	config := Config{BackupTime: "25:00", CleanupTime: "04:00"}
	assert.Error(t, config.Validate())

	config = Config{BackupTime: "03:00", CleanupTime: "nope"}
	assert.Error(t, config.Validate())
}

func TestTickRunsDailyBackupOnce(t *testing.T) {
	manager, _ := testManager(t)
	s := New(Config{BackupTime: "03:00"}, manager, quietLogger(t))
	ctx := context.Background()

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC) // a Thursday

	// Before the backup time nothing fires.
	s.tick(ctx, day.Add(2*time.Hour))
	assert.Empty(t, manager.ListRestorePoints(ctx, 7))

	// At and after the backup time it fires exactly once for the day.
	s.tick(ctx, day.Add(3*time.Hour))
	s.tick(ctx, day.Add(4*time.Hour))
	assert.Len(t, manager.ListRestorePoints(ctx, 7), 1)

	// The next day it fires again.
	s.tick(ctx, day.Add(27*time.Hour))
	assert.Len(t, manager.ListRestorePoints(ctx, 7), 2)
}

func TestTickRunsWeeklyCleanupOnConfiguredDay(t *testing.T) {
	manager, _ := testManager(t)
	s := New(Config{
		BackupTime:     "23:59",
		CleanupWeekday: time.Sunday,
		CleanupTime:    "04:00",
	}, manager, quietLogger(t))
	ctx := context.Background()

	saturday := time.Date(2026, 8, 22, 5, 0, 0, 0, time.UTC)
	s.tick(ctx, saturday)
	assert.Empty(t, s.lastCleanupDay)

	sunday := time.Date(2026, 8, 23, 5, 0, 0, 0, time.UTC)
	s.tick(ctx, sunday)
	assert.Equal(t, "2026-08-23", s.lastCleanupDay)
}

func TestTickHealthCheckInterval(t *testing.T) {
	manager, _ := testManager(t)
	s := New(Config{BackupTime: "23:59", HealthInterval: 6 * time.Hour}, manager, quietLogger(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	s.tick(ctx, base)
	first := s.lastHealth
	assert.Equal(t, base, first)

	// Within the interval the check does not repeat.
	s.tick(ctx, base.Add(2*time.Hour))
	assert.Equal(t, first, s.lastHealth)

	s.tick(ctx, base.Add(6*time.Hour))
	assert.Equal(t, base.Add(6*time.Hour), s.lastHealth)
}

func TestJobFailureDoesNotStopOtherJobs(t *testing.T) {
	manager, store := testManager(t)
	store.FailPut = true // backups will fail

	s := New(Config{BackupTime: "03:00", HealthInterval: time.Hour}, manager, quietLogger(t))
	ctx := context.Background()

	now := time.Date(2026, 8, 20, 3, 30, 0, 0, time.UTC)
	s.tick(ctx, now)

	// The failed backup is recorded for the day and health still ran.
	assert.Equal(t, "2026-08-20", s.lastBackupDay)
	assert.Equal(t, now, s.lastHealth)
}

func TestStartStopIdempotent(t *testing.T) {
	manager, _ := testManager(t)
	s := New(Config{PollInterval: 10 * time.Millisecond, BackupTime: "23:59"}, manager, quietLogger(t))

	// Stopping before starting is safe.
	s.Stop()

	ctx := context.Background()
	s.Start(ctx)
	assert.True(t, s.Running())

	// A second start is a no-op.
	s.Start(ctx)
	assert.True(t, s.Running())

	s.Stop()
	assert.False(t, s.Running())

	// Stopping twice is safe.
	s.Stop()
}
