package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"dataguard/internal/backup"
	"dataguard/internal/logging"
)

// Config holds the cadence table: when the daily backup fires, when the
// weekly cleanup runs, and how often health is checked.
type Config struct {
	BackupTime     string        `yaml:"backup_time" mapstructure:"backup_time"`         // "HH:MM", local time
	CleanupWeekday time.Weekday  `yaml:"cleanup_weekday" mapstructure:"cleanup_weekday"` // 0 = Sunday
	CleanupTime    string        `yaml:"cleanup_time" mapstructure:"cleanup_time"`
	HealthInterval time.Duration `yaml:"health_interval" mapstructure:"health_interval"`
	PollInterval   time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// SetDefaults sets default values for the scheduler configuration
func (c *Config) SetDefaults() {
	if c.BackupTime == "" {
		c.BackupTime = "03:00"
	}
	if c.CleanupTime == "" {
		c.CleanupTime = "04:00"
	}
	if c.HealthInterval == 0 {
		c.HealthInterval = 6 * time.Hour
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Minute
	}
}

// Validate checks the configured times parse
func (c *Config) Validate() error {
	if _, _, err := parseTimeOfDay(c.BackupTime); err != nil {
		return fmt.Errorf("invalid backup_time: %w", err)
	}
	if _, _, err := parseTimeOfDay(c.CleanupTime); err != nil {
		return fmt.Errorf("invalid cleanup_time: %w", err)
	}
	return nil
}

func parseTimeOfDay(value string) (int, int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

// Scheduler drives the backup manager on fixed cadences from a single
// worker goroutine. All jobs run serially on that worker so backup, cleanup,
// and health never contend for the database file or the catalog.
type Scheduler struct {
	config  Config
	manager *backup.Manager
	logger  *logging.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Injection point for tests
	now func() time.Time

	lastBackupDay  string
	lastCleanupDay string
	lastHealth     time.Time
}

// New creates a scheduler around a backup manager
func New(config Config, manager *backup.Manager, logger *logging.Logger) *Scheduler {
	config.SetDefaults()

	return &Scheduler{
		config:  config,
		manager: manager,
		logger:  logger,
		now:     time.Now,
	}
}

// Start launches the worker loop. Starting an already running scheduler is
// a warned no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("Scheduler already running, ignoring second start")
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	s.logger.WithFields(map[string]interface{}{
		"backup_time":     s.config.BackupTime,
		"cleanup_weekday": s.config.CleanupWeekday.String(),
		"cleanup_time":    s.config.CleanupTime,
		"health_interval": s.config.HealthInterval.String(),
	}).Info("Scheduler started")

	go s.loop(loopCtx)
}

// Stop halts the worker loop and waits for any in-flight job to finish.
// Stopping a scheduler that was never started is safe.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("Scheduler stopped")
}

// Running reports whether the worker loop is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, s.now())
		}
	}
}

// tick evaluates the cadence table at one instant and runs every due job
// serially. A job failure is logged and never stops the loop or the other
// jobs.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if s.backupDue(now) {
		s.lastBackupDay = now.Format("2006-01-02")
		s.runJob(ctx, "daily_backup", func(ctx context.Context) error {
			if _, ok := s.manager.CreateBackup(ctx, backup.KindScheduled); !ok {
				return fmt.Errorf("scheduled backup failed")
			}
			return nil
		})
	}

	if s.cleanupDue(now) {
		s.lastCleanupDay = now.Format("2006-01-02")
		s.runJob(ctx, "weekly_cleanup", func(ctx context.Context) error {
			result := s.manager.CleanupExpired(ctx)
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d expired backups could not be deleted", len(result.Failed))
			}
			s.logger.WithFields(map[string]interface{}{
				"examined": result.Examined,
				"deleted":  len(result.Deleted),
			}).Info("Retention cleanup finished")
			return nil
		})
	}

	if s.healthDue(now) {
		s.lastHealth = now
		s.runJob(ctx, "health_check", func(ctx context.Context) error {
			status := s.manager.Health(ctx)
			entry := s.logger.WithFields(map[string]interface{}{
				"state":         string(status.State),
				"total_backups": status.TotalBackups,
				"hours_since":   status.HoursSinceLastBackup,
			})
			switch status.State {
			case backup.HealthError:
				entry.Error("Backup health check")
			case backup.HealthWarning:
				entry.Warn("Backup health check")
			default:
				entry.Info("Backup health check")
			}
			return nil
		})
	}
}

func (s *Scheduler) runJob(ctx context.Context, name string, job func(context.Context) error) {
	start := s.now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(map[string]interface{}{
				"job":   name,
				"panic": fmt.Sprint(r),
			}).Error("Scheduled job panicked")
		}
	}()

	err := job(ctx)
	s.logger.LogScheduledJob(name, s.now().Sub(start), err)
}

func (s *Scheduler) backupDue(now time.Time) bool {
	if s.lastBackupDay == now.Format("2006-01-02") {
		return false
	}
	hour, minute, _ := parseTimeOfDay(s.config.BackupTime)
	due := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	return !now.Before(due)
}

func (s *Scheduler) cleanupDue(now time.Time) bool {
	if now.Weekday() != s.config.CleanupWeekday {
		return false
	}
	if s.lastCleanupDay == now.Format("2006-01-02") {
		return false
	}
	hour, minute, _ := parseTimeOfDay(s.config.CleanupTime)
	due := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	return !now.Before(due)
}

func (s *Scheduler) healthDue(now time.Time) bool {
	if s.lastHealth.IsZero() {
		return true
	}
	return now.Sub(s.lastHealth) >= s.config.HealthInterval
}
