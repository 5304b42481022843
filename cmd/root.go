package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dataguard/internal/backup"
	"dataguard/internal/config"
	"dataguard/internal/display"
	"dataguard/internal/integrity"
	"dataguard/internal/logging"
	"dataguard/internal/scheduler"
	"dataguard/internal/snapshot"
	"dataguard/internal/storage"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	noColor bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dataguard",
	Short: "Snapshot, backup, and integrity verification for the course database",
	Long: `dataguard protects the application's SQLite database across deployments
and restarts: it captures content-addressed snapshots of critical tables,
ships compressed backups to object storage, restores them with verified
integrity, enforces retention, and classifies data-loss risk before and
after deployments.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default dataguard.yaml in . or /etc/dataguard)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// app bundles the wired-up engine components for a CLI invocation
type app struct {
	config    *config.AppConfig
	logger    *logging.Logger
	printer   *display.Printer
	backups   *backup.Manager
	snapshots *snapshot.Manager
	checker   *integrity.Checker
	scheduler *scheduler.Scheduler
}

// buildApp loads configuration and constructs the engine. An unconfigured
// object store is not an error: the backup manager runs degraded and every
// backup command reports failure.
func buildApp(ctx context.Context) (*app, error) {
	appConfig, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	level := logging.LogLevelNormal
	switch {
	case quiet:
		level = logging.LogLevelQuiet
	case verbose:
		level = logging.LogLevelVerbose
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:   level,
		Format:  appConfig.Logging.Format,
		LogFile: appConfig.Logging.File,
		Output:  os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	var store storage.ObjectStore
	if appConfig.Storage.Configured() {
		store, err = storage.NewFactory().Create(ctx, appConfig.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
		}
	}

	backups := backup.NewManager(appConfig.Backup, appConfig.Database.Path, appConfig.StateDir, store, logger)
	snapshots := snapshot.NewManager(appConfig.StateDir, logger)

	alerts := integrity.NewAlertDispatcher(integrity.AlertLevel(appConfig.Alerts.MinLevel), integrity.NewLogSink(logger))
	if appConfig.Alerts.WebhookURL != "" {
		alerts.AddSink(integrity.NewWebhookSink(appConfig.Alerts.WebhookURL))
	}

	audit := integrity.NewAuditLog(appConfig.StateDir + "/integrity_audit.jsonl")
	checker := integrity.NewChecker(appConfig.Thresholds, audit, alerts, logger)

	return &app{
		config:    appConfig,
		logger:    logger,
		printer:   display.NewStdoutPrinter(noColor),
		backups:   backups,
		snapshots: snapshots,
		checker:   checker,
		scheduler: scheduler.New(appConfig.Schedule, backups, logger),
	}, nil
}
