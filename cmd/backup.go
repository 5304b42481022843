package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dataguard/internal/backup"
)

var (
	backupDescription string
	listDaysBack      int
	restoreTarget     string
	verifyBackupID    string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, browse, restore, and maintain database backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a manual backup now",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		meta, ok := app.backups.CreateBackupWithOptions(cmd.Context(), backup.KindManual, backupDescription, "cli")
		if !ok {
			app.printer.Failure("Backup failed, see log for the cause")
			return fmt.Errorf("backup failed")
		}

		app.printer.Success("Backup %s created (%.2f MB, ratio %.2f)",
			meta.ID, float64(meta.DatabaseSizeBytes)/(1024*1024), meta.CompressionRatio)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List restore points, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		points := app.backups.ListRestorePoints(cmd.Context(), listDaysBack)
		if points == nil && app.backups.Degraded() {
			app.printer.Failure("No backup storage configured")
			return fmt.Errorf("no backup storage configured")
		}

		app.printer.RestorePointTable(points)
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <backupId>",
	Short: "Restore a backup to a target path and verify it",
	Long: `Restore downloads the named backup, decompresses it, writes it to the
target path, and verifies size and row counts against the catalog. The live
database is never overwritten; swap the file in once verification passes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		target := restoreTarget
		if target == "" {
			target = app.config.Database.Path + ".restored"
		}

		if !app.backups.Restore(cmd.Context(), args[0], target) {
			app.printer.Failure("Restore of %s failed", args[0])
			return fmt.Errorf("restore failed")
		}

		app.backups.MarkVerified(cmd.Context(), args[0])
		app.printer.Success("Backup %s restored and verified at %s", args[0], target)
		return nil
	},
}

var backupLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Restore the most recent backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		latest, found := app.backups.Latest(cmd.Context())
		if !found {
			app.printer.Failure("No backups exist")
			return fmt.Errorf("no backups exist")
		}

		target := restoreTarget
		if target == "" {
			target = app.config.Database.Path + ".restored"
		}

		if !app.backups.Restore(cmd.Context(), latest.ID, target) {
			app.printer.Failure("Restore of %s failed", latest.ID)
			return fmt.Errorf("restore failed")
		}

		app.backups.MarkVerified(cmd.Context(), latest.ID)
		app.printer.Success("Backup %s restored and verified at %s", latest.ID, target)
		return nil
	},
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify an already-restored database file against its catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		backupID := verifyBackupID
		if backupID == "" {
			latest, found := app.backups.Latest(cmd.Context())
			if !found {
				app.printer.Failure("No backups exist to verify against")
				return fmt.Errorf("no backups exist")
			}
			backupID = latest.ID
		}

		if !app.backups.Verify(cmd.Context(), args[0], backupID) {
			app.printer.Failure("Verification of %s against %s failed", args[0], backupID)
			return fmt.Errorf("verification failed")
		}

		app.printer.Success("%s verified against %s", args[0], backupID)
		return nil
	},
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete backups whose retention date has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		result := app.backups.CleanupExpired(cmd.Context())
		app.printer.CleanupSummary(result)

		if len(result.Failed) > 0 {
			return fmt.Errorf("%d backups could not be deleted", len(result.Failed))
		}
		return nil
	},
}

var backupHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report backup freshness",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		status := app.backups.Health(cmd.Context())
		app.printer.HealthSummary(status)

		if status.State == backup.HealthError {
			return fmt.Errorf("backup health: %s", status.Message)
		}
		return nil
	},
}

func init() {
	backupCreateCmd.Flags().StringVarP(&backupDescription, "description", "d", "", "human description for the backup")
	backupListCmd.Flags().IntVar(&listDaysBack, "days", 30, "how many days back to list")
	backupRestoreCmd.Flags().StringVarP(&restoreTarget, "target", "t", "", "restore target path (default <dbpath>.restored)")
	backupLatestCmd.Flags().StringVarP(&restoreTarget, "target", "t", "", "restore target path (default <dbpath>.restored)")
	backupVerifyCmd.Flags().StringVar(&verifyBackupID, "backup-id", "", "catalog entry to verify against (default latest)")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupLatestCmd)
	backupCmd.AddCommand(backupVerifyCmd)
	backupCmd.AddCommand(backupCleanupCmd)
	backupCmd.AddCommand(backupHealthCmd)
	rootCmd.AddCommand(backupCmd)
}
