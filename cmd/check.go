package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dataguard/internal/deploy"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Pre- and post-deployment integrity checks",
}

var checkPreCmd = &cobra.Command{
	Use:   "pre",
	Short: "Capture the pre-deployment baseline and take a safety backup",
	Long: `Run before a deployment: verifies the database accepts a rollback
transaction, captures a baseline snapshot of the critical tables, and takes
a pre-deployment backup. A non-zero exit code means the deployment should
not proceed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		hooks := deploy.NewHooks(app.config.Database.Path, app.config.CriticalTables,
			app.snapshots, app.checker, app.backups, app.logger)

		if !hooks.RunPreDeploymentCheck(cmd.Context()) {
			app.printer.Failure("Pre-deployment check failed")
			return fmt.Errorf("pre-deployment check failed")
		}

		app.printer.Success("Pre-deployment baseline captured")
		return nil
	},
}

var checkPostCmd = &cobra.Command{
	Use:   "post",
	Short: "Compare the current database against the pre-deployment baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		hooks := deploy.NewHooks(app.config.Database.Path, app.config.CriticalTables,
			app.snapshots, app.checker, nil, app.logger)

		passed := hooks.RunPostDeploymentCheck(cmd.Context())
		if report := hooks.LastReport(); report != nil {
			app.printer.IntegrityReport(report)
		}

		if !passed {
			return fmt.Errorf("post-deployment check did not pass")
		}
		return nil
	},
}

func init() {
	checkCmd.AddCommand(checkPreCmd)
	checkCmd.AddCommand(checkPostCmd)
	rootCmd.AddCommand(checkCmd)
}
