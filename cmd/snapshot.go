package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"dataguard/internal/database"
)

var snapshotOutput string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture an ad hoc snapshot and print its fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		inspector, err := database.NewInspector(app.config.Database.Path)
		if err != nil {
			app.printer.Failure("Cannot open database: %v", err)
			return fmt.Errorf("cannot open database: %w", err)
		}
		defer inspector.Close()

		snap, err := app.snapshots.Capture(cmd.Context(), inspector, app.config.CriticalTables)
		if err != nil {
			app.printer.Failure("Snapshot capture failed: %v", err)
			return fmt.Errorf("snapshot capture failed: %w", err)
		}

		if snapshotOutput == "yaml" {
			data, err := yaml.Marshal(snap)
			if err != nil {
				return fmt.Errorf("cannot serialize snapshot: %w", err)
			}
			cmd.OutOrStdout().Write(data)
			return nil
		}

		app.printer.Heading("Snapshot")
		app.printer.Line("  captured at: %s", snap.Timestamp.Format("2006-01-02 15:04:05 MST"))
		app.printer.Line("  schema hash: %s", snap.SchemaHash)
		for table, count := range snap.TableCounts {
			app.printer.Line("  %-12s %d rows", table, count)
		}
		for table, sum := range snap.TableChecksums {
			app.printer.Muted("  %-12s %s", table, sum)
		}
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "text", "output format: text or yaml")
	rootCmd.AddCommand(snapshotCmd)
}
