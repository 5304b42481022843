package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the backup scheduler until interrupted",
	Long: `Runs the background worker that takes the daily backup, the weekly
retention cleanup, and the periodic health check. All jobs run serially on
one worker so they never contend for the database file or the catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		app.scheduler.Start(cmd.Context())
		app.printer.Success("Scheduler running, press Ctrl-C to stop")

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		app.scheduler.Stop()
		app.printer.Line("Scheduler stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
