package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a label reconciliation pass now",
	Long: `Merge labels found in the data files into the registry, mirror them into
settings, and clear references to labels that are not registered.

The pass runs even when no data file changed since the last one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := newEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		result, err := eng.ForceSync()
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(result)
		}
		PrintSuccess(result.Message)
		if len(result.Labels) > 0 {
			PrintList(result.Labels, 1)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reconciler status and data file health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := newEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		status := eng.Status()
		if jsonOutput {
			return outputJSON(status)
		}

		PrintSection("Reconciler")
		PrintLabelValue("Data directory", eng.DataDir())
		PrintLabelValue("Running", fmt.Sprint(status.Running))
		PrintLabelValue("Phase", string(status.Phase))
		PrintLabelValue("Interval", status.Interval.String())
		PrintLabelValue("Watched files", fmt.Sprintf("%d present", status.WatchedFiles))
		if status.LastSync.IsZero() {
			PrintLabelValue("Last sync", "never in this process")
		} else {
			PrintLabelValue("Last sync", status.LastSync.Format(time.RFC3339))
		}
		if status.LastResult != nil {
			PrintLabelValue("Last result", status.LastResult.Message())
		}
		if status.LastError != "" {
			PrintLabelValueWithColor("Last error", status.LastError, errorColor)
		}
		PrintLabelValue("Labels", PrintCount(len(eng.ListLabels()), "registered label", "registered labels"))
		return nil
	},
}
