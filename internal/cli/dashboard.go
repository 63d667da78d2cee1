package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/watchguard/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show renewal status for every server and domain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := newEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		ov := eng.Dashboard()
		if jsonOutput {
			return outputJSON(ov)
		}

		PrintSection(fmt.Sprintf("Expiring within %d days", ov.WarningDays))
		if len(ov.Expiring) == 0 {
			PrintEmptyState("Nothing expiring")
		}
		for _, e := range ov.Expiring {
			PrintLabelValueWithColor(fmt.Sprintf("%s %s", e.Kind, e.Name), daysText(e), renewalColor(e.Status))
		}

		for _, group := range []struct {
			title   string
			entries []dashboard.Entry
		}{
			{"Servers", ov.Servers},
			{"Domains", ov.Domains},
		} {
			PrintSection(group.title)
			if len(group.entries) == 0 {
				PrintEmptyState("None")
				continue
			}
			rows := make([][]string, 0, len(group.entries))
			for _, e := range group.entries {
				rows = append(rows, []string{e.Name, e.Label, e.Date, string(e.Status)})
			}
			PrintTable([]string{"Name", "Label", "Date", "Status"}, rows)
		}
		return nil
	},
}

func daysText(e dashboard.Entry) string {
	switch {
	case e.DaysLeft < 0:
		return fmt.Sprintf("expired %s ago", PrintCount(-e.DaysLeft, "day", "days"))
	case e.DaysLeft == 0:
		return "renews today"
	default:
		return fmt.Sprintf("renews in %s", PrintCount(e.DaysLeft, "day", "days"))
	}
}
