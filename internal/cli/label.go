package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Manage the label registry",
	Long: `Manage the labels that servers and domains can reference.

Removing a label clears it from every server and domain that uses it.`,
}

var labelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered labels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := newEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		list := eng.ListLabels()
		if jsonOutput {
			return outputJSON(map[string]any{"labels": list})
		}

		PrintSection("Labels")
		if len(list) == 0 {
			PrintEmptyState("No labels registered")
			return nil
		}
		PrintList(list, 1)
		return nil
	},
}

var labelAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Register a new label",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := newEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		result, err := eng.AddLabel(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(result)
		}
		PrintSuccess(result.Message)
		return nil
	},
}

var labelRmCmd = &cobra.Command{
	Use:     "rm <label>",
	Aliases: []string{"remove"},
	Short:   "Remove a label and clear it from every record",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := newEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		result, err := eng.RemoveLabel(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(result)
		}
		PrintSuccess(result.Message)
		return nil
	},
}

var labelCheckCmd = &cobra.Command{
	Use:   "check <label>",
	Short: "Validate a label without registering it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := newEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		label, err := eng.ValidateLabel(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]any{"label": label, "valid": true})
		}
		PrintSuccess(fmt.Sprintf("Label '%s' is valid", label))
		return nil
	},
}

var labelUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show how many servers and domains use each label",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := newEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		usage := eng.Usage()
		if jsonOutput {
			return outputJSON(usage)
		}

		PrintSection("Label Usage")
		list := eng.ListLabels()
		if len(list) == 0 {
			PrintEmptyState("No labels registered")
			return nil
		}
		rows := make([][]string, 0, len(list))
		for _, label := range list {
			u := usage[label]
			rows = append(rows, []string{label, fmt.Sprint(u.Servers), fmt.Sprint(u.Domains)})
		}
		PrintTable([]string{"Label", "Servers", "Domains"}, rows)
		return nil
	},
}

var labelExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export labels with metadata and usage as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := newEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		return outputJSON(eng.ExportLabels())
	},
}

func init() {
	labelCmd.AddCommand(labelListCmd)
	labelCmd.AddCommand(labelAddCmd)
	labelCmd.AddCommand(labelRmCmd)
	labelCmd.AddCommand(labelCheckCmd)
	labelCmd.AddCommand(labelUsageCmd)
	labelCmd.AddCommand(labelExportCmd)
}
