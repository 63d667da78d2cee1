package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/engine"
	"github.com/danieljhkim/watchguard/internal/stores"
)

// entityFlags are the record fields settable from the command line.
type entityFlags struct {
	label string
	date  string
	price string
	emoji string
	set   []string
}

func (f *entityFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.label, "label", "", "Registered label (empty clears it)")
	flags.StringVar(&f.date, "date", "", "Renewal date, YYYY-MM-DD")
	flags.StringVar(&f.price, "price", "", "Renewal price")
	flags.StringVar(&f.emoji, "emoji", "", "Emoji shown in notifications")
	flags.StringArrayVar(&f.set, "set", nil, "Extra field as key=value (repeatable)")
}

// apply writes every flag the user set onto rec.
func (f *entityFlags) apply(flags *pflag.FlagSet, rec stores.Record) error {
	for _, kv := range f.set {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("%w: --set expects key=value, got %q", stores.ErrInvalidInput, kv)
		}
		rec[key] = value
	}
	for name, value := range map[string]string{"label": f.label, "date": f.date, "price": f.price, "emoji": f.emoji} {
		if flags.Changed(name) {
			rec[name] = value
		}
	}
	return nil
}

// newEntityCmd builds the add/update/rm/list command tree for kind.
func newEntityCmd(kind bus.Kind) *cobra.Command {
	plural := string(kind) + "s"
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: fmt.Sprintf("Manage %s", plural),
	}

	var addFlags entityFlags
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: fmt.Sprintf("Add a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := stores.Record{}
			if err := addFlags.apply(cmd.Flags(), rec); err != nil {
				return err
			}

			eng, closeEngine, err := newEngine()
			if err != nil {
				return err
			}
			defer closeEngine()

			result, err := eng.AddEntity(kind, engine.EntityRequest{Name: args[0], Fields: rec})
			if err != nil {
				return err
			}
			return printEntityResult(result)
		},
	}
	addFlags.register(addCmd.Flags())

	var updateFlags entityFlags
	var rename string
	updateCmd := &cobra.Command{
		Use:   "update <name>",
		Short: fmt.Sprintf("Update a %s; unset flags keep their current value", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeEngine, err := newEngine()
			if err != nil {
				return err
			}
			defer closeEngine()

			coll, err := eng.Entities(kind)
			if err != nil {
				return err
			}
			name, err := stores.ValidateName(args[0])
			if err != nil {
				return err
			}
			current, ok := coll[name]
			if !ok {
				return fmt.Errorf("%w: %s %q", stores.ErrNotFound, kind, name)
			}

			rec := current.Clone()
			if err := updateFlags.apply(cmd.Flags(), rec); err != nil {
				return err
			}
			result, err := eng.UpdateEntity(kind, engine.EntityRequest{Name: name, NewName: rename, Fields: rec})
			if err != nil {
				return err
			}
			return printEntityResult(result)
		},
	}
	updateFlags.register(updateCmd.Flags())
	updateCmd.Flags().StringVar(&rename, "rename", "", "New name")

	rmCmd := &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   fmt.Sprintf("Remove a %s", kind),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeEngine, err := newEngine()
			if err != nil {
				return err
			}
			defer closeEngine()

			result, err := eng.DeleteEntity(kind, args[0])
			if err != nil {
				return err
			}
			return printEntityResult(result)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", plural),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeEngine, err := newEngine()
			if err != nil {
				return err
			}
			defer closeEngine()

			coll, err := eng.Entities(kind)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(coll)
			}

			PrintSection(strings.ToUpper(plural[:1]) + plural[1:])
			if len(coll) == 0 {
				PrintEmptyState(fmt.Sprintf("No %s found", plural))
				return nil
			}
			rows := make([][]string, 0, len(coll))
			for _, name := range coll.Names() {
				rec := coll[name]
				rows = append(rows, []string{name, rec.Label(), rec.Field("date"), rec.Field("price")})
			}
			PrintTable([]string{"Name", "Label", "Date", "Price"}, rows)
			PrintInfo("\n  " + PrintCount(len(coll), string(kind), plural))
			return nil
		},
	}

	cmd.AddCommand(addCmd, updateCmd, rmCmd, listCmd)
	return cmd
}

func printEntityResult(result *engine.EntityResult) error {
	if jsonOutput {
		return outputJSON(result)
	}
	PrintSuccess(result.Message)
	return nil
}
