package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/watchguard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the watchguard config file",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write config.yaml with every setting at its default value.

The file goes to --config when given, otherwise $WATCHGUARD_ROOT/config.yaml.
An existing file is kept unless --force is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := config.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to get config paths: %w", err)
		}
		path := cfgFile
		if path == "" {
			path = paths.Config
		}

		if !configForce {
			if _, statErr := os.Stat(path); statErr == nil {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]string{"path": path})
		}
		PrintSuccess(fmt.Sprintf("Wrote default config to %s", path))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the watchguard version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := newEngine()
		if err != nil {
			PrintInfo(config.ResolveVersion("", rootCmd.Version))
			return nil
		}
		defer closeEngine()

		result := eng.Version(rootCmd.Version)
		if jsonOutput {
			return outputJSON(result)
		}
		PrintInfo(result.Version)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
}
