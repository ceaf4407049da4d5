package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configSave string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration after merging defaults, config files and
FILEREDUCE_* environment variables.

Examples:
  filereduce config
  filereduce config --save ~/.filereduce/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().StringVar(&configSave, "save", "", "Write the effective configuration to this file")

	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configSave != "" {
		if err := manager.Save(configSave); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "  saved %s\n", configSave)
		return nil
	}

	for _, path := range manager.GetPaths() {
		fmt.Fprintf(os.Stdout, "# from %s\n", path)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(manager.Get()); err != nil {
		return err
	}
	return enc.Close()
}
