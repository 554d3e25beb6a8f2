// Package commands implements the autoflux CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/autoflux/autoflux/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "autoflux",
	Short:         "Supervisory control loop for autonomous vehicle edge platforms",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults apply when empty)")
	rootCmd.AddCommand(runCmd, versionCmd, journalCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig returns the file config when --config is set, the defaults
// otherwise.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
