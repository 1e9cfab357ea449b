package cmd

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "waste-dispatch-api",
	Short:         "Waste collection dispatch service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json), defaults to $CONFIG_FILE")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }
