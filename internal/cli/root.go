package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

// Global flags
var configFlag string

var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Orthostatic heart-rate monitor",
	Long: `Reads heart-rate telemetry from a serial-attached sensor, evaluates the
orthostatic summary it reports against configurable thresholds and keeps a
session log that is exported on exit.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", defaultConfigPath, "path to the YAML configuration file")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
