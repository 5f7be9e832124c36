package cli

import (
	"fmt"

	"github.com/benmeehan/ortho-monitor/pkg/serialport"
	"github.com/spf13/cobra"
)

// listPorts is replaced in tests.
var listPorts = serialport.ListPorts

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports present on this host. The port that "monitor run"
would pick when no port is configured is marked with an asterisk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ports, err := listPorts()
		if err != nil {
			return fmt.Errorf("failed to list serial ports: %w", err)
		}

		selected, err := serialport.AutoSelect(ports, config.Serial.PortHints)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found")
			return nil
		}

		for _, p := range ports {
			marker := " "
			if p == selected {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
