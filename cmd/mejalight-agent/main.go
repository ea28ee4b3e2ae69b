// Mejalight-agent polls the billiard hall server for lamp commands and
// drives the table relays.
//
// It runs as a long-lived service on a single-board computer. Every cycle
// it makes sure the wireless link is up, fetches the pending command
// (ON1, OFF2, ...) from /api/esp-command and switches the matching
// active-low relay. When the link cannot be brought back the agent
// restarts.
//
// Usage:
//
//	mejalight-agent [command] [flags]
//
// See 'mejalight-agent --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mejalight/mejalight/internal/logging"
	"github.com/mejalight/mejalight/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mejalight-agent",
	Short: "Relay agent for billiard table lamps",
	Long: `Polls the mejalight server for lamp commands and switches the table
relays accordingly.

Configuration is read from --config or the default location
($XDG_CONFIG_HOME/mejalight/config.yaml). A missing file means defaults:
two tables on GPIO18 and GPIO19 polling http://localhost:3000.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mejalight-agent %s\n", version.Full())
	},
}
