// Command acphost is a terminal client for the Agent Client Protocol SDK in
// this module: it launches or connects to an agent, drives prompt turns from
// the command line, and can tail the connection's timing telemetry.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/mark3labs/acphost/internal/logger"
	"github.com/spf13/cobra"
)

// version is set via ldflags during build.
var version = "dev"

func main() {
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("command failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "acphost",
	Short: "Terminal client for an Agent Client Protocol agent",
	Long: `acphost connects to an ACP agent over stdio or HTTP, drives prompt
turns, and answers the agent's filesystem and permission requests from the
terminal.

Configuration is loaded from multiple sources with the following precedence:
  CLI flags > environment variables > project config > global config > defaults

Project config: ./acphost.yml
Global config:  ~/.config/acphost/acphost.yml`,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(setupCmd)
}
