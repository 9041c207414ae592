package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/acphost/internal/config"
	"github.com/spf13/cobra"
)

var setupFlags struct {
	project bool
	force   bool
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create acphost configuration file",
	Long: `Create an acphost configuration file with sensible defaults.

By default, creates a global config at ~/.config/acphost/acphost.yml.
Use --project to create a project-local config in the current directory.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVarP(&setupFlags.project, "project", "p", false, "Create config in current directory instead of global location")
	setupCmd.Flags().BoolVarP(&setupFlags.force, "force", "f", false, "Overwrite existing config file")
}

func runSetup(cmd *cobra.Command, args []string) error {
	targetPath := config.GlobalPath()
	if setupFlags.project {
		targetPath = config.ProjectPath()
	}

	if !setupFlags.force {
		if _, err := os.Stat(targetPath); err == nil {
			return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
		}
	}

	cfg := &config.Config{
		AgentCommand:  "",
		AgentArgs:     []string{},
		Transport:     "process",
		HTTPBaseURL:   "",
		LogLevel:      "info",
		LogFile:       "",
		Timing:        false,
		BatchMs:       50,
		ClientName:    "acphost",
		ClientVersion: version,
	}

	var err error
	if setupFlags.project {
		err = config.WriteProject(cfg)
	} else {
		err = config.WriteGlobal(cfg)
	}
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Config written to: %s\n\n", targetPath)
	fmt.Println("Edit agent_command (and agent_args, if needed) before running 'acphost prompt'.")
	return nil
}
