// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the demo CLI's configuration: which agent to launch, how to
// talk to it, and how verbose to be. This is distinct from the SDK's own
// ACP_* env knobs, which the wire/transport/router/session packages read
// directly without going through Viper.
type Config struct {
	AgentCommand  string   `mapstructure:"agent_command" yaml:"agent_command"`
	AgentArgs     []string `mapstructure:"agent_args" yaml:"agent_args"`
	Transport     string   `mapstructure:"transport" yaml:"transport"`
	HTTPBaseURL   string   `mapstructure:"http_base_url" yaml:"http_base_url"`
	LogLevel      string   `mapstructure:"log_level" yaml:"log_level"`
	LogFile       string   `mapstructure:"log_file" yaml:"log_file"`
	Timing        bool     `mapstructure:"timing" yaml:"timing"`
	BatchMs       int      `mapstructure:"batch_ms" yaml:"batch_ms"`
	ClientName    string   `mapstructure:"client_name" yaml:"client_name"`
	ClientVersion string   `mapstructure:"client_version" yaml:"client_version"`
}

// Load loads configuration with precedence:
// ENV vars > project config > XDG global config > defaults.
// CLI flag overrides are not applied here; the caller merges them on top.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("acphost")

	v.SetDefault("agent_command", "")
	v.SetDefault("agent_args", []string{})
	v.SetDefault("transport", "process")
	v.SetDefault("http_base_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("timing", false)
	v.SetDefault("batch_ms", 50)
	v.SetDefault("client_name", "acphost")
	v.SetDefault("client_version", "dev")

	v.SetEnvPrefix("ACPHOST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, env := range map[string]string{
		"agent_command":  "ACPHOST_AGENT_COMMAND",
		"transport":      "ACPHOST_TRANSPORT",
		"http_base_url":  "ACPHOST_HTTP_BASE_URL",
		"log_level":      "ACPHOST_LOG_LEVEL",
		"log_file":       "ACPHOST_LOG_FILE",
		"timing":         "ACPHOST_TIMING",
		"batch_ms":       "ACPHOST_BATCH_MS",
		"client_name":    "ACPHOST_CLIENT_NAME",
		"client_version": "ACPHOST_CLIENT_VERSION",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate reports whether cfg has enough information to connect: a
// process transport needs a command, an HTTP transport needs a base URL.
func (c *Config) Validate() error {
	switch c.Transport {
	case "process":
		if c.AgentCommand == "" {
			return fmt.Errorf("agent_command is required for the process transport")
		}
	case "http":
		if c.HTTPBaseURL == "" {
			return fmt.Errorf("http_base_url is required for the http transport")
		}
	default:
		return fmt.Errorf("unknown transport %q (want process or http)", c.Transport)
	}
	return nil
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/acphost/acphost.yml or $XDG_CONFIG_HOME/acphost/acphost.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "acphost", "acphost.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "acphost", "acphost.yml")
}

// ProjectPath returns the project-local config path.
// Returns ./acphost.yml in the current working directory.
func ProjectPath() string {
	return "acphost.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	path := ProjectPath()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
