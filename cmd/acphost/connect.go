package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/mark3labs/acphost/internal/config"
	"github.com/mark3labs/acphost/internal/logger"
	"github.com/mark3labs/acphost/router"
	"github.com/mark3labs/acphost/session"
	"github.com/mark3labs/acphost/transport"
	"github.com/spf13/cobra"
)

// connectFlags are the transport-selection flags shared by every subcommand
// that talks to an agent.
type connectFlags struct {
	agentCommand string
	agentArgs    []string
	transport    string
	httpBaseURL  string
}

func registerConnectFlags(cmd *cobra.Command, f *connectFlags) {
	cmd.Flags().StringVar(&f.agentCommand, "agent-command", "", "Agent executable (overrides config)")
	cmd.Flags().StringSliceVar(&f.agentArgs, "agent-args", nil, "Arguments passed to the agent command")
	cmd.Flags().StringVar(&f.transport, "transport", "", "process or http (overrides config)")
	cmd.Flags().StringVar(&f.httpBaseURL, "http-base-url", "", "Base URL for the http transport (overrides config)")
}

// loadConfig loads config and merges any CLI overrides on top of it,
// following the same CLI-flags-override-config precedence as the teacher's
// build command.
func loadConfig(cmd *cobra.Command, f connectFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("agent-command") {
		cfg.AgentCommand = f.agentCommand
	}
	if cmd.Flags().Changed("agent-args") {
		cfg.AgentArgs = f.agentArgs
	}
	if cmd.Flags().Changed("transport") {
		cfg.Transport = f.transport
	}
	if cmd.Flags().Changed("http-base-url") {
		cfg.HTTPBaseURL = f.httpBaseURL
	}

	if !config.Exists() && cfg.AgentCommand == "" && cfg.HTTPBaseURL == "" {
		return nil, fmt.Errorf("no configuration found\n\nRun 'acphost setup' to create a config file, or pass --agent-command")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Timing {
		os.Setenv("ACP_TIMING", "1")
	}
	if cfg.BatchMs > 0 {
		os.Setenv("ACP_BATCH_MS", strconv.Itoa(cfg.BatchMs))
	}
	if lvl, err := logger.ParseLevel(cfg.LogLevel); err == nil {
		logger.Default.SetLevel(lvl)
	}
	if cfg.LogFile != "" {
		if err := logger.Default.SetOutputFile(cfg.LogFile); err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", cfg.LogFile, err)
		}
	}

	return cfg, nil
}

// buildTransport constructs the transport.Transport cfg selects.
func buildTransport(cfg *config.Config) (transport.Transport, error) {
	switch cfg.Transport {
	case "http":
		return transport.NewHTTPTransport(cfg.HTTPBaseURL, nil), nil
	case "process", "":
		return transport.NewProcessTransport(transport.ProcessConfig{
			Command: cfg.AgentCommand,
			Args:    cfg.AgentArgs,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want process or http)", cfg.Transport)
	}
}

// connection bundles the layers a subcommand drives together, plus the
// agent's handshake response.
type connection struct {
	tr     transport.Transport
	r      *router.Router
	engine *session.Engine
	info   *session.InitializeResponse
}

// connectEngine builds the transport/router/session stack, attaches
// delegate, and performs the connect+initialize handshake.
func connectEngine(ctx context.Context, cfg *config.Config, delegate session.Delegate) (*connection, error) {
	tr, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	r := router.New(tr)
	engine := session.New(r)
	engine.SetDelegate(delegate)

	info, err := engine.Connect(ctx, session.ClientInfo{Name: cfg.ClientName, Version: cfg.ClientVersion})
	if err != nil {
		return nil, fmt.Errorf("connecting to agent: %w", err)
	}

	return &connection{tr: tr, r: r, engine: engine, info: info}, nil
}

// Close disconnects the engine and returns any error encountered, so a
// caller tearing down multiple subsystems alongside it (e.g. the telemetry
// bus) can aggregate failures instead of discarding this one.
func (c *connection) Close() error {
	return c.engine.Disconnect()
}
