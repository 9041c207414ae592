package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/mark3labs/acphost/acperrors"
	"github.com/mark3labs/acphost/internal/logger"
	"github.com/mark3labs/acphost/internal/telemetry"
	"github.com/mark3labs/acphost/router"
	"github.com/mark3labs/acphost/session"
	"github.com/spf13/cobra"
)

var doctorFlags struct {
	connectFlags
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Connect to an agent and tail its request timing",
	Long: `Connects to an agent, prints its advertised capabilities, and tails
the embedded telemetry bus for per-request timing as long as the connection
stays open. Press Ctrl-C to disconnect.`,
	RunE: runDoctor,
}

func init() {
	registerConnectFlags(doctorCmd, &doctorFlags.connectFlags)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, doctorFlags.connectFlags)
	if err != nil {
		return err
	}
	// doctor always wants timing, regardless of what the config says.
	os.Setenv("ACP_TIMING", "1")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, err := connectEngine(ctx, cfg, &session.DefaultDelegate{})
	if err != nil {
		return err
	}

	fmt.Printf("agent:    %s %s\n", conn.info.AgentInfo.Name, conn.info.AgentInfo.Version)
	fmt.Printf("protocol: v%d\n", conn.info.ProtocolVersion)
	fmt.Printf("loadSession capability: %v\n", conn.info.AgentCapabilities.LoadSession)

	bus, err := telemetry.StartBus(ctx)
	if err != nil {
		conn.Close()
		return fmt.Errorf("starting telemetry bus: %w", err)
	}
	defer func() {
		var multiErr acperrors.MultiError
		multiErr.Append(conn.Close())
		multiErr.Append(bus.Shutdown())
		if err := multiErr.ErrOrNil(); err != nil {
			logger.Warn("doctor: shutdown: %v", err)
		}
	}()

	pub := telemetry.NewPublisher(bus)
	conn.r.OnTiming(func(rt router.RequestTiming) {
		sid, _ := conn.engine.CurrentSessionID()
		pub.ObserveRouter(sid, rt)
	})

	if err := bus.Tail(ctx, "acphost.timing.>", printTimingEvent); err != nil {
		return fmt.Errorf("tailing telemetry bus: %w", err)
	}

	fmt.Println("tailing timing events, press Ctrl-C to stop")
	<-ctx.Done()
	fmt.Println("\ndisconnecting")
	return nil
}

func printTimingEvent(subject string, data []byte) {
	var ev telemetry.RequestEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	fmt.Printf("[%s] %s elapsed=%dms req=%dB resp=%dB failed=%v\n",
		subject, ev.Method, ev.ElapsedMs, ev.RequestBytes, ev.ResponseBytes, ev.Failed)
}
