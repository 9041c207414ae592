package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"charm.land/glamour/v2"
	"github.com/charmbracelet/x/editor"
	"github.com/mark3labs/acphost/acperrors"
	"github.com/mark3labs/acphost/internal/logger"
	"github.com/mark3labs/acphost/internal/telemetry"
	"github.com/mark3labs/acphost/router"
	"github.com/mark3labs/acphost/session"
	"github.com/spf13/cobra"
)

var promptFlags struct {
	connectFlags
	sessionID string
	cwd       string
	edit      bool
}

var promptCmd = &cobra.Command{
	Use:   "prompt [text]",
	Short: "Send one prompt turn to an agent and render the response",
	Long: `Connects to an agent, creates or loads a session, sends one prompt
turn, and renders the streamed response to the terminal.

Prompt text comes from the positional argument, or from $EDITOR when --edit
is passed (the argument, if any, seeds the editor buffer).`,
	RunE: runPrompt,
}

func init() {
	registerConnectFlags(promptCmd, &promptFlags.connectFlags)
	promptCmd.Flags().StringVar(&promptFlags.sessionID, "session", "", "Resume this session id instead of creating a new one")
	promptCmd.Flags().StringVar(&promptFlags.cwd, "cwd", "", "Session working directory (default: current directory)")
	promptCmd.Flags().BoolVar(&promptFlags.edit, "edit", false, "Compose the prompt in $EDITOR before sending")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, promptFlags.connectFlags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	text := strings.Join(args, " ")
	if promptFlags.edit {
		text, err = editInEditor(text)
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no prompt text given (pass it as an argument or use --edit)")
	}

	cwd := promptFlags.cwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
	}

	delegate := &cliDelegate{width: 100}

	conn, err := connectEngine(ctx, cfg, delegate)
	if err != nil {
		return err
	}

	var bus *telemetry.Bus
	var pub *telemetry.Publisher
	if cfg.Timing {
		bus, err = telemetry.StartBus(ctx)
		if err != nil {
			conn.Close()
			return fmt.Errorf("starting telemetry bus: %w", err)
		}
		pub = telemetry.NewPublisher(bus)
		conn.r.OnTiming(func(rt router.RequestTiming) {
			sid, _ := conn.engine.CurrentSessionID()
			pub.ObserveRouter(sid, rt)
		})
	}
	defer func() {
		var multiErr acperrors.MultiError
		multiErr.Append(conn.Close())
		if bus != nil {
			multiErr.Append(bus.Shutdown())
		}
		if err := multiErr.ErrOrNil(); err != nil {
			logger.Warn("prompt: shutdown: %v", err)
		}
	}()

	fmt.Printf("connected to %s %s (protocol v%d)\n", conn.info.AgentInfo.Name, conn.info.AgentInfo.Version, conn.info.ProtocolVersion)

	if promptFlags.sessionID != "" {
		if _, err := conn.engine.LoadSession(ctx, session.LoadSessionRequest{SessionID: promptFlags.sessionID, Cwd: cwd}); err != nil {
			return fmt.Errorf("loading session: %w", err)
		}
	} else {
		if _, err := conn.engine.NewSession(ctx, session.NewSessionRequest{Cwd: cwd}); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
	}

	resp, err := conn.engine.Prompt(ctx, []session.ContentBlock{session.TextBlock(text)})
	if err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}

	if pub != nil {
		if stats, sid, ok := conn.engine.CurrentTurnStats(); ok {
			pub.PublishTurn(telemetry.TurnEvent{
				SessionID:       sid,
				TurnSeq:         stats.TurnSeq,
				FirstChunkMs:    stats.FirstChunkMs,
				FirstToolCallMs: stats.FirstToolCallMs,
				ChunkCount:      stats.ChunkCount,
				ByteCount:       stats.ByteCount,
				OpenToolCalls:   stats.OpenToolCalls,
			})
		}
	}

	fmt.Println()
	fmt.Println(styleStatusBar.Render(fmt.Sprintf("-- stop_reason=%s --", resp.StopReason)))
	if resp.Usage != nil {
		fmt.Println(styleStatusBar.Render(fmt.Sprintf("-- tokens in=%d out=%d --", resp.Usage.InputTokens, resp.Usage.OutputTokens)))
	}
	return nil
}

// editInEditor opens $EDITOR (or a sane default) on a temp file seeded with
// initial, and returns its contents after the editor exits.
func editInEditor(initial string) (string, error) {
	tmpfile, err := os.CreateTemp("", "acphost-prompt-*.md")
	if err != nil {
		return "", fmt.Errorf("creating prompt scratch file: %w", err)
	}
	defer os.Remove(tmpfile.Name())

	if initial != "" {
		if _, err := tmpfile.WriteString(initial); err != nil {
			tmpfile.Close()
			return "", fmt.Errorf("writing prompt scratch file: %w", err)
		}
	}
	if err := tmpfile.Close(); err != nil {
		return "", fmt.Errorf("closing prompt scratch file: %w", err)
	}

	cmd, err := editor.Command("acphost", tmpfile.Name())
	if err != nil {
		return "", fmt.Errorf("resolving editor: %w", err)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running editor: %w", err)
	}

	content, err := os.ReadFile(tmpfile.Name())
	if err != nil {
		return "", fmt.Errorf("reading edited prompt: %w", err)
	}
	return string(content), nil
}

// cliDelegate renders streamed updates to stdout and answers filesystem and
// permission requests directly against the local terminal, in place of the
// interactive approval flows a TUI host would show as modal dialogs.
type cliDelegate struct {
	session.DefaultDelegate
	width int
}

func (d *cliDelegate) OnUpdate(sessionID string, u session.SessionUpdate) {
	for _, c := range u.ThoughtChunks {
		fmt.Print(styleThought.Render(c.Text))
	}
	for _, c := range u.MessageChunks {
		fmt.Print(renderMessageChunk(c.Text, d.width))
	}
	for _, tc := range u.ToolCalls {
		d.renderToolCall(tc)
	}
	if u.Plan != nil {
		renderPlan(*u.Plan)
	}
}

// renderMessageChunk passes a streamed chunk through glamour when it
// contains a newline (so it may hold whole markdown lines); chunks without a
// newline are printed raw so mid-word streaming doesn't stutter through
// repeated re-renders.
func renderMessageChunk(text string, width int) string {
	if !strings.Contains(text, "\n") {
		return text
	}
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(width))
	if err != nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSuffix(rendered, "\n")
}

func (d *cliDelegate) renderToolCall(tc session.ToolCall) {
	style := toolStatusStyle(string(tc.Status))
	fmt.Printf("\n%s %s\n", style.Render("["+string(tc.Status)+"]"), styleToolTitle.Render(tc.Title))

	if tc.Kind == session.ToolKindEdit {
		if args, ok := probeEditArgs(tc.RawInput); ok {
			if diff := renderUnifiedDiff(args.Path, args.Old, args.New); diff != "" {
				fmt.Print(diff)
			}
		}
	}
	for _, c := range tc.Content {
		if c.Type == session.ContentText && c.Text != "" {
			fmt.Println("  " + strings.ReplaceAll(c.Text, "\n", "\n  "))
		}
	}
	if tc.Error != "" {
		fmt.Println(styleErr.Render("  error: " + tc.Error))
	}
}

func renderPlan(p session.Plan) {
	fmt.Println()
	if p.Title != "" {
		fmt.Println(stylePlanTitle.Render(p.Title))
	}
	for _, e := range p.Entries {
		renderPlanEntry(e, 0)
	}
}

func renderPlanEntry(e session.PlanEntry, depth int) {
	mark := map[session.PlanEntryStatus]string{
		session.PlanPending:    "[ ]",
		session.PlanInProgress: "[~]",
		session.PlanComplete:   "[x]",
		session.PlanFailed:     "[!]",
		session.PlanSkipped:    "[-]",
	}[e.Status]
	fmt.Printf("%s%s %s\n", strings.Repeat("  ", depth), mark, e.Title)
	for _, c := range e.Children {
		renderPlanEntry(c, depth+1)
	}
}

func (d *cliDelegate) ChoosePermission(ctx context.Context, req session.RequestPermissionRequest) (string, error) {
	if req.Description != "" {
		fmt.Printf("\npermission requested: %s\n", req.Description)
	}
	for i, opt := range req.Options {
		fmt.Printf("  %d) %s [%s]\n", i+1, opt.Name, opt.Kind)
	}
	fmt.Print("choose an option number (default: reject): ")

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	for i, opt := range req.Options {
		if line == fmt.Sprintf("%d", i+1) {
			return opt.OptionID, nil
		}
	}
	return session.RejectOnceOptionID, nil
}

func (d *cliDelegate) ReadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *cliDelegate) WriteFile(ctx context.Context, path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
