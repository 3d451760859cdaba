package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-duplex/core"
	"github.com/koscakluka/ema-duplex/core/audio/miniaudio"
	"github.com/koscakluka/ema-duplex/core/audio/portaudio"
	"github.com/koscakluka/ema-duplex/core/fallback"
	"github.com/koscakluka/ema-duplex/core/transport/websocket"
)

const usage = `usage: ema-voice [command] [flags]

commands:
  run      start a voice conversation (default)
  schema   print the JSON schema of the duplex protocol
  history  print the stored conversation of the current session
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "ema-voice:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	command := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(flags.Output(), usage)
		flags.PrintDefaults()
	}
	configPath := flags.String("config", "", "path to the YAML config file")
	streamURL := flags.String("url", "", "duplex websocket endpoint")
	fallbackURL := flags.String("fallback-url", "", "base url of the upload and history endpoints")
	sessionID := flags.String("session", "", "use this session id instead of the stored one")
	continuous := flags.Bool("continuous", false, "listen again after every reply")
	archiveDir := flags.String("archive", "", "save every reply as a WAV file in this directory")
	logLevel := flags.String("log-level", "", "debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := Load(*configPath)
	if err != nil {
		return err
	}
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.Server.StreamURL = *streamURL
		case "fallback-url":
			cfg.Server.FallbackURL = *fallbackURL
		case "session":
			cfg.Session.ID = *sessionID
		case "continuous":
			cfg.Audio.ContinuousListening = *continuous
		case "archive":
			cfg.Audio.ArchiveDir = *archiveDir
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	switch command {
	case "run":
		return runConversation(ctx, cfg)
	case "schema":
		return printSchema(stdout)
	case "history":
		return printHistory(ctx, cfg, stdout)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runConversation(ctx context.Context, cfg *Config) error {
	shutdownLogging, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownLogging(shutdownCtx)
	}()

	microphone, err := portaudio.NewClient(cfg.Audio.CaptureFrameSize)
	if err != nil {
		return fmt.Errorf("failed to open microphone: %w", err)
	}
	defer microphone.Close()

	speaker, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to open speaker: %w", err)
	}
	defer speaker.Close()

	opts, err := componentOptions(cfg)
	if err != nil {
		return err
	}
	opts = append(opts,
		orchestration.WithCaptureDevice(microphone),
		orchestration.WithPlaybackDevice(speaker),
		orchestration.WithMonitorTap(speaker),
	)

	// program is assigned before the orchestrator starts, which only
	// happens from the program's Init.
	var program *tea.Program
	opts = append(opts, uiOptions(func(msg tea.Msg) { program.Send(msg) })...)

	orchestrator := orchestration.NewOrchestrator(opts...)
	defer orchestrator.Close()

	program = tea.NewProgram(newModel(ctx, orchestrator), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// componentOptions builds the transport, fallback and session options shared
// by every command that talks to the server.
func componentOptions(cfg *Config) ([]orchestration.OrchestratorOption, error) {
	opts := []orchestration.OrchestratorOption{
		orchestration.WithSessionStore(orchestration.NewFileSessionStore(cfg.Session.File)),
		orchestration.WithCaptureFrameSize(cfg.Audio.CaptureFrameSize),
		orchestration.WithBargeInThreshold(cfg.Audio.BargeInThreshold),
		orchestration.WithAnalysisWindow(cfg.Audio.AnalysisWindow),
		orchestration.WithSamplingInterval(cfg.Audio.SamplingInterval),
		orchestration.WithContinuousListening(cfg.Audio.ContinuousListening),
		orchestration.WithResponseArchive(cfg.Audio.ArchiveDir),
	}
	if cfg.Session.ID != "" {
		opts = append(opts, orchestration.WithSessionID(cfg.Session.ID))
	}

	if cfg.Server.StreamURL != "" {
		session := websocket.NewSession(cfg.Server.StreamURL,
			websocket.WithReconnectPolicy(websocket.ReconnectPolicy{
				Delay:       cfg.Server.ReconnectDelay,
				MaxAttempts: cfg.Server.MaxReconnectAttempts,
			}),
		)
		opts = append(opts, orchestration.WithTransport(session))
	}

	if cfg.Server.FallbackURL != "" {
		client, err := fallback.NewClient(cfg.Server.FallbackURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestration.WithFallbackClient(client))
	}

	return opts, nil
}

func printSchema(w io.Writer) error {
	schema, err := websocket.SchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to build schema: %w", err)
	}
	_, err = fmt.Fprintln(w, string(schema))
	return err
}

func printHistory(ctx context.Context, cfg *Config, w io.Writer) error {
	if cfg.Server.FallbackURL == "" {
		return errors.New("history needs a fallback url")
	}
	client, err := fallback.NewClient(cfg.Server.FallbackURL)
	if err != nil {
		return err
	}

	sessionID := cfg.Session.ID
	if sessionID == "" {
		sessionID, err = orchestration.NewFileSessionStore(cfg.Session.File).Load()
		if err != nil {
			return err
		}
	}
	if sessionID == "" {
		return errors.New("no stored session")
	}

	messages, err := client.History(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, message := range messages {
		if _, err := fmt.Fprintf(w, "%s: %s\n", message.Role, message.Text()); err != nil {
			return err
		}
	}
	return nil
}
