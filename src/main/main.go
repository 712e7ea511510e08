package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"screen-answer-llm/src/clipboard"
	"screen-answer-llm/src/config"
	"screen-answer-llm/src/coordinator"
	"screen-answer-llm/src/corners"
	"screen-answer-llm/src/eventloop"
	"screen-answer-llm/src/hotkey"
	"screen-answer-llm/src/icon"
	"screen-answer-llm/src/notification"
	"screen-answer-llm/src/requestlog"
	"screen-answer-llm/src/runtimeinit"
	"screen-answer-llm/src/screenshot"
	"screen-answer-llm/src/singleinstance"
	"screen-answer-llm/src/tray"
	"screen-answer-llm/src/worker"
)

const (
	appTitle        = "Screen Answer"
	freeResponseDir = "logs"
	delegateTimeout = 5 * time.Second
)

var errNoResident = errors.New("no resident instance is running")

type mainOptions struct {
	captureNow bool
	status     bool
	reset      bool
	apiKeyPath string
}

// command maps the one-shot flags to a resident command. Empty means run
// as the resident.
func (o mainOptions) command() singleinstance.Command {
	switch {
	case o.captureNow:
		return singleinstance.CommandCapture
	case o.status:
		return singleinstance.CommandStatus
	case o.reset:
		return singleinstance.CommandReset
	default:
		return ""
	}
}

func init() {
	// systray and the hook library want the main OS thread.
	runtime.LockOSThread()
}

func main() {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-answer-llm",
		Short:         "Tray resident that answers the question inside a screen rectangle",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.captureNow, "capture-now", false, "Ask the running resident to capture the current rectangle")
	cmd.Flags().BoolVar(&opts.status, "status", false, "Print the running resident's state")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Clear the running resident's answer")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Override API key file path (default: "+config.DefaultAPIKeyPath+")")
	cmd.MarkFlagsMutuallyExclusive("capture-now", "status", "reset")
	return cmd
}

// normalizeLegacyArgs turns single-dash long flags into the double-dash
// form cobra expects.
func normalizeLegacyArgs(args []string) []string {
	if len(args) <= 1 {
		return args
	}
	out := make([]string, 0, len(args))
	out = append(out, args[0])
	for _, arg := range args[1:] {
		switch {
		case arg == "-capture-now" || strings.HasPrefix(arg, "-capture-now="):
			out = append(out, "-"+arg)
		case arg == "-status" || strings.HasPrefix(arg, "-status="):
			out = append(out, "-"+arg)
		case arg == "-reset" || strings.HasPrefix(arg, "-reset="):
			out = append(out, "-"+arg)
		case arg == "-api-key-path" || strings.HasPrefix(arg, "-api-key-path="):
			out = append(out, "-"+arg)
		default:
			out = append(out, arg)
		}
	}
	return out
}

func run(ctx context.Context, opts mainOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c := opts.command(); c != "" {
		// The port range may live in .env.
		_, _ = config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath})
		return delegate(ctx, singleinstance.NewClient(), c, stdout)
	}
	return runResident(ctx, opts)
}

// delegate hands cmd to the resident and prints its reply.
func delegate(ctx context.Context, client singleinstance.Client, cmd singleinstance.Command, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, delegateTimeout)
	defer cancel()

	delegated, reply, err := client.Send(ctx, cmd)
	if err != nil {
		return fmt.Errorf("resident rejected %s: %w", cmd, err)
	}
	if !delegated {
		return fmt.Errorf("%s: %w", cmd, errNoResident)
	}
	if reply != "" {
		fmt.Fprint(stdout, reply)
		if !strings.HasSuffix(reply, "\n") {
			fmt.Fprintln(stdout)
		}
	}
	return nil
}

func runResident(ctx context.Context, opts mainOptions) error {
	enableDPIAwareness()

	loadOpts := config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath}
	_, _ = config.LoadWithOptions(loadOpts)
	if port, ok := singleinstance.DetectResidentPort(ctx); ok {
		return fmt.Errorf("another instance is already running on port %d", port)
	}

	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions:          loadOpts,
		ShowBlockingLLMError: true,
		InitClipboard:        true,
	})
	if err != nil {
		return err
	}
	cfg, logger := rt.Config, rt.Logger
	logMonitorConfiguration(logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var sink requestlog.Sink = requestlog.Discard{}
	if cfg.RequestLogPath != "" {
		db, err := requestlog.Open(ctx, cfg.RequestLogPath)
		if err != nil {
			logger.Warn("request log disabled", "path", cfg.RequestLogPath, "error", err)
		} else {
			defer db.Close()
			sink = db
		}
	}

	pool := worker.New(1, logger)
	defer pool.Close()

	controller := tray.New(tray.Options{
		Title:   appTitle,
		Tooltip: appTitle,
		Icon:    icon.Render(icon.Descriptor{}),
		Logger:  logger,
	})

	coord, err := coordinator.New(coordinator.Options{
		Capturer: screenshot.NewCapturer(screenshot.Options{
			Dir:          cfg.CaptureDir,
			ReadyTimeout: cfg.ImageReadyTimeout,
			ReadyPoll:    cfg.ImageReadyPoll,
			Logger:       logger,
		}),
		Analyzer:    rt.Pipeline,
		Pool:        pool,
		Display:     controller,
		Sink:        sink,
		Prompt:      rt.Prompt,
		Deadline:    cfg.AnalysisDeadline,
		Logger:      logger,
		TopLeft:     corners.Point(cfg.InitialTopLeft),
		BottomRight: corners.Point(cfg.InitialBottomRight),
	})
	if err != nil {
		return err
	}

	server := singleinstance.NewServer(logger)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("another instance is already running: %w", err)
	}
	defer server.Close()
	controller.SetAbout(fmt.Sprintf("Resident on port %d", server.Port()))

	bindings := hotkey.DefaultBindings(cfg.HotkeyTopLeft, cfg.HotkeyBottomRight, cfg.HotkeyCapture)
	hotkeys, err := hotkey.Listen(ctx, bindings, logger)
	if err != nil {
		return fmt.Errorf("failed to start hotkey listener: %w", err)
	}
	logger.Info("resident ready",
		"port", server.Port(),
		"top_left", cfg.HotkeyTopLeft,
		"bottom_right", cfg.HotkeyBottomRight,
		"capture", cfg.HotkeyCapture)

	loop := eventloop.New(eventloop.Options{
		Coordinator: coord,
		Hotkeys:     hotkeys,
		Menu:        controller.Actions(),
		Server:      server,
		Copy:        clipboard.Write,
		OpenText: func(text string) (string, error) {
			return notification.ShowText(freeResponseDir, text)
		},
		OnQuit: cancel,
		Logger: logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer controller.Stop()
		err := loop.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		controller.Stop()
		return nil
	})

	coord.Refresh()
	controller.Run()
	cancel()

	err = g.Wait()
	logger.Info("resident stopped", "error", err)
	return err
}
