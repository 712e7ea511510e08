package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screen-answer-llm/src/analysis"
	"screen-answer-llm/src/config"
	"screen-answer-llm/src/interpret"
	"screen-answer-llm/src/logutil"
	"screen-answer-llm/src/runtimeinit"
)

const maxResponseSize = 1 << 20

type cliOptions struct {
	filePath   string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
	promptFile string
}

// AnalysisResult is the --json output of both subcommands.
type AnalysisResult struct {
	Kind      string  `json:"kind"`
	Answer    string  `json:"answer"`
	Raw       string  `json:"raw,omitempty"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds,omitempty"`
}

func main() {
	if err := runWithArgs(normalizeLegacyArgs(os.Args), os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		args = []string{"screen-answer-cli"}
	}
	cmd := newRootCmd(&cliOptions{})
	cmd.SetArgs(args[1:])
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(context.Background())
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "screen-answer-cli",
		Short:         "Ask the vision model about a PNG, or interpret a saved reply",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	analyze := &cobra.Command{
		Use:   "analyze",
		Short: "Send a PNG to the model and print the interpreted answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, *opts)
		},
	}
	analyze.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	analyze.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	analyze.Flags().StringVar(&opts.promptFile, "prompt-file", "", "Prompt override file")
	_ = analyze.MarkFlagRequired("file")

	interp := &cobra.Command{
		Use:   "interpret",
		Short: "Interpret a saved model reply without calling the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInterpret(cmd, *opts)
		},
	}
	interp.Flags().StringVar(&opts.filePath, "file", "", "Path to the reply text (use '-' for stdin)")
	_ = interp.MarkFlagRequired("file")

	root.AddCommand(analyze, interp)
	return root
}

// normalizeLegacyArgs rewrites single-dash long flags to the double-dash
// form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "api-key-path", "prompt-file"} {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}
	return normalized
}

func logger(cmd *cobra.Command, verbose bool) *slog.Logger {
	if !verbose {
		return logutil.Discard()
	}
	return logutil.New(cmd.ErrOrStderr(), slog.LevelDebug, true)
}

func runAnalyze(cmd *cobra.Command, opts cliOptions) error {
	log := logger(cmd, opts.verbose)

	if opts.promptFile != "" {
		os.Setenv("PROMPT_FILE", opts.promptFile)
	}
	rt, err := runtimeinit.Bootstrap(cmd.Context(), runtimeinit.Options{
		LoadOptions: config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath},
		SkipPing:    true,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	log.Debug("config loaded", "models", rt.Config.Models, "api_key_path", rt.Config.APIKeyPath)

	path := opts.filePath
	if path == "-" {
		tmp, err := spoolStdin(cmd.InOrStdin())
		if err != nil {
			return err
		}
		defer os.Remove(tmp)
		path = tmp
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rt.Config.AnalysisDeadline)
	defer cancel()

	start := time.Now()
	raw, err := rt.Pipeline.Analyze(ctx, rt.Prompt, path)
	if err != nil {
		log.Debug("analysis failed", "error", err, logutil.Since(start))
		if errors.Is(err, analysis.ErrBadImage) {
			return fmt.Errorf("invalid input: %w", err)
		}
		return fmt.Errorf("analysis failed: %w", err)
	}
	log.Debug("analysis finished", "chars", len(raw), logutil.Since(start))

	return outputResult(cmd.OutOrStdout(), interpret.Interpret(raw), raw, opts.filePath, time.Since(start), opts.jsonOutput)
}

func runInterpret(cmd *cobra.Command, opts cliOptions) error {
	var r io.Reader
	if opts.filePath == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(opts.filePath)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", opts.filePath, err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("failed to read reply: %w", err)
	}
	if len(data) > maxResponseSize {
		return fmt.Errorf("reply exceeds maximum size of %d bytes", maxResponseSize)
	}
	raw := string(data)
	return outputResult(cmd.OutOrStdout(), interpret.Interpret(raw), raw, opts.filePath, 0, opts.jsonOutput)
}

// spoolStdin copies a piped PNG to a temp file so it goes through the same
// file checks as --file.
func spoolStdin(r io.Reader) (string, error) {
	f, err := os.CreateTemp("", "screen-answer-stdin-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to buffer stdin: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return f.Name(), nil
}

func outputResult(w io.Writer, res interpret.Result, raw, source string, elapsed time.Duration, jsonOutput bool) error {
	if !jsonOutput {
		if res.Kind == interpret.None {
			return fmt.Errorf("no answer found in model reply")
		}
		_, err := fmt.Fprintln(w, res.String())
		return err
	}

	if source != "-" {
		source = filepath.Clean(source)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(AnalysisResult{
		Kind:      res.Kind.String(),
		Answer:    res.String(),
		Raw:       raw,
		Source:    source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
	}); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
