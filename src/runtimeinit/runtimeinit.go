package runtimeinit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"screen-answer-llm/src/analysis"
	"screen-answer-llm/src/clipboard"
	"screen-answer-llm/src/config"
	"screen-answer-llm/src/llm"
	"screen-answer-llm/src/logutil"
	"screen-answer-llm/src/notification"
)

type Options struct {
	LoadOptions          config.LoadOptions
	ShowBlockingLLMError bool
	SkipPing             bool
	InitClipboard        bool
	// Logger replaces the configured process logger when set.
	Logger *slog.Logger

	// Overrides for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// Runtime is what every entry point needs after startup.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	LLM      *llm.Client
	Pipeline *analysis.Pipeline
	Prompt   string
}

// Bootstrap loads configuration, sets up logging, checks the model endpoint
// and prepares the clipboard.
func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logutil.Setup(cfg.EnableFileLogging, cfg.LogLevel)
	}

	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
	}

	client, err := llm.New(llm.Config{
		APIKeys:    cfg.APIKeys,
		Models:     cfg.Models,
		Providers:  cfg.Providers,
		BaseURL:    opts.BaseURL,
		HTTPClient: opts.HTTPClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure model client: %w", err)
	}

	if !opts.SkipPing {
		if err := client.Ping(ctx); err != nil {
			if opts.ShowBlockingLLMError {
				notification.ShowBlockingError("LLM unavailable", fmt.Sprintf("Startup check failed: %v\n\nPlease verify your API key and network connectivity.", err))
			}
			return nil, fmt.Errorf("startup check failed: %w", err)
		}
		logger.Info("LLM ping succeeded", "key", logutil.RedactKey(cfg.APIKey()), "models", cfg.Models)
	}

	prompt, err := analysis.LoadPrompt(cfg.PromptFile)
	if err != nil {
		return nil, err
	}

	if opts.InitClipboard {
		if err := clipboard.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	}

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		LLM:      client,
		Pipeline: analysis.New(client, logger),
		Prompt:   prompt,
	}, nil
}
