package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	maxRetries     = 3
	initialDelay   = 1 * time.Second
)

var (
	ErrNoAPIKey = errors.New("API key is required")
	ErrNoModel  = errors.New("model is required")
	ErrNoAnswer = errors.New("model returned no text")
)

// Config describes the fallback ladder: every API key is tried in order, and
// for each key every model in order.
type Config struct {
	APIKeys      []string
	Models       []string
	Providers    []string
	BaseURL      string
	HTTPClient   *http.Client
	MaxRetries   int
	InitialDelay time.Duration
	Logger       *slog.Logger
}

// Client talks to an OpenRouter-compatible chat completions endpoint.
type Client struct {
	cfg Config
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Client, error) {
	cfg.APIKeys = nonEmpty(cfg.APIKeys)
	cfg.Models = nonEmpty(cfg.Models)
	if len(cfg.APIKeys) == 0 {
		return nil, ErrNoAPIKey
	}
	if len(cfg.Models) == 0 {
		return nil, ErrNoModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 45 * time.Second}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = maxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = initialDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{cfg: cfg}, nil
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// OpenRouter API structures
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ProviderPreferences struct {
	Order          []string `json:"order,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type ChatRequest struct {
	Model       string               `json:"model"`
	Messages    []Message            `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Provider    *ProviderPreferences `json:"provider,omitempty"`
}

type ChatResponse struct {
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

type Choice struct {
	Message ResponseMessage `json:"message"`
}

type ResponseMessage struct {
	Content string `json:"content"`
}

type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"` // string or number depending on provider
}

// StatusError carries the HTTP status of a failed call so the ladder can
// decide whether to retry, switch model, or switch credential.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Message)
}

type step int

const (
	stepRetry step = iota
	stepNextModel
	stepNextKey
)

func classify(err error) step {
	var se *StatusError
	if !errors.As(err, &se) {
		return stepRetry
	}
	switch {
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		return stepNextKey
	case se.StatusCode == http.StatusPaymentRequired || se.StatusCode == http.StatusTooManyRequests,
		se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusBadRequest:
		return stepNextModel
	default:
		return stepRetry
	}
}

func (c *Client) providerPreferences() *ProviderPreferences {
	if len(c.cfg.Providers) == 0 {
		return nil
	}
	allowFallbacks := false
	return &ProviderPreferences{Order: c.cfg.Providers, AllowFallbacks: &allowFallbacks}
}

// QueryVision sends prompt and a PNG image through the fallback ladder and
// returns the first non-empty reply.
func (c *Client) QueryVision(ctx context.Context, prompt string, imageData []byte) (string, error) {
	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData)

	var lastErr error
keys:
	for ki, key := range c.cfg.APIKeys {
		for _, model := range c.cfg.Models {
			request := ChatRequest{
				Model: model,
				Messages: []Message{{
					Role: "user",
					Content: []Content{
						{Type: "text", Text: prompt},
						{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
					},
				}},
				Temperature: 0.1,
				MaxTokens:   2000,
				Provider:    c.providerPreferences(),
			}

			text, err := c.queryModel(ctx, key, request)
			if err == nil {
				return text, nil
			}
			lastErr = err
			if ctx.Err() != nil {
				break keys
			}
			c.cfg.Logger.Warn("model attempt failed", "model", model, "key_index", ki, "error", err)
			if classify(err) == stepNextKey {
				continue keys
			}
		}
	}
	if lastErr == nil {
		lastErr = ErrNoAnswer
	}
	return "", fmt.Errorf("all models failed: %w", lastErr)
}

// queryModel retries one model with growing delays. Status errors that
// point at the model or credential end the retries early.
func (c *Client) queryModel(ctx context.Context, key string, request ChatRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.cfg.InitialDelay) * (1.5 * float64(attempt)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		response, err := c.makeAPIRequest(ctx, key, request)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil || classify(err) != stepRetry {
				return "", err
			}
			continue
		}
		if len(response.Choices) == 0 {
			lastErr = errors.New("no choices in API response")
			continue
		}
		text := strings.TrimSpace(response.Choices[0].Message.Content)
		if text == "" {
			return "", ErrNoAnswer
		}
		return text, nil
	}
	return "", fmt.Errorf("failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) makeAPIRequest(ctx context.Context, key string, request ChatRequest) (*ChatResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response ChatResponse
	decodeErr := json.Unmarshal(body, &response)

	if resp.StatusCode != http.StatusOK {
		msg := ""
		if decodeErr == nil && response.Error != nil {
			msg = response.Error.Message
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s (type: %s, code: %v)", response.Error.Message, response.Error.Type, response.Error.Code)
	}
	return &response, nil
}

func (c *Client) setHeaders(req *http.Request, key string) {
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("HTTP-Referer", "https://github.com/screen-answer-llm/screen-answer-llm")
	req.Header.Set("X-Title", "Screen Answer Tool")
}

// Ping checks that at least one configured key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var lastErr error
	for _, key := range c.cfg.APIKeys {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/auth/key", nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req, key)
		resp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("ping failed: %w", err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
		lastErr = &StatusError{StatusCode: resp.StatusCode}
	}
	return lastErr
}
