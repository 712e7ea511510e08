package config

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"
	AltConfigEnvVar   = "SCREEN_ANSWER_LLM"

	DefaultHotkeyTopLeft     = "Ctrl+Alt+1"
	DefaultHotkeyBottomRight = "Ctrl+Alt+2"
	DefaultHotkeyCapture     = "Ctrl+Alt+3"
	DefaultRequestLogPath    = "requests.db"
	DefaultModel             = "google/gemini-2.5-flash"
)

type LoadOptions struct {
	APIKeyPathOverride string
	// EnvPath, when set, replaces the executable-dir/.env lookup.
	EnvPath string
}

type Config struct {
	APIKeys           []string
	APIKeyPath        string
	Models            []string
	Providers         []string
	EnableFileLogging bool
	LogLevel          slog.Level

	HotkeyTopLeft     string
	HotkeyBottomRight string
	HotkeyCapture     string

	CaptureDir       string
	ImageReadyTimeout time.Duration
	ImageReadyPoll   time.Duration
	AnalysisDeadline time.Duration
	RequestLogPath   string
	PromptFile       string

	InitialTopLeft     image.Point
	InitialBottomRight image.Point
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env in the executable directory
	// 2) otherwise the file named by SCREEN_ANSWER_LLM
	envPath := opts.EnvPath
	if envPath == "" {
		envPath = resolveEnvPath()
	}
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		APIKeys:           resolveAPIKeys(apiKeyPath),
		APIKeyPath:        apiKeyPath,
		Models:            splitList(getEnvWithDefault("MODEL", DefaultModel)),
		Providers:         splitList(os.Getenv("PROVIDERS")),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		LogLevel:          parseLevel(os.Getenv("LOG_LEVEL")),
		HotkeyTopLeft:     getEnvWithDefault("HOTKEY_TOP_LEFT", DefaultHotkeyTopLeft),
		HotkeyBottomRight: getEnvWithDefault("HOTKEY_BOTTOM_RIGHT", DefaultHotkeyBottomRight),
		HotkeyCapture:     getEnvWithDefault("HOTKEY_CAPTURE", DefaultHotkeyCapture),
		CaptureDir:        getEnvWithDefault("CAPTURE_DIR", filepath.Join(os.TempDir(), "screen-answer-llm")),
		ImageReadyTimeout:  positiveDuration("IMAGE_READY_TIMEOUT_MS", 3000, time.Millisecond),
		ImageReadyPoll:    positiveDuration("IMAGE_READY_POLL_MS", 50, time.Millisecond),
		AnalysisDeadline:  positiveDuration("ANALYSIS_DEADLINE_SEC", 60, time.Second),
		RequestLogPath:    getEnvWithDefault("REQUEST_LOG_PATH", DefaultRequestLogPath),
		PromptFile:        strings.TrimSpace(os.Getenv("PROMPT_FILE")),
	}

	cfg.InitialTopLeft = pointWithDefault("INITIAL_TOP_LEFT", image.Pt(100, 100))
	cfg.InitialBottomRight = pointWithDefault("INITIAL_BOTTOM_RIGHT", image.Pt(700, 500))

	return cfg, nil
}

// APIKey returns the first configured key, or "".
func (c *Config) APIKey() string {
	if len(c.APIKeys) == 0 {
		return ""
	}
	return c.APIKeys[0]
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(AltConfigEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

// resolveAPIKeys prefers the key file (one key per line or comma separated)
// over OPENROUTER_API_KEY.
func resolveAPIKeys(keyPath string) []string {
	if data, err := os.ReadFile(keyPath); err == nil {
		raw := strings.ReplaceAll(string(data), "\n", ",")
		if keys := splitList(raw); len(keys) > 0 {
			return keys
		}
	}

	return splitList(os.Getenv("OPENROUTER_API_KEY"))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func positiveDuration(key string, def int, unit time.Duration) time.Duration {
	n := def
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	return time.Duration(n) * unit
}

// ParsePoint reads "x,y".
func ParsePoint(s string) (image.Point, error) {
	var p image.Point
	if _, err := fmt.Sscanf(strings.ReplaceAll(s, " ", ""), "%d,%d", &p.X, &p.Y); err != nil {
		return image.Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return p, nil
}

func pointWithDefault(key string, def image.Point) image.Point {
	if v := os.Getenv(key); v != "" {
		if p, err := ParsePoint(v); err == nil {
			return p
		}
	}
	return def
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
