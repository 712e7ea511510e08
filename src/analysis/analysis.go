// Package analysis sends a captured image to the vision model.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// DefaultPrompt asks for the JSON shape the interpreter understands.
const DefaultPrompt = "The image shows a question, possibly with lettered options.\n" +
	"Reply with ONLY a JSON object, no markdown, with these fields:\n" +
	"- \"question_type\": \"multiple_choice\" or \"free_response\"\n" +
	"- \"answer\": the single option letter (A-Z) for multiple choice\n" +
	"- \"free_response_answer\": the full answer text for free response questions\n" +
	"If the question cannot be read, reply {\"question_type\":\"unknown\",\"answer\":\"\"}."

const (
	maxImageSizeMB = 10
	maxImageSize   = maxImageSizeMB * 1024 * 1024
)

var (
	// ErrPipeline marks failures of the model call itself (transport, auth,
	// quota), as opposed to problems reading the image file.
	ErrPipeline = errors.New("analysis pipeline failed")
	// ErrBadImage marks an image file that cannot be sent.
	ErrBadImage = errors.New("image unusable")
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// VisionClient is the transport the pipeline calls.
type VisionClient interface {
	QueryVision(ctx context.Context, prompt string, imageData []byte) (string, error)
}

// Pipeline reads an image from disk and asks the model about it.
type Pipeline struct {
	client VisionClient
	logger *slog.Logger
}

func New(client VisionClient, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{client: client, logger: logger}
}

// Analyze returns the model's raw reply for the image at imagePath. An
// empty prompt uses DefaultPrompt.
func (p *Pipeline) Analyze(ctx context.Context, prompt, imagePath string) (string, error) {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	imageData, err := ReadImage(imagePath)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := p.client.QueryVision(ctx, prompt, imageData)
	elapsed := time.Since(start)
	if err != nil {
		p.logger.Warn("analysis failed", "image", imagePath, "elapsed", elapsed, "error", err)
		return "", fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty reply", ErrPipeline)
	}
	p.logger.Info("analysis completed", "image", imagePath, "elapsed", elapsed, "chars", len(text))
	return text, nil
}

// ReadImage loads a PNG from disk and checks its size and magic number.
func ReadImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrBadImage, path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrBadImage, path)
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("%w: %s exceeds maximum size of %d MB", ErrBadImage, path, maxImageSizeMB)
	}
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return nil, fmt.Errorf("%w: %s is not a valid PNG file (invalid magic number)", ErrBadImage, path)
	}
	return data, nil
}

// LoadPrompt reads a prompt override from path; an empty path gives the
// default prompt.
func LoadPrompt(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return DefaultPrompt, nil
	}
	return prompt, nil
}
