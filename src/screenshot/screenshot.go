package screenshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/kbinani/screenshot"

	"screen-answer-llm/src/corners"
)

var (
	// ErrRegionInvalid is returned for degenerate rectangles and rectangles
	// that miss every active display.
	ErrRegionInvalid = errors.New("capture region invalid")
	// ErrImageNotReady is returned when the captured file does not become
	// readable before the deadline.
	ErrImageNotReady = errors.New("captured image not ready")
)

const (
	DefaultReadyTimeout = 3 * time.Second
	DefaultReadyPoll    = 50 * time.Millisecond
)

// Image is one captured region on disk.
type Image struct {
	Path string
	Rect image.Rectangle
}

// Grabber reads pixels from the screen.
type Grabber interface {
	Displays() []image.Rectangle
	CaptureRect(rect image.Rectangle) (*image.RGBA, error)
}

type screenGrabber struct{}

// NewScreenGrabber returns a Grabber backed by the active displays.
func NewScreenGrabber() Grabber { return screenGrabber{} }

func (screenGrabber) Displays() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	displays := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		displays = append(displays, screenshot.GetDisplayBounds(i))
	}
	return displays
}

func (screenGrabber) CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(rect)
}

// Clamp validates rect against the displays. A rectangle that partially
// overlaps a display is cut down to the display it overlaps most.
func Clamp(rect image.Rectangle, displays []image.Rectangle) (image.Rectangle, error) {
	rect = rect.Canon()
	if rect.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: degenerate rectangle %v", ErrRegionInvalid, rect)
	}
	if len(displays) == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: no active displays found", ErrRegionInvalid)
	}
	var best image.Rectangle
	bestArea := 0
	for _, d := range displays {
		in := rect.Intersect(d)
		if area := in.Dx() * in.Dy(); area > bestArea {
			best, bestArea = in, area
		}
	}
	if bestArea == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %v is outside every display", ErrRegionInvalid, rect)
	}
	return best, nil
}

// Options configures a Capturer.
type Options struct {
	Dir          string
	Grabber      Grabber
	ReadyTimeout time.Duration
	ReadyPoll    time.Duration
	Logger       *slog.Logger
}

// Capturer grabs a rectangle and stores it as a PNG under Dir.
type Capturer struct {
	dir          string
	grabber      Grabber
	readyTimeout time.Duration
	readyPoll    time.Duration
	logger       *slog.Logger
	seq          atomic.Uint64
}

// NewCapturer fills in defaults: the OS temp dir, the live screen, and the
// default readiness deadline.
func NewCapturer(opts Options) *Capturer {
	c := &Capturer{
		dir:          opts.Dir,
		grabber:      opts.Grabber,
		readyTimeout: opts.ReadyTimeout,
		readyPoll:    opts.ReadyPoll,
		logger:       opts.Logger,
	}
	if c.dir == "" {
		c.dir = filepath.Join(os.TempDir(), "screen-answer-llm")
	}
	if c.grabber == nil {
		c.grabber = NewScreenGrabber()
	}
	if c.readyTimeout <= 0 {
		c.readyTimeout = DefaultReadyTimeout
	}
	if c.readyPoll <= 0 {
		c.readyPoll = DefaultReadyPoll
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Capture grabs the rectangle between the two corners, writes it to disk and
// waits for the file to become readable.
func (c *Capturer) Capture(ctx context.Context, topLeft, bottomRight corners.Point) (Image, error) {
	requested := image.Rect(topLeft.X, topLeft.Y, bottomRight.X, bottomRight.Y)
	rect, err := Clamp(requested, c.grabber.Displays())
	if err != nil {
		return Image{}, err
	}
	if rect != requested.Canon() {
		c.logger.Debug("capture region clamped", "requested", requested.Canon(), "clamped", rect)
	}

	img, err := c.grabber.CaptureRect(rect)
	if err != nil {
		return Image{}, fmt.Errorf("failed to capture region: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, fmt.Errorf("failed to encode image as PNG: %w", err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return Image{}, fmt.Errorf("failed to create capture dir: %w", err)
	}
	name := fmt.Sprintf("capture-%s-%d.png", time.Now().Format("20060102-150405"), c.seq.Add(1))
	path := filepath.Join(c.dir, name)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return Image{}, err
	}

	if err := WaitReady(ctx, path, c.readyTimeout, c.readyPoll); err != nil {
		return Image{}, err
	}
	c.logger.Debug("region captured", "path", path, "rect", rect, "bytes", buf.Len())
	return Image{Path: path, Rect: rect}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write capture: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish capture: %w", err)
	}
	return nil
}
