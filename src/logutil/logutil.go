package logutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

const (
	logFileName  = "screen_answer_debug.log"
	maxSizeBytes = 10 * 1024 * 1024 // 10 MB
	maxArchives  = 3
	timeFormat   = "15:04:05"
)

// Setup builds the process logger and installs it as the slog default.
// With file logging on, records go to a size-rotated file (10MB, max 3
// archives); otherwise they go to stderr.
func Setup(enableFileLogging bool, level slog.Level) *slog.Logger {
	var logger *slog.Logger
	if enableFileLogging {
		w, err := OpenRotating(logFileName, maxSizeBytes, maxArchives)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			logger = New(os.Stderr, level, false)
		} else {
			logger = New(w, level, true)
		}
	} else {
		logger = New(os.Stderr, level, false)
	}
	slog.SetDefault(logger)
	return logger
}

// New returns a tint-formatted logger writing to w.
func New(w io.Writer, level slog.Level, noColor bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: timeFormat,
		NoColor:    noColor,
	}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RotatingWriter appends to a file and rotates it to .1, .2, ... once it
// would exceed maxSize. Writes are serialized.
type RotatingWriter struct {
	mu       sync.Mutex
	path     string
	maxSize  int64
	archives int
	f        *os.File
}

// OpenRotating opens path for appending, rotating first if it is already
// over maxSize.
func OpenRotating(path string, maxSize int64, archives int) (*RotatingWriter, error) {
	w := &RotatingWriter{path: path, maxSize: maxSize, archives: archives}
	w.rotateIfNeeded()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	w.f = f
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// naive rotation check per write
	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > w.maxSize {
		_ = w.f.Close()
		w.rotate()
		nf, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

// Close closes the current file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func (w *RotatingWriter) rotateIfNeeded() {
	if st, err := os.Stat(w.path); err == nil && st.Size() > w.maxSize {
		w.rotate()
	}
}

func (w *RotatingWriter) rotate() {
	// remove oldest
	_ = os.Remove(w.archiveName(w.archives))
	// shift others
	for i := w.archives - 1; i >= 1; i-- {
		_ = os.Rename(w.archiveName(i), w.archiveName(i+1))
	}
	// move current to .1
	_ = os.Rename(w.path, w.archiveName(1))
}

func (w *RotatingWriter) archiveName(n int) string {
	return filepath.Join(filepath.Dir(w.path), fmt.Sprintf("%s.%d", filepath.Base(w.path), n))
}

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}

// Since is a small helper for duration attributes.
func Since(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start).Round(time.Millisecond))
}
