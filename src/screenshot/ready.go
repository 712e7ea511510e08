package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// WaitReady blocks until path holds a readable PNG, the timeout passes, or ctx
// ends. Directory events wake it early; the poll interval bounds the wait
// between checks when events are missed or unavailable.
func WaitReady(ctx context.Context, path string, timeout, poll time.Duration) error {
	if isReady(path) {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	if poll <= 0 {
		poll = DefaultReadyPoll
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if w, err := fsnotify.NewWatcher(); err == nil {
		defer w.Close()
		if err := w.Add(filepath.Dir(path)); err == nil {
			events, errs = w.Events, w.Errors
		}
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	want := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %v", ErrImageNotReady, path, timeout)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) == want && isReady(path) {
				return nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		case <-ticker.C:
			if isReady(path) {
				return nil
			}
		}
	}
}

func isReady(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(pngMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, pngMagic)
}
