package eventloop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-answer-llm/src/answer"
	"screen-answer-llm/src/coordinator"
	"screen-answer-llm/src/corners"
	"screen-answer-llm/src/hotkey"
	"screen-answer-llm/src/singleinstance"
	"screen-answer-llm/src/tray"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeCoordinator struct {
	mu       sync.Mutex
	calls    []string
	busy     bool
	snapshot coordinator.Snapshot
}

func (f *fakeCoordinator) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeCoordinator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCoordinator) UpdateCorner(c corners.Corner, p corners.Point) coordinator.UpdateResult {
	f.record("update " + c.String())
	return coordinator.UpdateResult{Changed: true}
}

func (f *fakeCoordinator) CaptureNow() error {
	f.record("capture")
	if f.busy {
		return coordinator.ErrCaptureUnavailable
	}
	return nil
}

func (f *fakeCoordinator) Reset() { f.record("reset") }

func (f *fakeCoordinator) Snapshot() coordinator.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

type fakeConn struct {
	req     singleinstance.Request
	reply   string
	failed  bool
	closed  atomic.Bool
	replied chan struct{}
}

func newFakeConn(cmd singleinstance.Command) *fakeConn {
	return &fakeConn{req: singleinstance.Request{Command: cmd}, replied: make(chan struct{})}
}

func (c *fakeConn) Request() singleinstance.Request { return c.req }
func (c *fakeConn) RespondSuccess(text string) error {
	c.reply = text
	close(c.replied)
	return nil
}
func (c *fakeConn) RespondError(msg string) error {
	c.reply, c.failed = msg, true
	close(c.replied)
	return nil
}
func (c *fakeConn) Close() error { c.closed.Store(true); return nil }

type fakeServer struct{ conns chan singleinstance.Conn }

func (s *fakeServer) Start(context.Context) error { return nil }
func (s *fakeServer) Port() int                   { return 0 }
func (s *fakeServer) Close() error                { return nil }
func (s *fakeServer) Next(ctx context.Context) (singleinstance.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c, ok := <-s.conns:
		if !ok {
			return nil, net.ErrClosed
		}
		return c, nil
	}
}

func runLoop(t *testing.T, opts Options) (cancel func(), done <-chan error) {
	t.Helper()
	opts.Logger = quiet
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- New(opts).Run(ctx) }()
	t.Cleanup(stop)
	return stop, errCh
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestHotkeysDispatchInOrder(t *testing.T) {
	coord := &fakeCoordinator{}
	hotkeys := make(chan hotkey.Event, 4)
	runLoop(t, Options{Coordinator: coord, Hotkeys: hotkeys})

	hotkeys <- hotkey.Event{Action: hotkey.SetTopLeft, Point: corners.Point{X: 1, Y: 2}}
	hotkeys <- hotkey.Event{Action: hotkey.SetBottomRight, Point: corners.Point{X: 3, Y: 4}}
	hotkeys <- hotkey.Event{Action: hotkey.CaptureNow}

	waitFor(t, func() bool { return len(coord.Calls()) == 3 })
	assert.Equal(t, []string{"update top-left", "update bottom-right", "capture"}, coord.Calls())
}

func TestMenuCopyAnswer(t *testing.T) {
	coord := &fakeCoordinator{snapshot: coordinator.Snapshot{Answer: answer.State{Kind: answer.Letter, Letter: 'C'}}}
	menu := make(chan tray.MenuAction, 1)
	copied := make(chan string, 1)
	runLoop(t, Options{
		Coordinator: coord,
		Menu:        menu,
		Copy:        func(s string) error { copied <- s; return nil },
	})

	menu <- tray.MenuCopyAnswer
	select {
	case got := <-copied:
		assert.Equal(t, "C", got)
	case <-time.After(2 * time.Second):
		t.Fatal("copy not called")
	}
}

func TestMenuOpenFreeFormOnlyForFreeForm(t *testing.T) {
	coord := &fakeCoordinator{snapshot: coordinator.Snapshot{Answer: answer.State{Kind: answer.Letter, Letter: 'C'}}}
	menu := make(chan tray.MenuAction, 3)
	opened := make(chan string, 2)
	runLoop(t, Options{
		Coordinator: coord,
		Menu:        menu,
		OpenText:    func(s string) (string, error) { opened <- s; return "x.txt", nil },
	})

	menu <- tray.MenuOpenFreeForm
	menu <- tray.MenuReset
	waitFor(t, func() bool { return len(coord.Calls()) == 1 })
	coord.mu.Lock()
	coord.snapshot = coordinator.Snapshot{Answer: answer.State{Kind: answer.FreeForm, Text: "Paris"}}
	coord.mu.Unlock()
	menu <- tray.MenuOpenFreeForm

	select {
	case got := <-opened:
		assert.Equal(t, "Paris", got)
	case <-time.After(2 * time.Second):
		t.Fatal("open not called")
	}
	assert.Empty(t, opened)
}

func TestMenuQuitStopsLoop(t *testing.T) {
	menu := make(chan tray.MenuAction, 1)
	quit := make(chan struct{})
	_, done := runLoop(t, Options{
		Coordinator: &fakeCoordinator{},
		Menu:        menu,
		OnQuit:      func() { close(quit) },
	})

	menu <- tray.MenuQuit
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	<-quit
}

func TestContextCancelStopsLoop(t *testing.T) {
	cancel, done := runLoop(t, Options{Coordinator: &fakeCoordinator{}})
	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestResidentCommands(t *testing.T) {
	coord := &fakeCoordinator{busy: true, snapshot: coordinator.Snapshot{Answer: answer.State{Kind: answer.Loading}, Busy: true}}
	srv := &fakeServer{conns: make(chan singleinstance.Conn, 3)}
	runLoop(t, Options{Coordinator: coord, Server: srv})

	capture := newFakeConn(singleinstance.CommandCapture)
	status := newFakeConn(singleinstance.CommandStatus)
	reset := newFakeConn(singleinstance.CommandReset)
	srv.conns <- capture
	srv.conns <- status
	srv.conns <- reset

	for _, c := range []*fakeConn{capture, status, reset} {
		select {
		case <-c.replied:
		case <-time.After(2 * time.Second):
			t.Fatalf("no reply to %s", c.req.Command)
		}
	}

	assert.True(t, capture.failed)
	assert.Contains(t, capture.reply, "capture unavailable")
	assert.False(t, status.failed)
	assert.Contains(t, status.reply, "state: loading")
	assert.Contains(t, status.reply, "busy: true")
	assert.Equal(t, "reset\n", reset.reply)
	waitFor(t, func() bool { return reset.closed.Load() })
	assert.Equal(t, []string{"capture", "reset"}, coord.Calls())
}
