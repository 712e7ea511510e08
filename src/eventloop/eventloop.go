package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"screen-answer-llm/src/answer"
	"screen-answer-llm/src/coordinator"
	"screen-answer-llm/src/corners"
	"screen-answer-llm/src/hotkey"
	"screen-answer-llm/src/singleinstance"
	"screen-answer-llm/src/tray"
)

// Coordinator is the part of coordinator.Coordinator the loop drives.
type Coordinator interface {
	UpdateCorner(c corners.Corner, p corners.Point) coordinator.UpdateResult
	CaptureNow() error
	Reset()
	Snapshot() coordinator.Snapshot
}

// Options wires the loop. Any event source may be nil.
type Options struct {
	Coordinator Coordinator
	Hotkeys     <-chan hotkey.Event
	Menu        <-chan tray.MenuAction
	Server      singleinstance.Server

	// Copy puts text on the clipboard.
	Copy func(text string) error
	// OpenText shows a free-form answer to the user.
	OpenText func(text string) (string, error)
	// OnQuit runs when the user picks Quit; Run then returns nil.
	OnQuit func()
	Logger *slog.Logger
}

// Loop is the single listener task: every event is handled to completion,
// in arrival order, before the next one is read.
type Loop struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) *Loop {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{opts: opts, logger: logger}
}

var errQuit = errors.New("quit requested")

// Run processes events until ctx is cancelled or the user quits.
func (l *Loop) Run(ctx context.Context) error {
	hotkeys := l.opts.Hotkeys
	menu := l.opts.Menu

	var reqCh chan singleinstance.Conn
	if l.opts.Server != nil {
		reqCh = make(chan singleinstance.Conn, 4)
		go func() {
			defer close(reqCh)
			for {
				conn, err := l.opts.Server.Next(ctx)
				if err != nil {
					return
				}
				select {
				case reqCh <- conn:
				case <-ctx.Done():
					_ = conn.Close()
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-hotkeys:
			if !ok {
				l.logger.Warn("hotkey source stopped")
				hotkeys = nil
				continue
			}
			l.handleHotkey(ev)
		case a, ok := <-menu:
			if !ok {
				menu = nil
				continue
			}
			if err := l.handleMenu(a); errors.Is(err, errQuit) {
				return nil
			}
		case conn, ok := <-reqCh:
			if !ok {
				reqCh = nil
				continue
			}
			l.handleConn(conn)
		}
	}
}

func (l *Loop) handleHotkey(ev hotkey.Event) {
	switch ev.Action {
	case hotkey.SetTopLeft:
		l.updateCorner(corners.TopLeft, ev.Point)
	case hotkey.SetBottomRight:
		l.updateCorner(corners.BottomRight, ev.Point)
	case hotkey.CaptureNow:
		l.captureNow("hotkey")
	default:
		l.logger.Warn("unknown hotkey action", "action", ev.Action)
	}
}

func (l *Loop) updateCorner(c corners.Corner, p corners.Point) {
	res := l.opts.Coordinator.UpdateCorner(c, p)
	switch {
	case !res.Changed:
		l.logger.Debug("corner unchanged", "corner", c, "x", p.X, "y", p.Y)
	case res.Rejected:
		l.logger.Info("corner set, capture skipped while busy", "corner", c)
	case res.Triggered:
		l.logger.Info("corner set, capture started", "corner", c)
	}
}

func (l *Loop) captureNow(source string) error {
	err := l.opts.Coordinator.CaptureNow()
	if errors.Is(err, coordinator.ErrCaptureUnavailable) {
		l.logger.Info("capture skipped while busy", "source", source)
	}
	return err
}

func (l *Loop) handleMenu(a tray.MenuAction) error {
	l.logger.Debug("menu action", "action", a)
	switch a {
	case tray.MenuCapture:
		_ = l.captureNow("menu")
	case tray.MenuCopyAnswer:
		text := l.opts.Coordinator.Snapshot().AnswerText()
		if text == "" {
			l.logger.Info("no answer to copy")
			return nil
		}
		if l.opts.Copy == nil {
			return nil
		}
		if err := l.opts.Copy(text); err != nil {
			l.logger.Warn("clipboard write failed", "error", err)
			return err
		}
	case tray.MenuOpenFreeForm:
		s := l.opts.Coordinator.Snapshot()
		if s.Answer.Kind != answer.FreeForm {
			l.logger.Info("no free-form answer to open")
			return nil
		}
		if l.opts.OpenText == nil {
			return nil
		}
		path, err := l.opts.OpenText(s.Answer.Text)
		if err != nil {
			l.logger.Warn("failed to open free-form answer", "path", path, "error", err)
			return err
		}
	case tray.MenuReset:
		l.opts.Coordinator.Reset()
	case tray.MenuQuit:
		l.logger.Info("quit requested from tray")
		if l.opts.OnQuit != nil {
			l.opts.OnQuit()
		}
		return errQuit
	}
	return nil
}

func (l *Loop) handleConn(conn singleinstance.Conn) {
	defer conn.Close()
	cmd := conn.Request().Command
	var err error
	switch cmd {
	case singleinstance.CommandCapture:
		if cerr := l.captureNow("ipc"); cerr != nil {
			err = conn.RespondError(cerr.Error())
		} else {
			err = conn.RespondSuccess("capture started\n")
		}
	case singleinstance.CommandStatus:
		err = conn.RespondSuccess(l.opts.Coordinator.Snapshot().Status())
	case singleinstance.CommandReset:
		l.opts.Coordinator.Reset()
		err = conn.RespondSuccess("reset\n")
	default:
		err = conn.RespondError(fmt.Sprintf("unsupported command %q", cmd))
	}
	if err != nil {
		l.logger.Warn("failed to answer resident command", "command", cmd, "error", err)
	}
}
