// Package tray shows the answer icon in the system tray and turns menu
// clicks into actions.
package tray

import (
	"bytes"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
)

// MenuAction is a tray menu click.
type MenuAction int

const (
	MenuCapture MenuAction = iota
	MenuCopyAnswer
	MenuOpenFreeForm
	MenuReset
	MenuQuit
)

func (a MenuAction) String() string {
	switch a {
	case MenuCapture:
		return "capture"
	case MenuCopyAnswer:
		return "copy-answer"
	case MenuOpenFreeForm:
		return "open-free-response"
	case MenuReset:
		return "reset"
	case MenuQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Options configures the controller.
type Options struct {
	Title   string
	Tooltip string
	// Icon is the PNG shown until the first Show.
	Icon   []byte
	Logger *slog.Logger
}

type frame struct {
	icon    []byte
	tooltip string
}

// Controller owns the tray icon. Show may be called from any goroutine,
// before or after the tray is ready.
type Controller struct {
	opts    Options
	logger  *slog.Logger
	actions chan MenuAction
	quitCh  chan struct{}
	once    sync.Once

	setIcon    func([]byte)
	setTooltip func(string)

	mu        sync.Mutex
	ready     bool
	running   bool
	pending   frame
	shown     frame
	about     *systray.MenuItem
	aboutText string
}

// New builds a controller; call Run to show it.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Title == "" {
		opts.Title = "Screen Answer"
	}
	if opts.Tooltip == "" {
		opts.Tooltip = opts.Title
	}
	return &Controller{
		opts:       opts,
		logger:     logger,
		actions:    make(chan MenuAction, 8),
		quitCh:     make(chan struct{}),
		setIcon:    func(b []byte) { systray.SetIcon(platformIcon(b)) },
		setTooltip: systray.SetTooltip,
		pending:    frame{icon: opts.Icon, tooltip: opts.Tooltip},
	}
}

// Actions delivers menu clicks in order.
func (c *Controller) Actions() <-chan MenuAction { return c.actions }

// Run blocks on the tray's event loop until Stop. Call it from the main
// goroutine.
func (c *Controller) Run() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	systray.Run(c.onReady, c.onExit)
}

// Stop quits the tray loop. Safe to call more than once.
func (c *Controller) Stop() {
	c.once.Do(func() {
		c.mu.Lock()
		if c.running {
			systray.Quit()
			c.running = false
		}
		c.mu.Unlock()
		close(c.quitCh)
	})
}

// Show replaces the icon and tooltip. Repeating the current frame is a no-op.
func (c *Controller) Show(iconData []byte, tooltip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := frame{icon: iconData, tooltip: tooltip}
	if !c.ready {
		c.pending = next
		return
	}
	c.applyLocked(next)
}

// SetAbout shows an informational, disabled menu line.
func (c *Controller) SetAbout(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aboutText = text
	if c.about != nil {
		c.about.SetTitle(text)
	}
}

func (c *Controller) applyLocked(f frame) {
	if len(f.icon) > 0 && !bytes.Equal(f.icon, c.shown.icon) {
		c.setIcon(f.icon)
		c.shown.icon = f.icon
	}
	if f.tooltip != "" && f.tooltip != c.shown.tooltip {
		c.setTooltip(f.tooltip)
		c.shown.tooltip = f.tooltip
	}
}

func (c *Controller) markReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = true
	c.applyLocked(c.pending)
}

func (c *Controller) onReady() {
	systray.SetTitle(c.opts.Title)

	mCapture := systray.AddMenuItem("Capture now", "Capture the current rectangle")
	mCopy := systray.AddMenuItem("Copy answer", "Copy the current answer to the clipboard")
	mOpen := systray.AddMenuItem("Open free response", "Open the free-form answer in an editor")
	mReset := systray.AddMenuItem("Reset answer", "Clear the current answer")
	systray.AddSeparator()
	c.mu.Lock()
	aboutText := c.aboutText
	c.mu.Unlock()
	if aboutText == "" {
		aboutText = c.opts.Title
	}
	about := systray.AddMenuItem(aboutText, "")
	about.Disable()
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	c.mu.Lock()
	c.about = about
	c.mu.Unlock()
	c.markReady()
	c.logger.Info("tray ready")

	go func() {
		for {
			select {
			case <-c.quitCh:
				return
			case <-mCapture.ClickedCh:
				c.emit(MenuCapture)
			case <-mCopy.ClickedCh:
				c.emit(MenuCopyAnswer)
			case <-mOpen.ClickedCh:
				c.emit(MenuOpenFreeForm)
			case <-mReset.ClickedCh:
				c.emit(MenuReset)
			case <-mQuit.ClickedCh:
				c.emit(MenuQuit)
			}
		}
	}()
}

func (c *Controller) emit(a MenuAction) {
	select {
	case c.actions <- a:
	case <-c.quitCh:
	}
}

func (c *Controller) onExit() {
	c.logger.Info("tray exited")
}
