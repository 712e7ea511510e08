// Package hotkey turns global key and pointer events into corner and
// capture actions.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gohook "github.com/robotn/gohook"

	"screen-answer-llm/src/corners"
)

// ErrInvalidHotkey is returned for a combination with no mappable keys.
var ErrInvalidHotkey = errors.New("invalid hotkey")

type Action int

const (
	SetTopLeft Action = iota
	SetBottomRight
	CaptureNow
)

func (a Action) String() string {
	switch a {
	case SetTopLeft:
		return "set-top-left"
	case SetBottomRight:
		return "set-bottom-right"
	case CaptureNow:
		return "capture-now"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Event is one recognised hotkey press with the pointer position at that
// moment.
type Event struct {
	Action Action
	Point  corners.Point
}

// Binding ties a combination such as "Ctrl+Alt+1" to an action.
type Binding struct {
	Action Action
	Combo  string
}

// DefaultBindings builds the three standard bindings.
func DefaultBindings(topLeft, bottomRight, capture string) []Binding {
	return []Binding{
		{Action: SetTopLeft, Combo: topLeft},
		{Action: SetBottomRight, Combo: bottomRight},
		{Action: CaptureNow, Combo: capture},
	}
}

type combo struct {
	action Action
	spec   string
	// keys holds one group of alternative rawcodes per key in the combo.
	keys [][]uint16
}

// Matcher recognises combinations in a raw event stream. It is not safe for
// concurrent use; one goroutine feeds it.
type Matcher struct {
	combos  []combo
	pressed map[uint16]bool
	pointer corners.Point
	logger  *slog.Logger

	// cursor, when set, reads the live pointer position and takes
	// precedence over the last hook-reported move.
	cursor func() (corners.Point, bool)
}

// NewMatcher validates every binding up front.
func NewMatcher(bindings []Binding, logger *slog.Logger) (*Matcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Matcher{pressed: make(map[uint16]bool), logger: logger}
	for _, b := range bindings {
		c := combo{action: b.Action, spec: b.Combo}
		for _, name := range parseHotkey(b.Combo) {
			rawcodes := keyNameToRawcodes(name)
			if len(rawcodes) == 0 {
				return nil, fmt.Errorf("%w: %q: unknown key %q", ErrInvalidHotkey, b.Combo, name)
			}
			c.keys = append(c.keys, rawcodes)
		}
		if len(c.keys) == 0 {
			return nil, fmt.Errorf("%w: %q for %s", ErrInvalidHotkey, b.Combo, b.Action)
		}
		m.combos = append(m.combos, c)
		logger.Info("hotkey bound", "action", b.Action, "combo", b.Combo)
	}
	return m, nil
}

// Pointer is the pointer position used for the next fired combo.
func (m *Matcher) Pointer() corners.Point {
	if m.cursor != nil {
		if p, ok := m.cursor(); ok {
			return p
		}
	}
	return m.pointer
}

// Handle feeds one raw event and returns the actions it completes. A combo
// fires when its last missing key goes down; auto-repeat of a held key does
// not fire again.
func (m *Matcher) Handle(ev gohook.Event) []Event {
	switch ev.Kind {
	case gohook.MouseMove, gohook.MouseDrag:
		m.pointer = corners.Point{X: int(ev.X), Y: int(ev.Y)}
	case gohook.KeyDown:
		if m.pressed[ev.Rawcode] {
			return nil
		}
		m.pressed[ev.Rawcode] = true
		var out []Event
		for _, c := range m.combos {
			if c.contains(ev.Rawcode) && c.satisfied(m.pressed) {
				p := m.Pointer()
				m.logger.Debug("hotkey fired", "action", c.action, "combo", c.spec, "x", p.X, "y", p.Y)
				out = append(out, Event{Action: c.action, Point: p})
			}
		}
		return out
	case gohook.KeyUp:
		delete(m.pressed, ev.Rawcode)
	}
	return nil
}

func (c combo) contains(rawcode uint16) bool {
	for _, group := range c.keys {
		for _, r := range group {
			if r == rawcode {
				return true
			}
		}
	}
	return false
}

func (c combo) satisfied(pressed map[uint16]bool) bool {
	for _, group := range c.keys {
		hit := false
		for _, r := range group {
			if pressed[r] {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Listen starts the global hook and delivers matched events, in order, until
// ctx is done. The returned channel is closed when the listener stops.
func Listen(ctx context.Context, bindings []Binding, logger *slog.Logger) (<-chan Event, error) {
	m, err := NewMatcher(bindings, logger)
	if err != nil {
		return nil, err
	}
	m.cursor = cursorPosition
	evChan := gohook.Start()
	if evChan == nil {
		return nil, errors.New("hotkey: gohook.Start returned nil channel")
	}
	out := make(chan Event, 16)
	go func() {
		defer gohook.End()
		run(ctx, evChan, m, out)
	}()
	return out, nil
}

func run(ctx context.Context, src <-chan gohook.Event, m *Matcher, out chan<- Event) {
	defer close(out)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic in hotkey listener", "panic", r)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src:
			if !ok {
				m.logger.Info("hook event channel closed")
				return
			}
			for _, e := range m.Handle(ev) {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}

	return keys
}

var specialKeys = map[string][]uint16{
	// Modifiers, left and right variants
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"win":   {91, 92},   // VK_LWIN, VK_RWIN
	"cmd":   {91, 92},
	"super": {91, 92},

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a key name to its Windows virtual key codes. Letters
// are 0x41-0x5A, digits 0x30-0x39 and F1-F24 start at 0x70.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))

	if codes, ok := specialKeys[keyName]; ok {
		return codes
	}
	if len(keyName) == 1 {
		switch c := keyName[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
	}
	var n int
	if _, err := fmt.Sscanf(keyName, "f%d", &n); err == nil && n >= 1 && n <= 24 && keyName == fmt.Sprintf("f%d", n) {
		return []uint16{uint16(111 + n)}
	}
	return nil
}
