// Package answer models the tray-facing answer state.
package answer

import "fmt"

// Kind tags a State.
type Kind int

const (
	Idle Kind = iota
	Loading
	Letter
	FreeForm
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Letter:
		return "letter"
	case FreeForm:
		return "free-form"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is a tagged value; only the field matching Kind is meaningful.
type State struct {
	Kind Kind
	// UpdatedCorners is set for Idle (0, 1 or 2).
	UpdatedCorners int
	// Letter is set for Letter, always 'A'..'Z'.
	Letter rune
	// Text is set for FreeForm.
	Text string
}

func (s State) String() string {
	switch s.Kind {
	case Idle:
		return fmt.Sprintf("idle (%d of 2 corners updated)", s.UpdatedCorners)
	case Loading:
		return "loading"
	case Letter:
		return fmt.Sprintf("answer %c", s.Letter)
	case FreeForm:
		return "free-form answer"
	default:
		return s.Kind.String()
	}
}

// Cell stores the non-derived part of the state: Loading, Letter or
// FreeForm. An empty cell means Idle, computed from the corner count on read.
// Setting one tag clears the others.
type Cell struct {
	stored *State
}

// SetLoading replaces any cached answer with Loading.
func (c *Cell) SetLoading() { c.stored = &State{Kind: Loading} }

// SetLetter caches a letter answer. Letters outside A-Z are rejected.
func (c *Cell) SetLetter(r rune) error {
	if r < 'A' || r > 'Z' {
		return fmt.Errorf("letter answer out of range: %q", r)
	}
	c.stored = &State{Kind: Letter, Letter: r}
	return nil
}

// SetFreeForm caches a free-form answer.
func (c *Cell) SetFreeForm(text string) { c.stored = &State{Kind: FreeForm, Text: text} }

// Clear drops whatever is stored, returning the cell to derived Idle.
func (c *Cell) Clear() { c.stored = nil }

// ClearAnswer drops a cached Letter or FreeForm but keeps Loading.
func (c *Cell) ClearAnswer() bool {
	if c.stored == nil || c.stored.Kind == Loading {
		return false
	}
	c.stored = nil
	return true
}

// IsLoading reports whether Loading is stored.
func (c *Cell) IsLoading() bool { return c.stored != nil && c.stored.Kind == Loading }

// Current resolves the state, deriving Idle from updatedCorners when nothing
// is stored.
func (c *Cell) Current(updatedCorners int) State {
	if c.stored != nil {
		return *c.stored
	}
	return State{Kind: Idle, UpdatedCorners: updatedCorners}
}
