// Package corners tracks the two user-settable rectangle endpoints and a
// per-corner revision counter. It holds plain values and no locks; the
// coordinator owns synchronization.
package corners

import (
	"fmt"
	"image"
)

// Corner identifies one of the two rectangle endpoints.
type Corner int

const (
	TopLeft Corner = iota
	BottomRight
)

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "top-left"
	case BottomRight:
		return "bottom-right"
	default:
		return fmt.Sprintf("corner(%d)", int(c))
	}
}

// Point is a screen coordinate in virtual-desktop pixels.
type Point struct {
	X int
	Y int
}

// Snapshot is a copy of the tracker's points and revisions at one instant.
type Snapshot struct {
	Points    [2]Point
	Revisions [2]uint64
}

// Tracker holds both corners. The zero value is ready to use: both corners at
// (0,0), revision 0, nothing consumed.
type Tracker struct {
	points   [2]Point
	revision [2]uint64
	consumed [2]uint64
}

func valid(c Corner) bool { return c == TopLeft || c == BottomRight }

// Seed places both corners without touching revisions, so the starting
// rectangle does not count as an update.
func (t *Tracker) Seed(topLeft, bottomRight Point) {
	t.points = [2]Point{topLeft, bottomRight}
}

// Update stores p for corner c and bumps its revision. Setting a corner to
// its current position is a no-op and returns false.
func (t *Tracker) Update(c Corner, p Point) bool {
	if !valid(c) || t.points[c] == p {
		return false
	}
	t.points[c] = p
	t.revision[c]++
	return true
}

// Point returns the current position of corner c.
func (t *Tracker) Point(c Corner) Point {
	if !valid(c) {
		return Point{}
	}
	return t.points[c]
}

// Revision returns the revision counter of corner c.
func (t *Tracker) Revision(c Corner) uint64 {
	if !valid(c) {
		return 0
	}
	return t.revision[c]
}

// Consumed returns the revision of corner c recorded by the last MarkConsumed.
func (t *Tracker) Consumed(c Corner) uint64 {
	if !valid(c) {
		return 0
	}
	return t.consumed[c]
}

// BothUpdatedSinceLastCapture reports whether each corner received at least
// one position-changing update since the revisions were last consumed.
func (t *Tracker) BothUpdatedSinceLastCapture() bool {
	return t.revision[TopLeft] > t.consumed[TopLeft] &&
		t.revision[BottomRight] > t.consumed[BottomRight]
}

// UpdatedCount returns how many corners (0, 1 or 2) moved since the last
// consumed capture.
func (t *Tracker) UpdatedCount() int {
	n := 0
	for c := range t.revision {
		if t.revision[c] > t.consumed[c] {
			n++
		}
	}
	return n
}

// Snapshot copies the current points and revisions.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{Points: t.points, Revisions: t.revision}
}

// MarkConsumed records the revisions from s as consumed. s must have been
// taken from this tracker; consumed values never move backward and never
// pass the live revision.
func (t *Tracker) MarkConsumed(s Snapshot) {
	for c := range t.consumed {
		r := s.Revisions[c]
		if r > t.revision[c] {
			r = t.revision[c]
		}
		if r > t.consumed[c] {
			t.consumed[c] = r
		}
	}
}

// MarkAllConsumed consumes the live revisions of both corners.
func (t *Tracker) MarkAllConsumed() {
	t.consumed = t.revision
}

// Rect returns the normalized rectangle spanned by the two points of s.
// Corners on the same row or column give an empty rectangle.
func (s Snapshot) Rect() image.Rectangle {
	tl, br := s.Points[TopLeft], s.Points[BottomRight]
	return image.Rect(tl.X, tl.Y, br.X, br.Y).Canon()
}

// ChangedSince reports whether any corner revision differs from s.
func (t *Tracker) ChangedSince(s Snapshot) bool {
	return t.revision != s.Revisions
}
