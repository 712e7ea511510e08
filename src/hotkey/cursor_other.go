//go:build !windows

package hotkey

import "screen-answer-llm/src/corners"

// cursorPosition has no direct query here; the hook's mouse-move events
// provide the position instead.
func cursorPosition() (corners.Point, bool) { return corners.Point{}, false }
