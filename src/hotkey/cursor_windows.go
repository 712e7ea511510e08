//go:build windows

package hotkey

import (
	"github.com/lxn/win"

	"screen-answer-llm/src/corners"
)

func cursorPosition() (corners.Point, bool) {
	var pt win.POINT
	if !win.GetCursorPos(&pt) {
		return corners.Point{}, false
	}
	return corners.Point{X: int(pt.X), Y: int(pt.Y)}, true
}
