//go:build windows

package tray

import "screen-answer-llm/src/icon"

// The Windows tray only accepts ICO data.
func platformIcon(pngData []byte) []byte { return icon.ICO(pngData) }
