//go:build windows

package notification

import (
	"golang.org/x/sys/windows"
)

const (
	mbOK        = 0x00000000
	mbIconError = 0x00000010
)

// ShowBlockingError shows a modal error box and returns when it is closed.
func ShowBlockingError(title, message string) {
	t, _ := windows.UTF16PtrFromString(title)
	m, _ := windows.UTF16PtrFromString(message)
	_, _ = windows.MessageBox(0, m, t, mbOK|mbIconError)
}
