//go:build !windows

package notification

import "log/slog"

// ShowBlockingError logs the message; there is no modal box on this platform.
func ShowBlockingError(title, message string) {
	slog.Error(title, "message", message)
}
