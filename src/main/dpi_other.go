//go:build !windows

package main

import "log/slog"

func enableDPIAwareness() {}

func logMonitorConfiguration(logger *slog.Logger) {
	logger.Debug("monitor metrics are only collected on Windows")
}
