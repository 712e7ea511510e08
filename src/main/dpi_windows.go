//go:build windows

package main

import (
	"log/slog"

	"golang.org/x/sys/windows"
)

const (
	processPerMonitorDPIAware = 2

	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCXVirtualScreen = 78
	smCYVirtualScreen = 79
	smCMonitors       = 80
)

var (
	shcore = windows.NewLazySystemDLL("Shcore.dll")
	user32 = windows.NewLazySystemDLL("user32.dll")
)

// enableDPIAwareness asks for per-monitor DPI awareness so hotkey cursor
// positions and capture rectangles share one coordinate space.
func enableDPIAwareness() {
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			slog.Debug("DPI: per-monitor awareness enabled")
		} else {
			slog.Warn("DPI: failed to set per-monitor awareness", "code", ret)
		}
		return
	}

	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		slog.Warn("DPI: no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret == 0 {
		slog.Warn("DPI: failed to set system DPI awareness")
	}
}

func logMonitorConfiguration(logger *slog.Logger) {
	getSystemMetrics := user32.NewProc("GetSystemMetrics")
	metric := func(index int) int {
		ret, _, _ := getSystemMetrics.Call(uintptr(index))
		return int(int32(ret))
	}
	logger.Info("monitors",
		"count", metric(smCMonitors),
		"virtual_x", metric(smXVirtualScreen),
		"virtual_y", metric(smYVirtualScreen),
		"virtual_w", metric(smCXVirtualScreen),
		"virtual_h", metric(smCYVirtualScreen))
}
