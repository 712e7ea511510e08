// Package notification surfaces things to the user outside the tray icon.
package notification

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// FreeResponseFile is the file name ShowText writes into its directory.
const FreeResponseFile = "free_response_answer.txt"

// WriteText stores text in dir/free_response_answer.txt under a timestamp
// header, replacing any previous answer, and returns the file path.
func WriteText(dir, text string, now time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("free response answer is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FreeResponseFile)
	body := fmt.Sprintf("[%s]\n%s\n", now.Format("2006-01-02T15:04:05"), text)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// ShowText writes text to a file and opens it in the platform's editor.
func ShowText(dir, text string) (string, error) {
	path, err := WriteText(dir, text, time.Now())
	if err != nil {
		return "", err
	}
	name, args := openCommand(runtime.GOOS, path)
	if err := exec.Command(name, args...).Start(); err != nil {
		return path, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return path, nil
}

func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "windows":
		return "notepad.exe", []string{path}
	case "darwin":
		return "open", []string{"-t", path}
	default:
		return "xdg-open", []string{path}
	}
}
