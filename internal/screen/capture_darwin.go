//go:build darwin

package screen

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type darwinBackend struct{ tempDir string }

// captureWindow grabs the main display; games run fullscreen there and the
// focus check guards against capturing another app.
func (d *darwinBackend) captureWindow(ctx context.Context, window string) ([]byte, error) {
	tmpFile := filepath.Join(d.tempDir, "frame.png")
	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-t", "png", "-m", tmpFile)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Debug("screencapture failed", "error", err, "stderr", stderr.String())
		return nil, unavailable(err, window, "screencapture failed (screen recording permission?)")
	}
	data, err := os.ReadFile(tmpFile)
	if err != nil {
		return nil, unavailable(err, window, "read captured frame")
	}
	os.Remove(tmpFile)
	return data, nil
}

func (d *darwinBackend) focused(ctx context.Context, window string) (bool, error) {
	script := `tell application "System Events" to get name of first application process whose frontmost is true`
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		return false, unavailable(err, window, "frontmost app lookup failed")
	}
	front := strings.ToLower(strings.TrimSpace(string(out)))
	return front != "" && strings.Contains(strings.ToLower(window), front), nil
}

func (d *darwinBackend) cleanup() {}

// New creates a platform-specific window capturer
func New() *WindowCapturer {
	tmpDir, err := os.MkdirTemp("", "resultcap-frame-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return newBase(&darwinBackend{tempDir: tmpDir}, tmpDir)
}
