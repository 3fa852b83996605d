//go:build linux

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

type linuxBackend struct{ tempDir string }

// windowID resolves a window title to an X11 window id with xdotool.
func (l *linuxBackend) windowID(ctx context.Context, window string) (string, error) {
	out, err := exec.CommandContext(ctx, "xdotool", "search", "--onlyvisible", "--name", window).Output()
	if err != nil {
		return "", unavailable(err, window, "window not found")
	}
	ids := strings.Fields(string(out))
	if len(ids) == 0 {
		return "", unavailable(nil, window, "window not found")
	}
	return ids[0], nil
}

func (l *linuxBackend) captureWindow(ctx context.Context, window string) ([]byte, error) {
	if _, err := exec.LookPath("import"); err != nil {
		return nil, unavailable(err, window, "no capture tool found (install imagemagick and xdotool)")
	}
	id, err := l.windowID(ctx, window)
	if err != nil {
		return nil, err
	}
	tmpFile := filepath.Join(l.tempDir, "frame.png")
	cmd := exec.CommandContext(ctx, "import", "-silent", "-window", id, "png:"+tmpFile)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Debug("import failed", "error", err, "stderr", stderr.String())
		return nil, unavailable(err, window, "window capture failed")
	}
	data, err := os.ReadFile(tmpFile)
	if err != nil {
		return nil, unavailable(err, window, "read captured frame")
	}
	os.Remove(tmpFile)
	return data, nil
}

func (l *linuxBackend) focused(ctx context.Context, window string) (bool, error) {
	out, err := exec.CommandContext(ctx, "xdotool", "getactivewindow", "getwindowname").Output()
	if err != nil {
		return false, unavailable(err, window, "active window lookup failed")
	}
	return strings.Contains(strings.TrimSpace(string(out)), window), nil
}

func (l *linuxBackend) cleanup() {}

// New creates a platform-specific window capturer
func New() *WindowCapturer {
	tmpDir, err := os.MkdirTemp("", "resultcap-frame-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return newBase(&linuxBackend{tempDir: tmpDir}, tmpDir)
}
