//go:build windows

package screen

import (
	"context"
	"log/slog"
	"os"
)

type windowsBackend struct{ tempDir string }

// TODO: capture via PrintWindow/BitBlt on the game's HWND.
func (w *windowsBackend) captureWindow(_ context.Context, window string) ([]byte, error) {
	return nil, unavailable(nil, window, "windows capture not implemented")
}

func (w *windowsBackend) focused(_ context.Context, window string) (bool, error) {
	return false, unavailable(nil, window, "windows focus check not implemented")
}

func (w *windowsBackend) cleanup() {}

// New creates a platform-specific window capturer
func New() *WindowCapturer {
	tmpDir, err := os.MkdirTemp("", "resultcap-frame-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return newBase(&windowsBackend{tempDir: tmpDir}, tmpDir)
}
