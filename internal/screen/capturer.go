// Package screen provides platform-specific game window capture and focus checks
package screen

import (
	"context"
	"os"
	"sync"

	apperrors "github.com/resultcap/platform/internal/errors"
)

// Capturer grabs the current contents of a game window.
type Capturer interface {
	Capture(ctx context.Context, window string) ([]byte, error)
	Close()
}

// FocusChecker reports whether a window currently has input focus.
type FocusChecker interface {
	Focused(ctx context.Context, window string) (bool, error)
}

// backend implements platform-specific raw capture
type backend interface {
	captureWindow(ctx context.Context, window string) ([]byte, error)
	focused(ctx context.Context, window string) (bool, error)
	cleanup()
}

// WindowCapturer serialises access to the platform backend and owns its temp dir.
type WindowCapturer struct {
	backend
	mu      sync.Mutex
	tempDir string
}

func newBase(b backend, tempDir string) *WindowCapturer {
	return &WindowCapturer{backend: b, tempDir: tempDir}
}

// Capture returns encoded image bytes for window.
func (c *WindowCapturer) Capture(ctx context.Context, window string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := c.captureWindow(ctx, window)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CodeCaptureUnavailable, "capture returned no data").
			WithMetadata("window", window)
	}
	return data, nil
}

// Focused reports whether window is the foreground window.
func (c *WindowCapturer) Focused(ctx context.Context, window string) (bool, error) {
	return c.focused(ctx, window)
}

func (c *WindowCapturer) Close() {
	c.cleanup()
	if c.tempDir != "" {
		os.RemoveAll(c.tempDir)
	}
}

func unavailable(err error, window, msg string) error {
	return apperrors.Wrap(err, apperrors.CodeCaptureUnavailable, msg).WithMetadata("window", window)
}
