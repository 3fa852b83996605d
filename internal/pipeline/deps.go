package pipeline

import (
	"context"
	"time"

	"github.com/resultcap/platform/internal/classify"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/history"
	"github.com/resultcap/platform/internal/redact"
	"github.com/resultcap/platform/internal/screen"
	"github.com/resultcap/platform/internal/upload"
)

// Classifier maps a frame to a screen type.
type Classifier interface {
	Classify(ctx context.Context, frame *screen.Frame, enabled geometry.EnabledSet) (classify.Result, error)
}

// Uploader sends a frame to the result backend.
type Uploader interface {
	Upload(ctx context.Context, image []byte, game geometry.Game, st geometry.ScreenType, auth upload.Auth) (upload.Outcome, error)
}

// Redactor hides private regions of an encoded frame.
type Redactor interface {
	Redact(ctx context.Context, frame []byte, game geometry.Game, st geometry.ScreenType, policy redact.Policy, mode redact.Mode) []byte
}

// Saver writes an image for a verified result and returns its path.
type Saver interface {
	Save(game geometry.Game, pd *upload.PlayData, image []byte, at time.Time) (string, error)
}

// History records processed uploads and serves local previous bests.
type History interface {
	Record(ctx context.Context, r history.Record) (history.Record, error)
	Best(ctx context.Context, game geometry.Game, song string, button int, pattern string) (*history.Record, error)
	Recent(ctx context.Context, game geometry.Game, limit int) ([]history.Record, error)
}

// optionSetter is implemented by classifiers whose OCR options follow the
// user settings.
type optionSetter interface {
	SetOptions(classify.Options)
}
