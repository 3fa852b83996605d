package screen

import (
	"bytes"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"time"

	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
)

// Frame is one captured window image. It is not modified after NewFrame.
type Frame struct {
	Data       []byte
	Image      image.Image
	Width      int
	Height     int
	CapturedAt time.Time
	Game       geometry.Game
}

// NewFrame decodes captured bytes into a Frame.
func NewFrame(data []byte, game geometry.Game, capturedAt time.Time) (*Frame, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureUnavailable, "decode captured frame").
			WithMetadata("game", string(game))
	}
	b := img.Bounds()
	return &Frame{
		Data:       data,
		Image:      img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: capturedAt,
		Game:       game,
	}, nil
}

// Size returns the frame dimensions.
func (f *Frame) Size() image.Point {
	return image.Pt(f.Width, f.Height)
}
