package redact

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"

	"github.com/nfnt/resize"
	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/trace"
	"golang.org/x/image/draw"
)

// BlurFactor is how far a region is down-sampled before being scaled back.
const BlurFactor = 12

// Compositor applies redaction plans to encoded frames.
type Compositor struct {
	catalog *geometry.Catalog
}

// New creates a compositor over catalog.
func New(catalog *geometry.Catalog) *Compositor {
	return &Compositor{catalog: catalog}
}

// Redact returns a PNG of frame with the planned regions hidden. When
// nothing is planned it returns frame itself. If the frame cannot be decoded
// or re-encoded the original bytes are returned and the failure is logged.
func (c *Compositor) Redact(ctx context.Context, frame []byte, game geometry.Game, st geometry.ScreenType, policy Policy, mode Mode) []byte {
	plan := Resolve(c.catalog, game, st, policy, mode)
	if plan.Empty() {
		return frame
	}
	out, err := ApplyBytes(frame, plan)
	if err != nil {
		trace.Logger(ctx).Warn("redaction failed, keeping original", "game", game, "screen_type", st.Tag(), "error", err)
		return frame
	}
	return out
}

// ApplyBytes decodes data, applies plan and encodes the result as PNG.
func ApplyBytes(data []byte, plan Plan) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRedactionFailed, "decode frame")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Apply(img, plan)); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRedactionFailed, "encode redacted frame")
	}
	return buf.Bytes(), nil
}

// Apply draws plan over a copy of img.
func Apply(img image.Image, plan Plan) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	size := image.Pt(b.Dx(), b.Dy())
	for _, rect := range plan.Rects {
		r := rect.Scale(plan.Reference, size).Intersect(dst.Bounds())
		if r.Empty() {
			continue
		}
		switch plan.Mode {
		case ModeSolidFill:
			draw.Draw(dst, r, image.NewUniform(color.Black), image.Point{}, draw.Src)
		default:
			blur(dst, r)
		}
	}
	return dst
}

func blur(dst *image.RGBA, r image.Rectangle) {
	region := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(region, region.Bounds(), dst, r.Min, draw.Src)
	w := uint(max(1, r.Dx()/BlurFactor))
	h := uint(max(1, r.Dy()/BlurFactor))
	small := resize.Resize(w, h, region, resize.Bilinear)
	back := resize.Resize(uint(r.Dx()), uint(r.Dy()), small, resize.Bilinear)
	draw.Draw(dst, r, back, back.Bounds().Min, draw.Src)
}
