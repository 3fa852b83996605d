// Package classify decides which known game screen a frame shows by running
// OCR over the game's capture regions in priority order.
package classify

import (
	"context"
	"image"
	"strings"
	"time"
	"unicode"

	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/ocr"
	"github.com/resultcap/platform/internal/screen"
	"github.com/resultcap/platform/internal/syncx"
	"github.com/resultcap/platform/internal/trace"
)

// Options tune OCR calls. They can be swapped at runtime with SetOptions.
type Options struct {
	Language   string
	Preprocess bool
	Timeout    time.Duration
}

// Candidate is one region that was read during classification.
type Candidate struct {
	Region  geometry.RegionSpec
	Text    string
	Matched []string
}

// Result is the outcome of classifying one frame.
type Result struct {
	ScreenType geometry.ScreenType
	Text       string
	Region     string
	Candidates []Candidate
}

// Matched reports whether the frame showed a known screen.
func (r Result) Matched() bool {
	return r.ScreenType != geometry.None
}

// ForManual is the result used for user-requested uploads.
func ForManual() Result {
	return Result{ScreenType: geometry.Manual, Region: "manual"}
}

// Classifier maps frames to screen types.
type Classifier struct {
	catalog *geometry.Catalog
	ocr     ocr.Recognizer
	opts    *syncx.RWGuard[Options]
}

// New creates a classifier over catalog using rec for text recognition.
func New(catalog *geometry.Catalog, rec ocr.Recognizer, opts Options) *Classifier {
	return &Classifier{catalog: catalog, ocr: rec, opts: syncx.NewGuard(withDefaults(opts))}
}

// SetOptions replaces the OCR options for subsequent calls.
func (c *Classifier) SetOptions(opts Options) {
	c.opts.Set(withDefaults(opts))
}

// Options returns the current OCR options.
func (c *Classifier) Options() Options {
	return c.opts.Get()
}

// Classify walks the enabled regions of frame.Game in priority order and
// returns the first one whose text contains one of its keywords. When no
// region matched but some OCR call failed the result is inconclusive and an
// OCR_FAILED error is returned alongside a None result.
func (c *Classifier) Classify(ctx context.Context, frame *screen.Frame, enabled geometry.EnabledSet) (Result, error) {
	ctx, span := trace.StartSpan(ctx, trace.SpanClassify, frame.Game)
	log := trace.Logger(ctx)

	opts := c.opts.Get()
	ref := c.catalog.Reference(frame.Game)
	res := Result{ScreenType: geometry.None}
	var failed []string
	var lastErr error

	for _, region := range c.catalog.Regions(frame.Game) {
		if !enabled.Enabled(region.ScreenType) {
			continue
		}
		if err := ctx.Err(); err != nil {
			span.Finish(ctx, err)
			return res, apperrors.Wrap(err, apperrors.FromContextError(err, apperrors.CodeCancelled), "classification interrupted")
		}

		text, err := c.read(ctx, frame, region, ref, opts)
		if err != nil {
			log.Debug("region read failed", "region", region.Name, "error", err)
			failed = append(failed, region.Name)
			lastErr = err
			continue
		}

		cand := Candidate{Region: region, Text: text, Matched: Match(text, region)}
		res.Candidates = append(res.Candidates, cand)
		if len(cand.Matched) > 0 {
			res.ScreenType = region.ScreenType
			res.Text = text
			res.Region = region.Name
			span.SetScreenType(res.ScreenType)
			span.Finish(ctx, nil)
			return res, nil
		}
	}

	if len(failed) > 0 {
		err := apperrors.Wrap(lastErr, apperrors.CodeOCRFailed, "no region matched and OCR failed").
			WithMetadata("game", string(frame.Game)).
			WithMetadata("regions", strings.Join(failed, ","))
		span.Finish(ctx, err)
		return res, err
	}
	span.SetScreenType(res.ScreenType)
	span.Finish(ctx, nil)
	return res, nil
}

func (c *Classifier) read(ctx context.Context, frame *screen.Frame, region geometry.RegionSpec, ref image.Point, opts Options) (string, error) {
	crop := cropRegion(frame.Image, region.Rect.Scale(ref, frame.Size()))
	if crop == nil {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "region outside frame").
			WithMetadata("region", region.Name)
	}
	if opts.Preprocess {
		crop = enhance(crop)
	}
	data, err := encodePNG(crop)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "encode region crop")
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	return c.ocr.Recognize(callCtx, data, opts.Language)
}

// Match returns the region keywords contained in text after normalisation.
func Match(text string, region geometry.RegionSpec) []string {
	norm := Normalize(text, region.Normalize)
	if norm == "" {
		return nil
	}
	var out []string
	for _, kw := range region.Keywords {
		if k := Normalize(kw, region.Normalize); k != "" && strings.Contains(norm, k) {
			out = append(out, kw)
		}
	}
	return out
}

// Normalize upper-cases text and either collapses runs of whitespace
// (NormalizeTrim) or removes them (NormalizeCompact).
func Normalize(text string, mode geometry.NormalizeMode) string {
	up := strings.ToUpper(text)
	if mode == geometry.NormalizeCompact {
		return strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, up)
	}
	return strings.Join(strings.Fields(up), " ")
}

func withDefaults(o Options) Options {
	if o.Language == "" {
		o.Language = ocr.DefaultLanguage
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultRegionTimeout
	}
	return o
}
