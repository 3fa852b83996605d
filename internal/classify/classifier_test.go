package classify

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"sync"
	"testing"

	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/screen"
)

// fakeOCR answers by crop width so tests can tell regions apart.
type fakeOCR struct {
	mu       sync.Mutex
	byWidth  map[int]string
	errWidth map[int]error
	fallback string
	calls    []int
	lang     string
}

func (f *fakeOCR) Recognize(_ context.Context, img []byte, lang string) (string, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cfg.Width)
	f.lang = lang
	if err := f.errWidth[cfg.Width]; err != nil {
		return "", err
	}
	if text, ok := f.byWidth[cfg.Width]; ok {
		return text, nil
	}
	return f.fallback, nil
}

const testGame geometry.Game = "test_game"

func testCatalog() *geometry.Catalog {
	return geometry.New(&geometry.GameSpec{
		Game:      testGame,
		Reference: image.Pt(200, 100),
		Regions: []geometry.RegionSpec{
			{Name: "judgement", ScreenType: geometry.Result, Rect: geometry.Rect{Left: 0, Top: 0, Width: 40, Height: 10}, Keywords: []string{"JUDGEMENT", "DETAILS"}},
			{Name: "large", ScreenType: geometry.OpenLarge, Rect: geometry.Rect{Left: 0, Top: 20, Width: 30, Height: 10}, Keywords: []string{"MAX"}},
			{Name: "small", ScreenType: geometry.OpenSmall, Rect: geometry.Rect{Left: 0, Top: 40, Width: 20, Height: 10}, Keywords: []string{"MAX"}},
			{Name: "versus", ScreenType: geometry.Versus, Rect: geometry.Rect{Left: 0, Top: 60, Width: 50, Height: 10}, Keywords: []string{"VERSUS", "MATCHRESULT"}, Normalize: geometry.NormalizeCompact},
		},
	})
}

func testFrame(game geometry.Game, w, h int) *screen.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 40, A: 255})
		}
	}
	return &screen.Frame{Image: img, Width: w, Height: h, Game: game}
}

func allEnabled() geometry.EnabledSet {
	return testCatalog().AllEnabled(testGame)
}

func TestClassifyResultScreen(t *testing.T) {
	rec := &fakeOCR{byWidth: map[int]string{40: "  judgement details \n"}}
	c := New(testCatalog(), rec, Options{})

	res, err := c.Classify(context.Background(), testFrame(testGame, 200, 100), allEnabled())
	if err != nil {
		t.Fatalf("Classify() = %v", err)
	}
	if res.ScreenType != geometry.Result {
		t.Errorf("screen type = %v, want result", res.ScreenType)
	}
	if res.Region != "judgement" || !res.Matched() {
		t.Errorf("unexpected result %+v", res)
	}
	if !reflect.DeepEqual(rec.calls, []int{40}) {
		t.Errorf("OCR calls = %v, want only the judgement region", rec.calls)
	}
}

func TestClassifyDisabledRegionNeverRead(t *testing.T) {
	rec := &fakeOCR{byWidth: map[int]string{40: "JUDGEMENT", 30: "MAX"}}
	c := New(testCatalog(), rec, Options{})
	enabled := allEnabled()
	enabled[geometry.Result] = false

	res, err := c.Classify(context.Background(), testFrame(testGame, 200, 100), enabled)
	if err != nil {
		t.Fatalf("Classify() = %v", err)
	}
	if res.ScreenType != geometry.OpenLarge {
		t.Errorf("screen type = %v, want open_large", res.ScreenType)
	}
	for _, w := range rec.calls {
		if w == 40 {
			t.Fatal("disabled result region was sent to OCR")
		}
	}
}

func TestClassifyPriorityTieBreak(t *testing.T) {
	rec := &fakeOCR{byWidth: map[int]string{30: "MAX", 20: "MAX"}}
	c := New(testCatalog(), rec, Options{})

	res, err := c.Classify(context.Background(), testFrame(testGame, 200, 100), allEnabled())
	if err != nil {
		t.Fatal(err)
	}
	if res.ScreenType != geometry.OpenLarge {
		t.Errorf("screen type = %v, want open_large (earlier in priority)", res.ScreenType)
	}
	if !reflect.DeepEqual(rec.calls, []int{40, 30}) {
		t.Errorf("OCR calls = %v, want walk to stop at first match", rec.calls)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	rec := &fakeOCR{fallback: "SETTINGS"}
	c := New(testCatalog(), rec, Options{})

	res, err := c.Classify(context.Background(), testFrame(testGame, 200, 100), allEnabled())
	if err != nil {
		t.Fatalf("Classify() = %v", err)
	}
	if res.ScreenType != geometry.None || res.Matched() {
		t.Errorf("screen type = %v, want none", res.ScreenType)
	}
	if len(res.Candidates) != 4 {
		t.Errorf("candidates = %d, want 4", len(res.Candidates))
	}
}

func TestClassifyCompactNormalisation(t *testing.T) {
	rec := &fakeOCR{byWidth: map[int]string{50: "match  re sult"}}
	c := New(testCatalog(), rec, Options{})

	res, err := c.Classify(context.Background(), testFrame(testGame, 200, 100), allEnabled())
	if err != nil {
		t.Fatal(err)
	}
	if res.ScreenType != geometry.Versus {
		t.Errorf("screen type = %v, want versus", res.ScreenType)
	}
}

func TestClassifyOCROutageIsInconclusive(t *testing.T) {
	rec := &fakeOCR{errWidth: map[int]error{40: apperrors.New(apperrors.CodeUnavailable, "sidecar down")}}
	c := New(testCatalog(), rec, Options{})

	res, err := c.Classify(context.Background(), testFrame(testGame, 200, 100), allEnabled())
	if !apperrors.IsCode(err, apperrors.CodeOCRFailed) {
		t.Fatalf("Classify() error = %v, want OCR_FAILED", err)
	}
	if res.ScreenType != geometry.None {
		t.Errorf("screen type = %v, want none", res.ScreenType)
	}
}

func TestClassifyMatchAfterOCRFailure(t *testing.T) {
	rec := &fakeOCR{
		errWidth: map[int]error{40: apperrors.New(apperrors.CodeTimeout, "slow")},
		byWidth:  map[int]string{30: "MAX"},
	}
	c := New(testCatalog(), rec, Options{})

	res, err := c.Classify(context.Background(), testFrame(testGame, 200, 100), allEnabled())
	if err != nil {
		t.Fatalf("a later match should win over an earlier failure: %v", err)
	}
	if res.ScreenType != geometry.OpenLarge {
		t.Errorf("screen type = %v, want open_large", res.ScreenType)
	}
}

func TestClassifyNothingEnabled(t *testing.T) {
	rec := &fakeOCR{fallback: "JUDGEMENT"}
	c := New(testCatalog(), rec, Options{})

	res, err := c.Classify(context.Background(), testFrame(testGame, 200, 100), geometry.EnabledSet{})
	if err != nil || res.ScreenType != geometry.None {
		t.Errorf("Classify() = (%v, %v), want (none, nil)", res.ScreenType, err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("OCR called %d times with every region disabled", len(rec.calls))
	}
}

func TestClassifyPreprocessUpscales(t *testing.T) {
	rec := &fakeOCR{byWidth: map[int]string{40 * UpscaleFactor: "JUDGEMENT"}}
	c := New(testCatalog(), rec, Options{Preprocess: true, Language: "kor"})

	res, err := c.Classify(context.Background(), testFrame(testGame, 200, 100), allEnabled())
	if err != nil {
		t.Fatal(err)
	}
	if res.ScreenType != geometry.Result {
		t.Errorf("screen type = %v, want result from upscaled crop", res.ScreenType)
	}
	if rec.lang != "kor" {
		t.Errorf("language = %q, want kor", rec.lang)
	}
}

func TestClassifyScalesToFrame(t *testing.T) {
	rec := &fakeOCR{byWidth: map[int]string{80: "JUDGEMENT"}}
	c := New(testCatalog(), rec, Options{})

	res, err := c.Classify(context.Background(), testFrame(testGame, 400, 200), allEnabled())
	if err != nil {
		t.Fatal(err)
	}
	if res.ScreenType != geometry.Result {
		t.Errorf("screen type = %v, want result from 2x frame", res.ScreenType)
	}
}

func TestClassifyDefaultCatalog(t *testing.T) {
	cat := geometry.Default()
	rec := &fakeOCR{fallback: "MAX"}
	c := New(cat, rec, Options{})
	enabled := cat.AllEnabled(geometry.GameRespectV)
	enabled[geometry.Result] = false

	res, err := c.Classify(context.Background(), testFrame(geometry.GameRespectV, 960, 540), enabled)
	if err != nil {
		t.Fatal(err)
	}
	if res.ScreenType != geometry.OpenLarge {
		t.Errorf("screen type = %v, want open_large", res.ScreenType)
	}
	if len(rec.calls) != 1 {
		t.Errorf("OCR calls = %d, want 1", len(rec.calls))
	}
}

func TestClassifyCancelled(t *testing.T) {
	rec := &fakeOCR{fallback: "JUDGEMENT"}
	c := New(testCatalog(), rec, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Classify(ctx, testFrame(testGame, 200, 100), allEnabled())
	if !apperrors.IsCode(err, apperrors.CodeCancelled) {
		t.Errorf("Classify() = %v, want CANCELLED", err)
	}
	if len(rec.calls) != 0 {
		t.Error("cancelled classification should not call OCR")
	}
}

func TestSetOptions(t *testing.T) {
	c := New(testCatalog(), &fakeOCR{}, Options{})
	if c.Options().Timeout != DefaultRegionTimeout || c.Options().Language == "" {
		t.Errorf("defaults not applied: %+v", c.Options())
	}
	c.SetOptions(Options{Language: "jpn", Preprocess: true})
	if got := c.Options(); got.Language != "jpn" || !got.Preprocess {
		t.Errorf("Options() = %+v", got)
	}
}

func TestForManual(t *testing.T) {
	res := ForManual()
	if res.ScreenType != geometry.Manual || !res.Matched() {
		t.Errorf("ForManual() = %+v", res)
	}
}

func TestMatch(t *testing.T) {
	judgement := geometry.RegionSpec{Keywords: []string{"JUDGEMENT", "MAX COMBO"}}
	versus := geometry.RegionSpec{Keywords: []string{"MATCHRESULT"}, Normalize: geometry.NormalizeCompact}

	tests := []struct {
		name   string
		text   string
		region geometry.RegionSpec
		want   []string
	}{
		{"lower case", "judgement", judgement, []string{"JUDGEMENT"}},
		{"collapsed spaces", "max   combo", judgement, []string{"MAX COMBO"}},
		{"both", "JUDGEMENT  MAX COMBO", judgement, []string{"JUDGEMENT", "MAX COMBO"}},
		{"empty", "  ", judgement, nil},
		{"no keyword", "OPTIONS", judgement, nil},
		{"compact", "Match\tResult", versus, []string{"MATCHRESULT"}},
		{"trim does not join words", "MATCH RESULT", geometry.RegionSpec{Keywords: []string{"MATCHRESULT"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.text, tt.region); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Match(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestEnhanceOutputsGray(t *testing.T) {
	src := testFrame(testGame, 10, 6).Image
	out := enhance(src)
	if _, ok := out.(*image.Gray); !ok {
		t.Fatalf("enhance() returned %T, want *image.Gray", out)
	}
	if out.Bounds().Dx() != 10*UpscaleFactor || out.Bounds().Dy() != 6*UpscaleFactor {
		t.Errorf("bounds = %v", out.Bounds())
	}
}

func TestCropOutsideFrame(t *testing.T) {
	if got := cropRegion(testFrame(testGame, 10, 10).Image, image.Rect(20, 20, 30, 30)); got != nil {
		t.Error("crop outside the frame should be nil")
	}
}
