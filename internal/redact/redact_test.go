package redact

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/resultcap/platform/internal/geometry"
)

const testGame geometry.Game = "test_game"

var (
	selfRect  = geometry.Rect{Left: 10, Top: 10, Width: 20, Height: 10}
	otherRect = geometry.Rect{Left: 60, Top: 10, Width: 20, Height: 10}
	chatRect  = geometry.Rect{Left: 40, Top: 30, Width: 20, Height: 10}
)

func testCatalog() *geometry.Catalog {
	return geometry.New(&geometry.GameSpec{
		Game:      testGame,
		Reference: image.Pt(100, 50),
		Regions: []geometry.RegionSpec{
			{Name: "versus", ScreenType: geometry.Versus, Rect: geometry.Rect{Width: 10, Height: 10}, Keywords: []string{"VERSUS"}},
		},
		Redactions: map[geometry.ScreenType][]geometry.RedactRegion{
			geometry.Versus: {
				{Rect: selfRect, Kind: geometry.KindSelf},
				{Rect: otherRect, Kind: geometry.KindOther},
				{Rect: chatRect, Kind: geometry.KindAlways},
			},
		},
	})
}

func patternPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(40 + x*3), G: uint8(200 - y*2), B: uint8((x * y) % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func samePixel(a, b image.Image, x, y int) bool {
	r1, g1, b1, a1 := a.At(x, y).RGBA()
	r2, g2, b2, a2 := b.At(x, y).RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}

func TestResolvePolicies(t *testing.T) {
	cat := testCatalog()
	tests := []struct {
		policy Policy
		want   []geometry.Rect
	}{
		{PolicyAll, []geometry.Rect{selfRect, otherRect, chatRect}},
		{PolicyOthers, []geometry.Rect{otherRect, chatRect}},
		{PolicyChatOnly, []geometry.Rect{chatRect}},
		{PolicyNone, nil},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			plan := Resolve(cat, testGame, geometry.Versus, tt.policy, ModeSolidFill)
			if len(plan.Rects) != len(tt.want) {
				t.Fatalf("rects = %v, want %v", plan.Rects, tt.want)
			}
			for i := range tt.want {
				if plan.Rects[i] != tt.want[i] {
					t.Errorf("rects[%d] = %v, want %v", i, plan.Rects[i], tt.want[i])
				}
			}
		})
	}
}

func TestResolveDefaultCatalog(t *testing.T) {
	cat := geometry.Default()
	all := Resolve(cat, geometry.GameRespectV, geometry.OpenLarge, PolicyAll, ModeBlur)
	others := Resolve(cat, geometry.GameRespectV, geometry.OpenLarge, PolicyOthers, ModeBlur)
	chat := Resolve(cat, geometry.GameRespectV, geometry.OpenLarge, PolicyChatOnly, ModeBlur)

	if len(all.Rects) != len(others.Rects)+1 {
		t.Errorf("all = %d rects, others = %d; all should add the user's slot", len(all.Rects), len(others.Rects))
	}
	if len(chat.Rects) != 1 {
		t.Errorf("chat only = %d rects, want 1", len(chat.Rects))
	}
	if p := Resolve(cat, geometry.GameRespectV, geometry.None, PolicyAll, ModeBlur); !p.Empty() {
		t.Errorf("none screen should have nothing to redact: %v", p.Rects)
	}
}

func TestRedactNoneIsIdentity(t *testing.T) {
	c := New(testCatalog())
	in := patternPNG(t, 100, 50)

	once := c.Redact(context.Background(), in, testGame, geometry.Versus, PolicyNone, ModeBlur)
	twice := c.Redact(context.Background(), once, testGame, geometry.Versus, PolicyNone, ModeBlur)

	if &once[0] != &in[0] || &twice[0] != &in[0] {
		t.Error("PolicyNone should return the input slice unchanged")
	}
}

func TestRedactSolidFillChangesOnlyPlannedPixels(t *testing.T) {
	c := New(testCatalog())
	in := patternPNG(t, 100, 50)
	out := c.Redact(context.Background(), in, testGame, geometry.Versus, PolicyChatOnly, ModeSolidFill)

	before, after := decode(t, in), decode(t, out)
	chat := chatRect.Image()
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			inside := image.Pt(x, y).In(chat)
			if inside {
				if r, g, b, _ := after.At(x, y).RGBA(); r|g|b != 0 {
					t.Fatalf("pixel (%d,%d) inside chat pane not black", x, y)
				}
				continue
			}
			if !samePixel(before, after, x, y) {
				t.Fatalf("pixel (%d,%d) outside the plan changed", x, y)
			}
		}
	}
}

func TestRedactBlur(t *testing.T) {
	c := New(testCatalog())
	in := patternPNG(t, 100, 50)
	out := c.Redact(context.Background(), in, testGame, geometry.Versus, PolicyOthers, ModeBlur)

	before, after := decode(t, in), decode(t, out)
	changed := 0
	other := otherRect.Image()
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			p := image.Pt(x, y)
			planned := p.In(other) || p.In(chatRect.Image())
			same := samePixel(before, after, x, y)
			if !planned && !same {
				t.Fatalf("pixel (%d,%d) outside the plan changed", x, y)
			}
			if p.In(other) && !same {
				changed++
			}
		}
	}
	if changed == 0 {
		t.Error("blur left the other player's profile untouched")
	}
	if !samePixel(before, after, 15, 15) {
		t.Error("PolicyOthers must keep the user's own profile")
	}
}

func TestRedactScalesWithFrame(t *testing.T) {
	c := New(testCatalog())
	in := patternPNG(t, 200, 100)
	after := decode(t, c.Redact(context.Background(), in, testGame, geometry.Versus, PolicyChatOnly, ModeSolidFill))

	// chat pane at 2x: (80,60)-(120,80)
	if r, g, b, _ := after.At(110, 75).RGBA(); r|g|b != 0 {
		t.Error("scaled chat pane not filled")
	}
	if !samePixel(decode(t, in), after, 50, 75) {
		t.Error("pixel left of scaled pane changed")
	}
}

func TestRedactGarbageKeepsOriginal(t *testing.T) {
	c := New(testCatalog())
	in := []byte("definitely not a png")

	out := c.Redact(context.Background(), in, testGame, geometry.Versus, PolicyAll, ModeBlur)
	if !bytes.Equal(in, out) {
		t.Error("undecodable frame should be returned as-is")
	}
}

func TestParsePolicyAndMode(t *testing.T) {
	for _, name := range []string{"all", "others", "chat_only", "none"} {
		p, err := ParsePolicy(" " + name + " ")
		if err != nil || p.String() != name {
			t.Errorf("ParsePolicy(%q) = (%v, %v)", name, p, err)
		}
	}
	if _, err := ParsePolicy("friends"); err == nil {
		t.Error("unknown policy should fail")
	}
	if m, err := ParseMode("SOLID"); err != nil || m != ModeSolidFill {
		t.Errorf("ParseMode(SOLID) = (%v, %v)", m, err)
	}
	if m, err := ParseMode("blur"); err != nil || m != ModeBlur {
		t.Errorf("ParseMode(blur) = (%v, %v)", m, err)
	}
	if _, err := ParseMode("pixelate"); err == nil {
		t.Error("unknown mode should fail")
	}
}
