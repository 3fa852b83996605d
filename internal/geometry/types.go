// Package geometry holds the per-game region tables used to classify and
// redact captured result screens.
package geometry

import (
	"fmt"
	"image"
	"strings"
)

// Game identifies a supported rhythm game.
type Game string

const (
	GameRespectV   Game = "djmax_respect_v"
	GamePlatinaLab Game = "platina_lab"
)

// Label is the upper-case form used in saved file names.
func (g Game) Label() string {
	return strings.ToUpper(string(g))
}

// ScreenType is the classified kind of on-screen layout.
type ScreenType int

const (
	None ScreenType = iota
	Result
	OpenSmall
	OpenLarge
	Versus
	Collection
	Select
	OpenSelect
	// Manual marks a user-initiated upload that skipped classification.
	Manual
)

var screenTags = [...]string{
	None:       "none",
	Result:     "result",
	OpenSmall:  "open_small",
	OpenLarge:  "open_large",
	Versus:     "versus",
	Collection: "collection",
	Select:     "select",
	OpenSelect: "open_select",
	Manual:     "manual",
}

// Tag is the wire name sent as the upload "where" field.
func (s ScreenType) Tag() string {
	if int(s) < 0 || int(s) >= len(screenTags) {
		return fmt.Sprintf("screen(%d)", int(s))
	}
	return screenTags[s]
}

func (s ScreenType) String() string { return s.Tag() }

// ParseScreenType maps a tag back to its ScreenType.
func ParseScreenType(tag string) (ScreenType, error) {
	t := strings.ToLower(strings.TrimSpace(tag))
	for i, name := range screenTags {
		if name == t {
			return ScreenType(i), nil
		}
	}
	return None, fmt.Errorf("unknown screen type %q", tag)
}

// Rect is a region in a game's reference resolution.
type Rect struct {
	Left   int `yaml:"left"`
	Top    int `yaml:"top"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Image returns the rectangle as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

// Scale maps r from the reference resolution onto a frame of the given size.
func (r Rect) Scale(ref, actual image.Point) image.Rectangle {
	if ref.X <= 0 || ref.Y <= 0 || ref == actual {
		return r.Image()
	}
	sx := float64(actual.X) / float64(ref.X)
	sy := float64(actual.Y) / float64(ref.Y)
	return image.Rect(
		int(float64(r.Left)*sx),
		int(float64(r.Top)*sy),
		int(float64(r.Left+r.Width)*sx+0.5),
		int(float64(r.Top+r.Height)*sy+0.5),
	)
}

// NormalizeMode controls how recognised text is prepared before matching.
type NormalizeMode int

const (
	// NormalizeTrim upper-cases and trims surrounding whitespace.
	NormalizeTrim NormalizeMode = iota
	// NormalizeCompact upper-cases and removes every whitespace rune.
	NormalizeCompact
)

// RegionSpec is one capture crop used for classification.
type RegionSpec struct {
	Name       string
	ScreenType ScreenType
	Rect       Rect
	Keywords   []string
	Normalize  NormalizeMode
}

// RedactKind says whose information a redaction rectangle covers.
type RedactKind int

const (
	// KindSelf covers the user's own profile.
	KindSelf RedactKind = iota
	// KindOther covers another player's profile.
	KindOther
	// KindAlways covers content redacted under every policy except none.
	KindAlways
)

func (k RedactKind) String() string {
	return [...]string{"self", "other", "always"}[k]
}

// RedactRegion is one privacy rectangle for a screen type.
type RedactRegion struct {
	Rect Rect
	Kind RedactKind
}

// EnabledSet records which capture regions the user has switched on.
type EnabledSet map[ScreenType]bool

// Enabled reports whether st is switched on. Missing entries are off.
func (e EnabledSet) Enabled(st ScreenType) bool {
	return e[st]
}
