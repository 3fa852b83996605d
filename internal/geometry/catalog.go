package geometry

import (
	"fmt"
	"image"
	"sort"
	"sync"

	apperrors "github.com/resultcap/platform/internal/errors"
)

// GameSpec is the full table set for one game.
type GameSpec struct {
	Game      Game
	Reference image.Point
	// Regions are checked in slice order; earlier entries win ties.
	Regions    []RegionSpec
	Redactions map[ScreenType][]RedactRegion
}

// Catalog maps (game, screen type) to capture and redaction regions.
type Catalog struct {
	mu    sync.RWMutex
	games map[Game]*GameSpec
}

// Default returns the built-in tables.
func Default() *Catalog {
	return New(respectV(), platinaLab())
}

// New builds a catalog from game specs.
func New(specs ...*GameSpec) *Catalog {
	c := &Catalog{games: make(map[Game]*GameSpec, len(specs))}
	for _, s := range specs {
		c.games[s.Game] = s
	}
	return c
}

// Games returns the known games in sorted order.
func (c *Catalog) Games() []Game {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Game, 0, len(c.games))
	for g := range c.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether the catalog knows game.
func (c *Catalog) Has(game Game) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.games[game]
	return ok
}

// Reference returns the resolution a game's tables are measured in.
func (c *Catalog) Reference(game Game) image.Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.games[game]; ok {
		return s.Reference
	}
	return ReferenceSize
}

// Regions returns the game's capture regions in priority order.
func (c *Catalog) Regions(game Game) []RegionSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.games[game]
	if !ok {
		return nil
	}
	out := make([]RegionSpec, len(s.Regions))
	copy(out, s.Regions)
	return out
}

// ScreenTypes returns the screen types the game can classify, in priority order.
func (c *Catalog) ScreenTypes(game Game) []ScreenType {
	regions := c.Regions(game)
	out := make([]ScreenType, len(regions))
	for i, r := range regions {
		out[i] = r.ScreenType
	}
	return out
}

// Redactions returns the privacy rectangles for (game, st).
func (c *Catalog) Redactions(game Game, st ScreenType) []RedactRegion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.games[game]
	if !ok {
		return nil
	}
	src := s.Redactions[st]
	out := make([]RedactRegion, len(src))
	copy(out, src)
	return out
}

// AllEnabled returns an EnabledSet with every region of game switched on.
func (c *Catalog) AllEnabled(game Game) EnabledSet {
	set := make(EnabledSet)
	for _, st := range c.ScreenTypes(game) {
		set[st] = true
	}
	return set
}

// Validate checks table consistency. It runs once at startup.
func (c *Catalog) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.games) == 0 {
		return apperrors.New(apperrors.CodeConfigInvalid, "geometry catalog is empty")
	}
	for game, s := range c.games {
		if s.Reference.X <= 0 || s.Reference.Y <= 0 {
			return invalid(game, "reference resolution %v must be positive", s.Reference)
		}
		if len(s.Regions) == 0 {
			return invalid(game, "no capture regions")
		}
		seen := make(map[ScreenType]bool, len(s.Regions))
		for _, r := range s.Regions {
			if r.ScreenType == None || r.ScreenType == Manual {
				return invalid(game, "region %q has non-classifiable screen type %s", r.Name, r.ScreenType)
			}
			if seen[r.ScreenType] {
				return invalid(game, "screen type %s listed twice", r.ScreenType)
			}
			seen[r.ScreenType] = true
			if len(r.Keywords) == 0 {
				return invalid(game, "region %q has no keywords", r.Name)
			}
			if err := checkRect(s.Reference, r.Rect); err != nil {
				return invalid(game, "region %q: %v", r.Name, err)
			}
		}
		for st, regions := range s.Redactions {
			for i, r := range regions {
				if err := checkRect(s.Reference, r.Rect); err != nil {
					return invalid(game, "redaction %s[%d]: %v", st, i, err)
				}
			}
		}
	}
	return nil
}

func checkRect(ref image.Point, r Rect) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("size %dx%d must be positive", r.Width, r.Height)
	}
	if !r.Image().In(image.Rectangle{Max: ref}) {
		return fmt.Errorf("%v lies outside %dx%d", r.Image(), ref.X, ref.Y)
	}
	return nil
}

func invalid(game Game, format string, args ...any) error {
	return apperrors.Newf(apperrors.CodeConfigInvalid, "geometry %s: "+format, append([]any{game}, args...)...).
		WithMetadata("game", string(game))
}
