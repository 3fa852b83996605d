// Package redact hides profile and chat areas of a captured screen before
// it is saved locally.
package redact

import (
	"fmt"
	"image"
	"strings"

	"github.com/resultcap/platform/internal/geometry"
)

// Policy selects which classes of redaction region are applied.
type Policy int

const (
	// PolicyAll hides the user's profile, other players and chat.
	PolicyAll Policy = iota
	// PolicyOthers hides other players and chat but keeps the user's profile.
	PolicyOthers
	// PolicyChatOnly hides only the fixed chat pane.
	PolicyChatOnly
	// PolicyNone leaves the image untouched.
	PolicyNone
)

var policyNames = [...]string{"all", "others", "chat_only", "none"}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("Policy(%d)", int(p))
	}
	return policyNames[p]
}

// ParsePolicy reads a settings value.
func ParsePolicy(s string) (Policy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range policyNames {
		if name == s {
			return Policy(i), nil
		}
	}
	return PolicyAll, fmt.Errorf("unknown privacy policy %q", s)
}

func (p Policy) covers(k geometry.RedactKind) bool {
	switch p {
	case PolicyAll:
		return true
	case PolicyOthers:
		return k != geometry.KindSelf
	case PolicyChatOnly:
		return k == geometry.KindAlways
	default:
		return false
	}
}

// Mode is how a region is hidden.
type Mode int

const (
	ModeBlur Mode = iota
	ModeSolidFill
)

func (m Mode) String() string {
	if m == ModeSolidFill {
		return "solid"
	}
	return "blur"
}

// ParseMode reads a settings value.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blur":
		return ModeBlur, nil
	case "solid", "solid_fill", "fill":
		return ModeSolidFill, nil
	default:
		return ModeBlur, fmt.Errorf("unknown redaction mode %q", s)
	}
}

// Plan is the ordered set of rectangles to hide, in reference coordinates.
type Plan struct {
	Rects     []geometry.Rect
	Mode      Mode
	Reference image.Point
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Rects) == 0
}

// Resolve picks the redaction rectangles of (game, st) that policy covers.
func Resolve(catalog *geometry.Catalog, game geometry.Game, st geometry.ScreenType, policy Policy, mode Mode) Plan {
	plan := Plan{Mode: mode, Reference: catalog.Reference(game)}
	if policy == PolicyNone {
		return plan
	}
	for _, r := range catalog.Redactions(game, st) {
		if policy.covers(r.Kind) {
			plan.Rects = append(plan.Rects, r.Rect)
		}
	}
	return plan
}
