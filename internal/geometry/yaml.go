package geometry

import (
	"image"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/resultcap/platform/internal/errors"
)

// File is the YAML override format.
//
//	games:
//	  djmax_respect_v:
//	    reference: {width: 2560, height: 1440}
//	    regions:
//	      - name: judgement
//	        screen_type: result
//	        rect: {left: 1853, top: 333, width: 466, height: 53}
//	        keywords: [JUDGEMENT, DETAILS]
//	    redactions:
//	      result:
//	        - rect: {left: 1853, top: 26, width: 666, height: 120}
//	          kind: self
type File struct {
	Games map[Game]GameFile `yaml:"games"`
}

type GameFile struct {
	Reference  *SizeFile               `yaml:"reference"`
	Regions    []RegionFile            `yaml:"regions"`
	Redactions map[string][]RedactFile `yaml:"redactions"`
}

type SizeFile struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type RegionFile struct {
	Name       string   `yaml:"name"`
	ScreenType string   `yaml:"screen_type"`
	Rect       Rect     `yaml:"rect"`
	Keywords   []string `yaml:"keywords"`
	Normalize  string   `yaml:"normalize"`
}

type RedactFile struct {
	Rect Rect   `yaml:"rect"`
	Kind string `yaml:"kind"`
}

// LoadYAML merges the override file at path into c and re-validates.
// An empty path is a no-op.
func (c *Catalog) LoadYAML(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "read geometry file %s", path)
	}
	if err := c.MergeYAML(data); err != nil {
		return err
	}
	return c.Validate()
}

// MergeYAML applies an override document. A game's region list is replaced
// wholesale when given; redactions are replaced per screen type.
func (c *Catalog) MergeYAML(data []byte) error {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigInvalid, "parse geometry yaml")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for game, gf := range f.Games {
		spec, ok := c.games[game]
		if !ok {
			spec = &GameSpec{Game: game, Reference: ReferenceSize, Redactions: make(map[ScreenType][]RedactRegion)}
			c.games[game] = spec
		}
		if spec.Redactions == nil {
			spec.Redactions = make(map[ScreenType][]RedactRegion)
		}
		if gf.Reference != nil {
			spec.Reference = image.Pt(gf.Reference.Width, gf.Reference.Height)
		}
		if len(gf.Regions) > 0 {
			regions := make([]RegionSpec, 0, len(gf.Regions))
			for _, rf := range gf.Regions {
				r, err := rf.spec()
				if err != nil {
					return apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "geometry %s region %q", game, rf.Name)
				}
				regions = append(regions, r)
			}
			spec.Regions = regions
		}
		for tag, list := range gf.Redactions {
			st, err := ParseScreenType(tag)
			if err != nil {
				return apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "geometry %s redactions", game)
			}
			regions := make([]RedactRegion, 0, len(list))
			for _, rf := range list {
				kind, err := parseKind(rf.Kind)
				if err != nil {
					return apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "geometry %s redactions %s", game, tag)
				}
				regions = append(regions, RedactRegion{Rect: rf.Rect, Kind: kind})
			}
			spec.Redactions[st] = regions
		}
	}
	return nil
}

func (rf RegionFile) spec() (RegionSpec, error) {
	st, err := ParseScreenType(rf.ScreenType)
	if err != nil {
		return RegionSpec{}, err
	}
	mode := NormalizeTrim
	switch rf.Normalize {
	case "", "trim":
	case "compact":
		mode = NormalizeCompact
	default:
		return RegionSpec{}, apperrors.Newf(apperrors.CodeConfigInvalid, "unknown normalize mode %q", rf.Normalize)
	}
	name := rf.Name
	if name == "" {
		name = st.Tag()
	}
	return RegionSpec{Name: name, ScreenType: st, Rect: rf.Rect, Keywords: rf.Keywords, Normalize: mode}, nil
}

func parseKind(s string) (RedactKind, error) {
	switch s {
	case "self":
		return KindSelf, nil
	case "other":
		return KindOther, nil
	case "always":
		return KindAlways, nil
	default:
		return KindSelf, apperrors.Newf(apperrors.CodeConfigInvalid, "unknown redaction kind %q", s)
	}
}
