package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/redact"
)

// Intervals are the capture periods a user may choose.
var Intervals = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	3 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

const regionsPrefix = "regions."

// Settings is a snapshot of the user-editable settings file.
type Settings struct {
	Interval      time.Duration
	FocusOnly     bool
	Regions       map[geometry.Game]geometry.EnabledSet
	Privacy       redact.Policy
	RedactMode    redact.Mode
	SaveEnabled   bool
	SaveRedacted  bool
	OCRLanguage   string
	OCRPreprocess bool
}

// DefaultSettings enables every region the catalog knows.
func DefaultSettings(catalog *geometry.Catalog) Settings {
	regions := make(map[geometry.Game]geometry.EnabledSet)
	for _, g := range catalog.Games() {
		regions[g] = catalog.AllEnabled(g)
	}
	return Settings{
		Interval:      Intervals[0],
		FocusOnly:     true,
		Regions:       regions,
		Privacy:       redact.PolicyAll,
		RedactMode:    redact.ModeBlur,
		SaveEnabled:   true,
		SaveRedacted:  true,
		OCRLanguage:   "eng",
		OCRPreprocess: true,
	}
}

// Enabled returns a copy of the region switches for game.
func (s Settings) Enabled(game geometry.Game) geometry.EnabledSet {
	out := make(geometry.EnabledSet, len(s.Regions[game]))
	maps.Copy(out, s.Regions[game])
	return out
}

// LoadSettings reads path. A missing file yields defaults.
func LoadSettings(path string, catalog *geometry.Catalog) (Settings, error) {
	if path == "" {
		return DefaultSettings(catalog), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("settings file not found, using defaults", "path", path)
		return DefaultSettings(catalog), nil
	}
	if err != nil {
		return Settings{}, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "read settings").
			WithMetadata("path", path)
	}
	s, err := ParseSettings(data, catalog)
	if err != nil {
		return Settings{}, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "parse settings").
			WithMetadata("path", path)
	}
	return s, nil
}

// ParseSettings reads INI data over the defaults.
func ParseSettings(data []byte, catalog *geometry.Catalog) (Settings, error) {
	f, err := ini.Load(data)
	if err != nil {
		return Settings{}, err
	}
	s := DefaultSettings(catalog)

	capture := f.Section("capture")
	if capture.HasKey("interval") {
		d, err := parseInterval(capture.Key("interval").String())
		if err != nil {
			return Settings{}, err
		}
		s.Interval = d
	}
	s.FocusOnly = capture.Key("focus_only").MustBool(s.FocusOnly)

	privacy := f.Section("privacy")
	if privacy.HasKey("policy") {
		if s.Privacy, err = redact.ParsePolicy(privacy.Key("policy").String()); err != nil {
			return Settings{}, err
		}
	}
	if privacy.HasKey("mode") {
		if s.RedactMode, err = redact.ParseMode(privacy.Key("mode").String()); err != nil {
			return Settings{}, err
		}
	}

	save := f.Section("save")
	s.SaveEnabled = save.Key("enabled").MustBool(s.SaveEnabled)
	s.SaveRedacted = save.Key("redacted").MustBool(s.SaveRedacted)

	ocr := f.Section("ocr")
	s.OCRLanguage = strings.TrimSpace(ocr.Key("language").MustString(s.OCRLanguage))
	s.OCRPreprocess = ocr.Key("preprocess").MustBool(s.OCRPreprocess)

	for _, sec := range f.Sections() {
		name, ok := strings.CutPrefix(sec.Name(), regionsPrefix)
		if !ok {
			continue
		}
		game := geometry.Game(strings.ToLower(name))
		if !catalog.Has(game) {
			slog.Debug("ignoring regions for unknown game", "game", game)
			continue
		}
		known := catalog.ScreenTypes(game)
		set := s.Regions[game]
		for _, key := range sec.Keys() {
			st, err := geometry.ParseScreenType(key.Name())
			if err != nil {
				return Settings{}, fmt.Errorf("[%s]: %w", sec.Name(), err)
			}
			if !slices.Contains(known, st) {
				return Settings{}, fmt.Errorf("[%s]: %s has no capture region", sec.Name(), st)
			}
			on, err := key.Bool()
			if err != nil {
				return Settings{}, fmt.Errorf("[%s] %s: %w", sec.Name(), key.Name(), err)
			}
			set[st] = on
		}
	}
	return s, nil
}

// parseInterval accepts "2s" or "2".
func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	d, err := time.ParseDuration(v)
	if err != nil {
		n, nerr := strconv.Atoi(v)
		if nerr != nil {
			return 0, fmt.Errorf("invalid capture interval %q", v)
		}
		d = time.Duration(n) * time.Second
	}
	if !slices.Contains(Intervals, d) {
		return 0, fmt.Errorf("capture interval %s is not one of %v", d, Intervals)
	}
	return d, nil
}
