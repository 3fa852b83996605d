// Package storage saves redacted result images to the user's pictures folder.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/upload"
)

// Naming constants
const (
	TimestampLayout = "20060102-150405"
	maxLabelRunes   = 64
	maxCollisions   = 100
)

// Local writes images under <picturesDir>/<appName>.
type Local struct {
	dir string
}

// NewLocal creates a store rooted at picturesDir/appName. The directory is
// created on first save.
func NewLocal(picturesDir, appName string) *Local {
	return &Local{dir: filepath.Join(picturesDir, sanitize(appName))}
}

// Dir returns the directory images are written to.
func (l *Local) Dir() string {
	return l.dir
}

// Save writes image for pd and returns the full path.
func (l *Local) Save(game geometry.Game, pd *upload.PlayData, image []byte, at time.Time) (string, error) {
	if pd == nil {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "nothing to save without play data")
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorageFailed, "create pictures directory").
			WithMetadata("dir", l.dir)
	}

	base := strings.TrimSuffix(FileName(game, pd, at), ".png")
	for i := 0; i < maxCollisions; i++ {
		name := base + ".png"
		if i > 0 {
			name = base + "-" + strconv.Itoa(i) + ".png"
		}
		path := filepath.Join(l.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeStorageFailed, "create image file").WithMetadata("path", path)
		}
		if _, err := f.Write(image); err != nil {
			f.Close()
			os.Remove(path)
			return "", apperrors.Wrap(err, apperrors.CodeStorageFailed, "write image file").WithMetadata("path", path)
		}
		if err := f.Close(); err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeStorageFailed, "close image file").WithMetadata("path", path)
		}
		return path, nil
	}
	return "", apperrors.Newf(apperrors.CodeStorageFailed, "too many files named %s", base)
}

// FileName builds <GAME>-<song or versus>-<score or match>-<timestamp>.png.
func FileName(game geometry.Game, pd *upload.PlayData, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%s.png",
		sanitize(game.Label()), sanitize(subjectLabel(pd)), sanitize(scoreLabel(pd)), at.Format(TimestampLayout))
}

func subjectLabel(pd *upload.PlayData) string {
	switch pd.Kind() {
	case geometry.Versus:
		return "Versus"
	case geometry.Collection:
		return "Collection"
	}
	if pd.SongTitle == "" {
		return "Unknown"
	}
	parts := []string{pd.SongTitle}
	if pd.Button > 0 {
		parts = append(parts, strconv.Itoa(pd.Button)+"B")
	}
	if pd.Pattern != "" {
		parts = append(parts, pd.Pattern)
	}
	return strings.Join(parts, " ")
}

func scoreLabel(pd *upload.PlayData) string {
	switch pd.Kind() {
	case geometry.Versus:
		return fmt.Sprintf("%dP", len(pd.Versus))
	case geometry.Collection:
		return "Records"
	}
	label := strconv.FormatFloat(pd.Score, 'f', 2, 64)
	if pd.MaxCombo {
		label += " MC"
	}
	return label
}

// sanitize makes s safe as a file name component on every platform.
func sanitize(s string) string {
	var b strings.Builder
	n := 0
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		if n >= maxLabelRunes {
			break
		}
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r), unicode.IsControl(r), unicode.IsSpace(r):
			if lastUnderscore {
				continue
			}
			b.WriteByte('_')
			lastUnderscore = true
		default:
			b.WriteRune(r)
			lastUnderscore = false
		}
		n++
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "_"
	}
	return out
}

// Describe summarises a saved file for logs and notifications.
func Describe(path string, size int) string {
	return filepath.Base(path) + " (" + humanize.Bytes(uint64(size)) + ")"
}
