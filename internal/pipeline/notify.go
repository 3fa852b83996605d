package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/resultcap/platform/internal/buffer"
	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/storage"
	"github.com/resultcap/platform/internal/upload"
)

func successNotice(game geometry.Game, out upload.Outcome, path string, size int) buffer.Notification {
	pd := out.PlayData
	var msg string
	switch pd.Kind() {
	case geometry.Versus:
		msg = versusSummary(pd.Versus)
	case geometry.Collection:
		msg = "Collection records updated"
	default:
		msg = chartSummary(out)
	}
	if path != "" {
		msg += ". Saved " + storage.Describe(path, size)
	}
	return buffer.Notification{
		Level:   buffer.LevelSuccess,
		Game:    game,
		Title:   "Result uploaded",
		Message: msg,
	}
}

func chartSummary(out upload.Outcome) string {
	pd := out.PlayData
	parts := make([]string, 0, 4)
	if pd.SongTitle != "" {
		parts = append(parts, pd.SongTitle)
	} else {
		parts = append(parts, "Unknown chart")
	}
	if pd.Button > 0 {
		parts = append(parts, fmt.Sprintf("%dB", pd.Button))
	}
	if pd.Pattern != "" {
		parts = append(parts, pd.Pattern)
	}
	parts = append(parts, fmt.Sprintf("%.2f%%", pd.Score))
	if pd.MaxCombo {
		parts = append(parts, "MAX COMBO")
	}
	s := strings.Join(parts, " ")

	delta, ok := out.Improvement()
	if !ok {
		return s
	}
	s += fmt.Sprintf(" (%+.2f vs best", delta)
	if !out.Previous.UpdatedAt.IsZero() {
		s += " from " + humanize.Time(out.Previous.UpdatedAt)
	}
	return s + ")"
}

func versusSummary(entries []upload.VersusEntry) string {
	if len(entries) == 0 {
		return "Versus result uploaded"
	}
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b upload.VersusEntry) int { return a.Rank - b.Rank })
	rows := make([]string, 0, len(sorted))
	for _, e := range sorted {
		rows = append(rows, fmt.Sprintf("%s %s %.2f%%", humanize.Ordinal(e.Rank), e.Nickname, e.Score))
	}
	return fmt.Sprintf("%d-player versus: %s", len(entries), strings.Join(rows, ", "))
}

func failureNotice(game geometry.Game, err error) buffer.Notification {
	var msg string
	switch apperrors.CodeOf(err) {
	case apperrors.CodeTimeout:
		msg = "The result server did not respond in time"
	case apperrors.CodeCancelled:
		msg = "The upload was cancelled"
	default:
		msg = "Could not upload the result screen"
	}
	return buffer.Notification{
		Level:   buffer.LevelError,
		Game:    game,
		Title:   "Upload failed",
		Message: msg + ". Use manual upload to retry.",
	}
}

func unverifiedNotice(game geometry.Game) buffer.Notification {
	return buffer.Notification{
		Level:   buffer.LevelWarning,
		Game:    game,
		Title:   "Result not verified",
		Message: "The server could not read this screen. Retry with a manual upload once the result is fully visible.",
	}
}

func saveFailedNotice(game geometry.Game, err error) buffer.Notification {
	return buffer.Notification{
		Level:   buffer.LevelWarning,
		Game:    game,
		Title:   "Image not saved",
		Message: "The result was uploaded but the local copy failed: " + apperrors.CodeOf(err).String(),
	}
}

func unredactableNotice(game geometry.Game) buffer.Notification {
	return buffer.Notification{
		Level:   buffer.LevelWarning,
		Game:    game,
		Title:   "Image not saved",
		Message: "The result was uploaded but its screen type is unknown, so private regions could not be hidden",
	}
}
