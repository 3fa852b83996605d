package pipeline

import (
	"context"

	"github.com/resultcap/platform/internal/buffer"
	"github.com/resultcap/platform/internal/config"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/history"
	"github.com/resultcap/platform/internal/redact"
	"github.com/resultcap/platform/internal/screen"
	"github.com/resultcap/platform/internal/trace"
	"github.com/resultcap/platform/internal/upload"
)

// Sinks receive the outcome of an upload. Redactor, Saver and History may
// be nil.
type Sinks struct {
	Uploader Uploader
	Redactor Redactor
	Saver    Saver
	History  History
	Store    *buffer.Store
}

type job struct {
	game       geometry.Game
	frame      *screen.Frame
	screenType geometry.ScreenType
	settings   config.Settings
	auth       upload.Auth
}

// process uploads one frame and fans the outcome out to storage, history
// and the buffers. Failures end up as notifications, never as errors.
func (p *Sinks) process(ctx context.Context, j job) {
	ctx, span := trace.StartSpan(ctx, trace.SpanProcess, j.game)
	span.SetScreenType(j.screenType)
	log := trace.Logger(ctx).With("game", j.game)

	outcome, err := p.Uploader.Upload(ctx, j.frame.Data, j.game, j.screenType, j.auth)
	if err != nil {
		span.Finish(ctx, err)
		p.Store.Notify(failureNotice(j.game, err))
		return
	}
	if outcome.Unverified {
		span.SetAttr("verified", false)
		span.Finish(ctx, nil)
		p.Store.Notify(unverifiedNotice(j.game))
		return
	}

	pd := outcome.PlayData
	if outcome.Previous == nil {
		outcome.Previous = p.localBest(ctx, j.game, pd)
	}

	path, size := p.save(ctx, j, pd)
	p.record(ctx, j, pd, path)

	p.Store.AddResult(buffer.Result{
		Game:       j.game,
		ScreenType: pd.Kind().Tag(),
		PlayData:   pd,
		Previous:   outcome.Previous,
		SavedPath:  path,
		CapturedAt: j.frame.CapturedAt,
	})
	p.Store.Notify(successNotice(j.game, outcome, path, size))

	log.Info("result processed", "screen_type", pd.Kind(), "song", pd.SongTitle, "saved", path != "")
	span.SetAttr("verified", true)
	span.Finish(ctx, nil)
}

// localBest falls back to the history database when the backend gave no
// previous score.
func (p *Sinks) localBest(ctx context.Context, game geometry.Game, pd *upload.PlayData) *upload.Best {
	if p.History == nil || !pd.Comparable() {
		return nil
	}
	rec, err := p.History.Best(ctx, game, pd.SongTitle, pd.Button, pd.Pattern)
	if err != nil {
		trace.Logger(ctx).Debug("local best unavailable", "error", err)
		return nil
	}
	if rec == nil {
		return nil
	}
	return &upload.Best{Score: rec.Score, MaxCombo: rec.MaxCombo, UpdatedAt: rec.CreatedAt}
}

func (p *Sinks) save(ctx context.Context, j job, pd *upload.PlayData) (string, int) {
	if p.Saver == nil || !j.settings.SaveEnabled {
		return "", 0
	}
	img := j.frame.Data
	if j.settings.SaveRedacted && p.Redactor != nil {
		st := pd.Kind()
		if st == geometry.None {
			st = j.screenType
		}
		if st == geometry.Manual && j.settings.Privacy != redact.PolicyNone {
			// Manual screens have no region geometry, so nothing could be hidden.
			trace.Logger(ctx).Warn("local save skipped, screen type unknown", "game", j.game,
				"reported", pd.ScreenType, "privacy", j.settings.Privacy)
			p.Store.Notify(unredactableNotice(j.game))
			return "", 0
		}
		img = p.Redactor.Redact(ctx, img, j.game, st, j.settings.Privacy, j.settings.RedactMode)
	}
	path, err := p.Saver.Save(j.game, pd, img, j.frame.CapturedAt)
	if err != nil {
		trace.Logger(ctx).Warn("local save failed", "game", j.game, "error", err)
		p.Store.Notify(saveFailedNotice(j.game, err))
		return "", 0
	}
	return path, len(img)
}

func (p *Sinks) record(ctx context.Context, j job, pd *upload.PlayData, path string) {
	if p.History == nil {
		return
	}
	if _, err := p.History.Record(ctx, history.FromPlayData(j.game, pd, path, j.frame.CapturedAt)); err != nil {
		trace.Logger(ctx).Warn("history record failed", "game", j.game, "error", err)
	}
}
