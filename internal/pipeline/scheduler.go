package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/resultcap/platform/internal/classify"
	"github.com/resultcap/platform/internal/config"
	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/latch"
	"github.com/resultcap/platform/internal/screen"
	"github.com/resultcap/platform/internal/syncx"
	"github.com/resultcap/platform/internal/trace"
	"github.com/resultcap/platform/internal/upload"
)

// SchedulerOptions configure one game's capture loop.
type SchedulerOptions struct {
	Window          string
	Auth            upload.Auth
	UploadTimeout   time.Duration
	SkipSimilar     bool
	MaxHashDistance int
}

// Scheduler polls one game window, classifies frames and launches uploads
// when the latch allows it.
type Scheduler struct {
	game       geometry.Game
	opts       SchedulerOptions
	capturer   screen.Capturer
	focus      screen.FocusChecker
	classifier Classifier
	sinks      *Sinks
	settings   func() config.Settings
	latch      *latch.Machine
	gate       syncx.Gate
	dedupe     *dedupe
	now        func() time.Time

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	lastFrame *screen.Frame
	failures  int

	uploads sync.WaitGroup
}

// NewScheduler creates a stopped scheduler for game. focus may be nil, in
// which case the window is always treated as focused.
func NewScheduler(game geometry.Game, opts SchedulerOptions, capturer screen.Capturer, focus screen.FocusChecker,
	classifier Classifier, sinks *Sinks, settings func() config.Settings) *Scheduler {
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	s := &Scheduler{
		game:       game,
		opts:       opts,
		capturer:   capturer,
		focus:      focus,
		classifier: classifier,
		sinks:      sinks,
		settings:   settings,
		latch:      latch.New(),
		now:        time.Now,
	}
	if opts.SkipSimilar {
		dist := opts.MaxHashDistance
		if dist <= 0 {
			dist = DefaultMaxHashDistance
		}
		s.dedupe = newDedupe(dist)
	}
	return s
}

// Game returns the game this scheduler captures.
func (s *Scheduler) Game() geometry.Game { return s.game }

// Latch exposes the upload state machine for inspection.
func (s *Scheduler) Latch() *latch.Machine { return s.latch }

// Start begins polling. It returns false if the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.failures = 0
	go s.run(ctx, s.done)
	return true
}

// Stop cancels future ticks and waits for the loop and any tick still
// capturing or classifying to exit. Uploads already in flight keep running;
// use Wait to block on them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Wait blocks until every launched upload has finished.
func (s *Scheduler) Wait() {
	s.uploads.Wait()
}

// DroppedTicks counts ticks skipped because a classification was still running.
func (s *Scheduler) DroppedTicks() uint64 {
	return s.gate.Dropped()
}

// ResetCache forgets the last classified frame so the next tick runs OCR.
func (s *Scheduler) ResetCache() {
	if s.dedupe != nil {
		s.dedupe.reset()
	}
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	// Ticks are joined before done closes, so no upload launches after Stop.
	var ticks sync.WaitGroup
	defer ticks.Wait()
	log := trace.Logger(ctx).With("game", s.game)

	interval := s.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info("capture started", "interval", interval, "window", s.opts.Window)

	for {
		select {
		case <-ctx.Done():
			log.Info("capture stopped")
			return
		case <-ticker.C:
			if d := s.interval(); d != interval {
				interval = d
				ticker.Reset(d)
				log.Info("capture interval changed", "interval", d)
			}
			if !s.gate.TryEnter() {
				log.Debug("tick dropped, previous frame still classifying")
				continue
			}
			ticks.Add(1)
			go func() {
				defer ticks.Done()
				defer s.gate.Leave()
				s.tick(ctx)
			}()
		}
	}
}

func (s *Scheduler) interval() time.Duration {
	if d := s.settings().Interval; d > 0 {
		return d
	}
	return config.Intervals[0]
}

// tick runs one capture and classify step. Every failure is local to the tick.
func (s *Scheduler) tick(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, trace.SpanCaptureTick, s.game)
	defer span.End()

	settings := s.settings()
	log := trace.Logger(ctx).With("game", s.game)

	if settings.FocusOnly && s.focus != nil {
		focused, err := s.focus.Focused(ctx, s.opts.Window)
		if err != nil {
			log.Debug("focus check failed", "error", err)
			return
		}
		if !focused {
			return
		}
	}

	frame, err := s.capture(ctx)
	if err != nil {
		s.captureFailed(log, err)
		return
	}

	result, err := s.classify(ctx, frame, settings.Enabled(s.game))
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("classification inconclusive", "error", err)
		}
		return
	}

	span.SetScreenType(result.ScreenType)
	if ctx.Err() != nil {
		return
	}
	if s.latch.Observe(result.ScreenType) == latch.Upload {
		log.Info("result screen detected", "screen_type", result.ScreenType, "region", result.Region)
		s.launch(ctx, frame, result.ScreenType, settings)
	}
}

func (s *Scheduler) capture(ctx context.Context) (*screen.Frame, error) {
	data, err := s.capturer.Capture(ctx, s.opts.Window)
	if err != nil {
		return nil, err
	}
	frame, err := screen.NewFrame(data, s.game, s.now())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastFrame = frame
	s.failures = 0
	s.mu.Unlock()
	return frame, nil
}

// captureFailed logs the first failure of a streak at warn and the rest at debug.
func (s *Scheduler) captureFailed(log *slog.Logger, err error) {
	s.mu.Lock()
	s.failures++
	n := s.failures
	s.mu.Unlock()
	if n == 1 {
		log.Warn("capture failed", "window", s.opts.Window, "error", err)
		return
	}
	log.Debug("capture failed", "window", s.opts.Window, "consecutive", n, "error", err)
}

func (s *Scheduler) classify(ctx context.Context, frame *screen.Frame, enabled geometry.EnabledSet) (classify.Result, error) {
	if s.dedupe == nil {
		return s.classifier.Classify(ctx, frame, enabled)
	}
	hash, cached, ok := s.dedupe.match(frame.Image)
	if ok {
		return cached, nil
	}
	result, err := s.classifier.Classify(ctx, frame, enabled)
	if err != nil {
		return result, err
	}
	s.dedupe.remember(hash, result)
	return result, nil
}

// ManualUpload uploads the current frame, or the last good one when capture
// fails, as a manual screen. It bypasses classification and the
// screen-exit latch but never runs alongside another upload for the game.
func (s *Scheduler) ManualUpload(ctx context.Context) error {
	frame, err := s.capture(ctx)
	if err != nil {
		s.mu.Lock()
		last := s.lastFrame
		s.mu.Unlock()
		if last == nil {
			return err
		}
		trace.Logger(ctx).Warn("capture failed, uploading last frame", "game", s.game, "error", err)
		frame = last
	}
	if !s.latch.BeginManual() {
		return apperrors.New(apperrors.CodeUnavailable, "an upload is already in progress").
			WithMetadata("game", string(s.game))
	}
	s.launch(ctx, frame, classify.ForManual().ScreenType, s.settings())
	return nil
}

// launch runs the upload detached from ctx cancellation so Stop never
// aborts it. The latch is completed after buffers are updated.
func (s *Scheduler) launch(ctx context.Context, frame *screen.Frame, st geometry.ScreenType, settings config.Settings) {
	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		defer s.latch.Complete()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.UploadTimeout)
		defer cancel()
		s.sinks.process(ctx, job{
			game:       s.game,
			frame:      frame,
			screenType: st,
			settings:   settings,
			auth:       s.opts.Auth,
		})
	}()
}
