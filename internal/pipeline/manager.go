package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/resultcap/platform/internal/buffer"
	"github.com/resultcap/platform/internal/classify"
	"github.com/resultcap/platform/internal/config"
	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/history"
	"github.com/resultcap/platform/internal/screen"
	"github.com/resultcap/platform/internal/syncx"
	"github.com/resultcap/platform/internal/trace"
	"github.com/resultcap/platform/internal/upload"
)

// Config is the process-level part of the pipeline setup.
type Config struct {
	Games             []geometry.Game
	Windows           map[geometry.Game]string
	Auth              upload.Auth
	OCRTimeout        time.Duration
	UploadTimeout     time.Duration
	SkipSimilarFrames bool
	MaxHashDistance   int
	SettingsFile      string
}

// Deps are the collaborators shared by every game's scheduler. Focus may be
// nil.
type Deps struct {
	Catalog    *geometry.Catalog
	Capturer   screen.Capturer
	Focus      screen.FocusChecker
	Classifier Classifier
	Sinks      Sinks
}

// Status is a point-in-time view of one game's pipeline.
type Status struct {
	Game         geometry.Game `json:"game"`
	Running      bool          `json:"running"`
	Latch        string        `json:"latch"`
	DroppedTicks uint64        `json:"droppedTicks"`
}

// Manager owns one scheduler per configured game together with the shared
// buffers, history and settings snapshot.
type Manager struct {
	cfg        Config
	catalog    *geometry.Catalog
	settings   *syncx.RWGuard[config.Settings]
	classifier Classifier
	sinks      *Sinks
	schedulers map[geometry.Game]*Scheduler
	games      []geometry.Game

	reloadMu sync.Mutex
}

// NewManager wires schedulers for cfg.Games. Every game must be in the
// catalog.
func NewManager(cfg Config, settings config.Settings, deps Deps) (*Manager, error) {
	if deps.Sinks.Store == nil {
		deps.Sinks.Store = buffer.NewDefaultStore()
	}
	m := &Manager{
		cfg:        cfg,
		catalog:    deps.Catalog,
		settings:   syncx.NewGuard(settings),
		classifier: deps.Classifier,
		schedulers: make(map[geometry.Game]*Scheduler),
	}
	sinks := deps.Sinks
	m.sinks = &sinks

	for _, g := range cfg.Games {
		if !m.catalog.Has(g) {
			return nil, apperrors.New(apperrors.CodeConfigInvalid, "unknown game").WithMetadata("game", string(g))
		}
		if _, dup := m.schedulers[g]; dup {
			continue
		}
		window := cfg.Windows[g]
		if window == "" {
			window = config.DefaultWindows[g]
		}
		m.schedulers[g] = NewScheduler(g, SchedulerOptions{
			Window:          window,
			Auth:            cfg.Auth,
			UploadTimeout:   cfg.UploadTimeout,
			SkipSimilar:     cfg.SkipSimilarFrames,
			MaxHashDistance: cfg.MaxHashDistance,
		}, deps.Capturer, deps.Focus, deps.Classifier, m.sinks, m.settings.Get)
		m.games = append(m.games, g)
	}
	m.applyOptions(settings)
	return m, nil
}

// Games lists the configured games in configuration order.
func (m *Manager) Games() []geometry.Game {
	out := make([]geometry.Game, len(m.games))
	copy(out, m.games)
	return out
}

// Store returns the result and notification buffers.
func (m *Manager) Store() *buffer.Store {
	return m.sinks.Store
}

func (m *Manager) scheduler(game geometry.Game) (*Scheduler, error) {
	s, ok := m.schedulers[game]
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "game is not configured").
			WithMetadata("game", string(game))
	}
	return s, nil
}

// Start begins capture for game. Starting a running game is a no-op.
func (m *Manager) Start(ctx context.Context, game geometry.Game) error {
	s, err := m.scheduler(game)
	if err != nil {
		return err
	}
	if s.Start(ctx) {
		m.sinks.Store.Notify(buffer.Notification{
			Level:   buffer.LevelInfo,
			Game:    game,
			Title:   "Capture started",
			Message: game.Label() + " is being watched for result screens",
		})
	}
	return nil
}

// Stop ends capture for game. In-flight uploads still complete.
func (m *Manager) Stop(game geometry.Game) error {
	s, err := m.scheduler(game)
	if err != nil {
		return err
	}
	s.Stop()
	return nil
}

// StartAll starts every configured game.
func (m *Manager) StartAll(ctx context.Context) {
	for _, g := range m.games {
		_ = m.Start(ctx, g)
	}
}

// StopAll stops every game loop.
func (m *Manager) StopAll() {
	for _, g := range m.games {
		m.schedulers[g].Stop()
	}
}

// Wait blocks until all in-flight uploads have finished.
func (m *Manager) Wait() {
	for _, g := range m.games {
		m.schedulers[g].Wait()
	}
}

// Running reports whether game is being captured.
func (m *Manager) Running(game geometry.Game) bool {
	s, err := m.scheduler(game)
	return err == nil && s.Running()
}

// Status describes game's pipeline.
func (m *Manager) Status(game geometry.Game) (Status, error) {
	s, err := m.scheduler(game)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Game:         game,
		Running:      s.Running(),
		Latch:        s.Latch().State().String(),
		DroppedTicks: s.DroppedTicks(),
	}, nil
}

// ManualUpload uploads game's current screen without classification.
func (m *Manager) ManualUpload(ctx context.Context, game geometry.Game) error {
	s, err := m.scheduler(game)
	if err != nil {
		return err
	}
	return s.ManualUpload(ctx)
}

// History returns recent processed uploads for game, newest first.
func (m *Manager) History(ctx context.Context, game geometry.Game, limit int) ([]history.Record, error) {
	if _, err := m.scheduler(game); err != nil {
		return nil, err
	}
	if m.sinks.History == nil {
		return []history.Record{}, nil
	}
	if limit <= 0 {
		limit = HistoryLimit
	}
	return m.sinks.History.Recent(ctx, game, limit)
}

// Settings returns the current settings snapshot.
func (m *Manager) Settings() config.Settings {
	return m.settings.Get()
}

// SetSettings swaps the settings snapshot. Running loops pick it up on their
// next tick.
func (m *Manager) SetSettings(s config.Settings) {
	m.settings.Set(s)
	m.applyOptions(s)
	for _, sc := range m.schedulers {
		sc.ResetCache()
	}
}

// ReloadSettings rereads the settings file. On error the current snapshot
// is kept.
func (m *Manager) ReloadSettings(ctx context.Context) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	s, err := config.LoadSettings(m.cfg.SettingsFile, m.catalog)
	if err != nil {
		trace.Logger(ctx).Warn("settings reload failed", "path", m.cfg.SettingsFile, "error", err)
		return err
	}
	m.SetSettings(s)
	trace.Logger(ctx).Info("settings reloaded", "path", m.cfg.SettingsFile, "interval", s.Interval,
		"privacy", s.Privacy, "focus_only", s.FocusOnly)
	return nil
}

func (m *Manager) applyOptions(s config.Settings) {
	if setter, ok := m.classifier.(optionSetter); ok {
		setter.SetOptions(classify.Options{
			Language:   s.OCRLanguage,
			Preprocess: s.OCRPreprocess,
			Timeout:    m.cfg.OCRTimeout,
		})
	}
}
