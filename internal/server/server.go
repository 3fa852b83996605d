package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/resultcap/platform/internal/buffer"
	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/history"
	"github.com/resultcap/platform/internal/pipeline"
	"github.com/resultcap/platform/internal/trace"
)

// Pipeline is the capture control surface the handlers drive.
type Pipeline interface {
	Games() []geometry.Game
	Start(ctx context.Context, game geometry.Game) error
	Stop(game geometry.Game) error
	Status(game geometry.Game) (pipeline.Status, error)
	ManualUpload(ctx context.Context, game geometry.Game) error
	History(ctx context.Context, game geometry.Game, limit int) ([]history.Record, error)
	ReloadSettings(ctx context.Context) error
	Store() *buffer.Store
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	pipe       Pipeline
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a server and starts broadcasting store events.
func New(pipe Pipeline) *Server {
	s := &Server{
		pipe:       pipe,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
		done:       make(chan struct{}),
	}
	go s.broadcastEvents()
	return s
}

// Close stops the event broadcaster.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Use(trace.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/games", s.handleGames)
		r.Post("/settings/reload", s.handleReloadSettings)

		r.Get("/notifications", s.handleNotifications)
		r.Delete("/notifications/{id}", s.handleDismissNotification)

		r.Route("/results/{game}", func(r chi.Router) {
			r.Use(s.requireGame)
			r.Get("/", s.handleResults)
			r.Delete("/{id}", s.handleDismissResult)
		})
		r.Route("/capture/{game}", func(r chi.Router) {
			r.Use(s.requireGame)
			r.Get("/", s.handleCaptureStatus)
			r.Post("/start", s.handleCaptureStart)
			r.Post("/stop", s.handleCaptureStop)
		})
		r.With(s.requireGame).Post("/upload/{game}/manual", s.handleManualUpload)
		r.With(s.requireGame).Get("/history/{game}", s.handleHistory)
	})
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireGame rejects paths whose {game} is not configured.
func (s *Server) requireGame(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		game := gameParam(r)
		for _, g := range s.pipe.Games() {
			if g == game {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, r, apperrors.New(apperrors.CodeInvalidArgument, "unknown game").
			WithMetadata("game", string(game)), http.StatusNotFound)
	})
}

func gameParam(r *http.Request) geometry.Game {
	return geometry.Game(chi.URLParam(r, "game"))
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	games := s.pipe.Games()
	out := make([]pipeline.Status, 0, len(games))
	for _, g := range games {
		st, err := s.pipe.Status(g)
		if err != nil {
			writeError(w, r, err, 0)
			return
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Store().Results(gameParam(r)))
}

func (s *Server) handleDismissResult(w http.ResponseWriter, r *http.Request) {
	if !s.pipe.Store().RemoveResult(gameParam(r), chi.URLParam(r, "id")) {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Store().Notifications())
}

func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	if !s.pipe.Store().Dismiss(chi.URLParam(r, "id")) {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCaptureStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.pipe.Status(gameParam(r))
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	game := gameParam(r)
	// The capture loop outlives the request.
	if err := s.pipe.Start(context.WithoutCancel(r.Context()), game); err != nil {
		writeError(w, r, err, 0)
		return
	}
	s.handleCaptureStatus(w, r)
}

func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	if err := s.pipe.Stop(gameParam(r)); err != nil {
		writeError(w, r, err, 0)
		return
	}
	s.handleCaptureStatus(w, r)
}

func (s *Server) handleManualUpload(w http.ResponseWriter, r *http.Request) {
	game := gameParam(r)
	if err := s.pipe.ManualUpload(r.Context(), game); err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "upload_started", "game": string(game)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxHistoryLimit {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := s.pipe.History(r.Context(), gameParam(r), limit)
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleReloadSettings(w http.ResponseWriter, r *http.Request) {
	if err := s.pipe.ReloadSettings(r.Context()); err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settings_reloaded"})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps an AppError code to an HTTP status unless status is set.
func writeError(w http.ResponseWriter, r *http.Request, err error, status int) {
	code := apperrors.CodeOf(err)
	if status == 0 {
		status = httpStatus(code)
	}
	if status >= http.StatusInternalServerError {
		trace.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code.String()})
}

func httpStatus(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.CodeUnavailable:
		return http.StatusConflict
	case apperrors.CodeConfigInvalid:
		return http.StatusUnprocessableEntity
	case apperrors.CodeCaptureUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
