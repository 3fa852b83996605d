package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/resultcap/platform/internal/buffer"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/trace"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

// SnapshotMessage is sent once after connecting. Results holds every
// configured game's buffer, empty ones included.
type SnapshotMessage struct {
	Type          string                                          `json:"type"`
	Notifications []buffer.Entry[buffer.Notification]             `json:"notifications"`
	Results       map[geometry.Game][]buffer.Entry[buffer.Result] `json:"results"`
}

// DismissMessage removes a notification, or a result when Game is set.
type DismissMessage struct {
	Type string        `json:"type"`
	ID   string        `json:"id"`
	Game geometry.Game `json:"game,omitempty"`
}

// UploadMessage requests a manual upload.
type UploadMessage struct {
	Type string        `json:"type"`
	Game geometry.Game `json:"game"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx := r.Context()
	log := trace.Logger(ctx)

	// Snapshot before registering so it always precedes live events.
	if err := s.write(ctx, conn, s.snapshot()); err != nil {
		log.Debug("websocket snapshot failed", "error", err)
		return
	}

	rl := &rateLimiter{}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = rl
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = s.write(ctx, conn, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "dismiss":
			var d DismissMessage
			if err := json.Unmarshal(msg, &d); err != nil {
				continue
			}
			if d.Game != "" {
				s.pipe.Store().RemoveResult(d.Game, d.ID)
			} else {
				s.pipe.Store().Dismiss(d.ID)
			}
		case "manual_upload":
			var u UploadMessage
			if err := json.Unmarshal(msg, &u); err != nil {
				continue
			}
			uctx, _ := trace.EnsureContext(ctx)
			if err := s.pipe.ManualUpload(uctx, u.Game); err != nil {
				_ = s.write(ctx, conn, ErrorMessage{Type: "error", Message: err.Error()})
			}
		default:
			_ = s.write(ctx, conn, ErrorMessage{Type: "error", Message: "unknown message type"})
		}
	}
}

func (s *Server) snapshot() SnapshotMessage {
	store := s.pipe.Store()
	games := s.pipe.Games()
	results := make(map[geometry.Game][]buffer.Entry[buffer.Result], len(games))
	for _, g := range games {
		results[g] = store.Results(g)
	}
	return SnapshotMessage{
		Type:          "snapshot",
		Notifications: store.Notifications(),
		Results:       results,
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

// broadcastEvents pushes every store event to all connected clients.
func (s *Server) broadcastEvents() {
	events := s.pipe.Store().Events()
	for {
		select {
		case <-s.done:
			return
		case evt := <-events:
			s.mu.RLock()
			for conn := range s.conns {
				go func(c *websocket.Conn) {
					_ = s.write(context.Background(), c, evt)
				}(conn)
			}
			s.mu.RUnlock()
		}
	}
}
