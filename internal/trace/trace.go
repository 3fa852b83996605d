// Package trace carries trace/span identifiers through capture ticks, OCR
// calls and uploads so one screen's log lines can be correlated.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/resultcap/platform/internal/geometry"
)

// Header and gRPC metadata keys.
const (
	TraceIDKey = "x-trace-id"
	SpanIDKey  = "x-span-id"
)

// Span names used by the capture pipeline.
const (
	SpanCaptureTick = "capture_tick"
	SpanClassify    = "classify"
	SpanProcess     = "process_result"
	SpanUpload      = "upload"
)

type ctxKey struct{}

// Context holds trace identifiers for a single span.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// New creates a root context with fresh IDs.
func New() Context {
	return Context{TraceID: randomHex(16), SpanID: randomHex(8)}
}

// Child returns a new span in the same trace.
func (c Context) Child() Context {
	if c.TraceID == "" {
		return New()
	}
	return Context{TraceID: c.TraceID, SpanID: randomHex(8), ParentSpanID: c.SpanID}
}

// FromContext extracts trace context from ctx.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// WithContext stores tc in ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// EnsureContext returns the existing trace context or starts a new trace.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	return WithContext(ctx, tc), tc
}

// extract continues a remote caller's trace. The caller's span becomes the
// parent; a missing trace id starts a new trace.
func extract(get func(key string) string) Context {
	return Context{TraceID: get(TraceIDKey), SpanID: get(SpanIDKey)}.Child()
}

// inject writes tc with set.
func inject(tc Context, set func(key, value string)) {
	set(TraceIDKey, tc.TraceID)
	set(SpanIDKey, tc.SpanID)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Span times one pipeline step for one game.
type Span struct {
	name       string
	tc         Context
	game       geometry.Game
	screenType geometry.ScreenType
	start      time.Time
	end        time.Time
	attrs      []slog.Attr
}

// StartSpan begins span name for game as a child of ctx's span.
func StartSpan(ctx context.Context, name string, game geometry.Game) (context.Context, *Span) {
	parent, _ := FromContext(ctx)
	s := &Span{
		name:  name,
		tc:    parent.Child(),
		game:  game,
		start: time.Now(),
	}
	return WithContext(ctx, s.tc), s
}

// Context returns the span's identifiers.
func (s *Span) Context() Context { return s.tc }

// SetScreenType records the screen the step worked on.
func (s *Span) SetScreenType(st geometry.ScreenType) {
	s.screenType = st
}

// SetAttr adds an attribute.
func (s *Span) SetAttr(key string, val any) {
	s.attrs = append(s.attrs, slog.Any(key, val))
}

// End marks the span as complete.
func (s *Span) End() {
	s.end = time.Now()
}

// Finish ends the span and logs it at debug level, or at warn level if err is set.
func (s *Span) Finish(ctx context.Context, err error) {
	s.End()
	log := Logger(ctx)
	if err != nil {
		log.Warn("span failed", "span", s, "error", err)
		return
	}
	log.Debug("span finished", "span", s)
}

// Duration is zero until the span ends.
func (s *Span) Duration() time.Duration {
	if s.end.IsZero() {
		return 0
	}
	return s.end.Sub(s.start)
}

// LogValue implements slog.LogValuer.
func (s *Span) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 5+len(s.attrs))
	attrs = append(attrs,
		slog.String("name", s.name),
		slog.String("game", string(s.game)),
		slog.Duration("duration", s.Duration()),
	)
	if s.screenType != geometry.None {
		attrs = append(attrs, slog.String("screen_type", s.screenType.Tag()))
	}
	attrs = append(attrs, s.attrs...)
	return slog.GroupValue(attrs...)
}

// Logger returns the default logger with ctx's trace ids attached.
func Logger(ctx context.Context) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	args := []any{"trace_id", tc.TraceID, "span_id", tc.SpanID}
	if tc.ParentSpanID != "" {
		args = append(args, "parent_span_id", tc.ParentSpanID)
	}
	return slog.Default().With(args...)
}
