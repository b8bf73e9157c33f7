// Package tracing records per-query span trees in the request context and
// writes them to slog when the root span finishes.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

type spanKey struct{}

// Span is one timed stage of a query. Children are appended by
// StartChildSpan and may be added from several goroutines.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration
	Children []*Span

	mu    sync.Mutex
	attrs []slog.Attr
}

// NewTraceID returns a random 16-hex-digit id.
func NewTraceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(b[:])
}

// StartSpan begins a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, Start: time.Now()}
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan begins a child of the span in ctx. Without a parent the
// child is a detached root and is never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, Start: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.Children = append(parent.Children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

func (s *Span) End() {
	s.Duration = time.Since(s.Start)
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// Log writes the tree to log at debug level, parents before children, one
// record per span.
func (s *Span) Log(log *slog.Logger) {
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s.walk(0, func(span *Span, depth int, attrs []slog.Attr) {
		base := []slog.Attr{
			slog.String("trace_id", span.TraceID),
			slog.String("span", span.Name),
			slog.Int64("duration_us", span.Duration.Microseconds()),
			slog.Int("depth", depth),
		}
		log.LogAttrs(context.Background(), slog.LevelDebug, "span", append(base, attrs...)...)
	})
}

func (s *Span) walk(depth int, visit func(*Span, int, []slog.Attr)) {
	s.mu.Lock()
	attrs := append([]slog.Attr(nil), s.attrs...)
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	visit(s, depth, attrs)
	for _, c := range children {
		c.walk(depth+1, visit)
	}
}
