// Package logger provides a convenience function to constructing a logger
// for use. This is required not just for applications but for testing.
package logger

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/rschio/atm/internal/opctx"
)

// New constructs a slog Logger that writes JSON records to w. The terminal
// owns stdout, so callers usually pass stderr or a file.
func New(w io.Writer, service string) *slog.Logger {
	opts := slog.HandlerOptions{
		AddSource: true,
	}
	jh := slog.NewJSONHandler(w, &opts)
	return slog.New(withTraceID{Handler: jh}).With("service", service)
}

// NewDiscard returns a logger that drops everything.
func NewDiscard() *slog.Logger {
	return New(io.Discard, "test")
}

type withTraceID struct {
	slog.Handler
}

func (h withTraceID) Handle(ctx context.Context, r slog.Record) error {
	r.Add("trace_id", opctx.GetTraceID(ctx))

	return h.Handler.Handle(ctx, r)
}

func (h withTraceID) WithAttrs(attrs []slog.Attr) slog.Handler {
	hwa := h.Handler.WithAttrs(attrs)
	return withTraceID{Handler: hwa}
}

func (h withTraceID) WithGroup(name string) slog.Handler {
	hwg := h.Handler.WithGroup(name)
	return withTraceID{Handler: hwg}
}

// InfocCtx logs at info level reporting the source of the caller frames up
// the stack instead of this function.
func InfocCtx(ctx context.Context, log *slog.Logger, caller int, msg string, args ...any) {
	if !log.Enabled(ctx, slog.LevelInfo) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(caller, pcs[:]) // skip [Callers, Infof]

	r := slog.NewRecord(time.Now(), slog.LevelInfo, msg, pcs[0])
	r.Add(args...)

	log.Handler().Handle(ctx, r)
}
