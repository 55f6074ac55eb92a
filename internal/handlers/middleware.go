package handlers

import (
	"context"
	"time"

	"github.com/rschio/atm/internal/opctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func middlewareOp(tracer trace.Tracer, now func() time.Time, name string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, args []string) (Response, error) {
		ctx, span := tracer.Start(ctx, "command."+name)
		defer span.End()
		span.SetAttributes(attribute.String("command", name))

		v := opctx.Values{
			TraceID: span.SpanContext().TraceID().String(),
			Tracer:  tracer,
			Now:     now(),
		}
		ctx = opctx.SetValues(ctx, &v)

		resp, err := h(ctx, args)
		if err != nil && err != ErrQuit {
			span.SetStatus(codes.Error, err.Error())
		}
		return resp, err
	}
}
