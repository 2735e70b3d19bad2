package trace

import (
	"context"
	"errors"
)

const (
	correlateSpanContextKey  = "correlateSpanContextKey"
	correlateTraceContextKey = "correlateTraceContextKey"
)

// ErrTraceNotFoundInContext is returned by CopyContext when the source
// context has no trace to copy.
var ErrTraceNotFoundInContext = errors.New("trace not found in source context")

// GetTraceFromContext retrieves a trace from the passed in context or returns
// nil if no trace exists.
func GetTraceFromContext(ctx context.Context) *Trace {
	if ctx != nil {
		if val := ctx.Value(correlateTraceContextKey); val != nil {
			if trace, ok := val.(*Trace); ok {
				return trace
			}
		}
	}
	return nil
}

// PutTraceInContext takes an existing context and a trace and pushes the
// trace into the context, replacing any trace already there. Traces put in
// context are retrieved using GetTraceFromContext.
func PutTraceInContext(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, correlateTraceContextKey, trace)
}

// GetSpanFromContext returns the currently active span in the context, or
// nil if there is none. The trace is reachable through the span.
func GetSpanFromContext(ctx context.Context) *Span {
	if ctx != nil {
		if val := ctx.Value(correlateSpanContextKey); val != nil {
			if span, ok := val.(*Span); ok {
				return span
			}
		}
	}
	return nil
}

// PutSpanInContext takes an existing context and a span and pushes the span
// into the context, replacing any span already there. Spans put in context
// are retrieved using GetSpanFromContext.
func PutSpanInContext(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, correlateSpanContextKey, span)
}

// CopyContext copies the active trace and span from src into dest and
// returns the populated destination context. This is useful when launching a
// goroutine that must not be cancelled along with the request that spawned
// it. It returns ErrTraceNotFoundInContext when src carries no trace.
func CopyContext(dest context.Context, src context.Context) (context.Context, error) {
	tr := GetTraceFromContext(src)
	sp := GetSpanFromContext(src)
	if tr == nil || sp == nil {
		return dest, ErrTraceNotFoundInContext
	}
	dest = PutTraceInContext(dest, tr)
	dest = PutSpanInContext(dest, sp)
	return dest, nil
}
