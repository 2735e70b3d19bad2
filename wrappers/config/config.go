// Package config holds the hook types the middleware wrappers accept, so
// applications can override how trace correlation is pulled off incoming
// requests and attached to outgoing ones.
package config

import (
	"context"
	"net/http"

	"github.com/rambhatt-msft/correlate-go/propagation"
)

// HTTPTraceParserHook is a function that takes an incoming HTTP request and
// returns the trace context the new trace should adopt. Returning nil
// starts a brand new trace.
type HTTPTraceParserHook func(*http.Request) *propagation.TraceContext

// HTTPTracePropagationHook is a function that takes an outgoing HTTP
// request and the trace context of the span making it, and returns the
// headers to attach so the receiving service can pick the trace up.
type HTTPTracePropagationHook func(*http.Request, *propagation.TraceContext) map[string]string

// GRPCTraceParserHook is a function that inspects incoming gRPC request
// metadata through the context and returns the trace context the new trace
// should adopt. Returning nil starts a brand new trace.
type GRPCTraceParserHook func(context.Context) *propagation.TraceContext

// HTTPIncomingConfig stores configuration for incoming HTTP request
// middleware.
type HTTPIncomingConfig struct {
	HTTPParserHook HTTPTraceParserHook
}

// HTTPOutgoingConfig stores configuration for outgoing HTTP request
// round trippers.
type HTTPOutgoingConfig struct {
	HTTPPropagationHook HTTPTracePropagationHook
}

// GRPCIncomingConfig stores configuration for incoming gRPC request
// interceptors.
type GRPCIncomingConfig struct {
	GRPCParserHook GRPCTraceParserHook
}
