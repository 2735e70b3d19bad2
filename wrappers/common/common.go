package common

import (
	"context"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/rambhatt-msft/correlate-go/propagation"
	"github.com/rambhatt-msft/correlate-go/trace"
	"github.com/rambhatt-msft/correlate-go/wrappers/config"
)

type ResponseWriter struct {
	http.ResponseWriter
	Status int
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: httpsnoop.Wrap(w, httpsnoop.Hooks{}),
	}
}

func (h *ResponseWriter) WriteHeader(statusCode int) {
	h.Status = statusCode
	h.ResponseWriter.WriteHeader(statusCode)
}

// GetRequestProps is a convenient method to grab all common http request
// properties and get them back as a map.
func GetRequestProps(req *http.Request) map[string]interface{} {
	userAgent := req.UserAgent()
	xForwardedFor := req.Header.Get("x-forwarded-for")
	xForwardedProto := req.Header.Get("x-forwarded-proto")

	reqProps := make(map[string]interface{})
	// identify the type of event
	reqProps["meta.type"] = "http_request"
	// Add a variety of details about the HTTP request, such as user agent
	// and method, to any created event.
	reqProps["request.method"] = req.Method
	reqProps["request.path"] = req.URL.Path
	reqProps["request.host"] = getHostFromRequest(req)
	reqProps["request.http_version"] = req.Proto
	reqProps["request.content_length"] = req.ContentLength
	reqProps["request.remote_addr"] = req.RemoteAddr
	if userAgent != "" {
		reqProps["request.header.user_agent"] = userAgent
	}
	if xForwardedFor != "" {
		reqProps["request.header.x_forwarded_for"] = xForwardedFor
	}
	if xForwardedProto != "" {
		reqProps["request.header.x_forwarded_proto"] = xForwardedProto
	}
	return reqProps
}

func getHostFromRequest(req *http.Request) string {
	if req.Host != "" {
		return req.Host
	}
	return req.URL.Host
}

// TraceContextFromRequest pulls the trace correlation headers off an
// incoming request. The modern traceparent header wins over the legacy
// Request-Id; repeated traceparent headers are joined with commas so the
// parser sees the duplication. Returns nil when the request carries no
// correlation headers at all.
func TraceContextFromRequest(req *http.Request) *propagation.TraceContext {
	if vals := req.Header.Values(propagation.TraceParentHeader); len(vals) > 0 {
		return propagation.UnmarshalW3CTraceContext(strings.Join(vals, ","))
	}
	if requestID := req.Header.Get(propagation.RequestIDHeader); requestID != "" {
		return propagation.UnmarshalLegacyTraceContext(requestID)
	}
	return nil
}

// StartSpanOrTraceFromHTTP checks to see if a trace already exists in the
// request's context before creating either a root span or a child span of
// the existing active span. New traces adopt whatever correlation headers
// the request carries, along with the tracestate companion header.
func StartSpanOrTraceFromHTTP(r *http.Request) (context.Context, *trace.Span) {
	return StartSpanOrTraceFromHTTPWithHook(r, nil)
}

// StartSpanOrTraceFromHTTPWithHook behaves like StartSpanOrTraceFromHTTP,
// except a non-nil parserHook replaces the standard correlation headers as
// the source of the new trace's context. The hook owns header handling
// entirely, so tracestate is not read when one is set.
func StartSpanOrTraceFromHTTPWithHook(r *http.Request, parserHook config.HTTPTraceParserHook) (context.Context, *trace.Span) {
	ctx := r.Context()
	span := trace.GetSpanFromContext(ctx)
	if span == nil {
		// there is no trace yet. We should make one! and use the root span.
		var tr *trace.Trace
		if parserHook == nil {
			ctx, tr = trace.NewTraceFromTraceContext(ctx, TraceContextFromRequest(r))
			if ts, err := propagation.UnmarshalTraceState(r.Header.Get(propagation.TraceStateHeader)); err == nil && ts.Len() > 0 {
				tr.SetTraceState(ts)
			}
		} else {
			ctx, tr = trace.NewTraceFromTraceContext(ctx, parserHook(r))
		}
		span = tr.GetRootSpan()
	} else {
		// we had a parent! let's make a new child for this handler
		ctx, span = span.CreateChild(ctx)
	}
	// go get any common HTTP headers and attributes to add to the span
	for k, v := range GetRequestProps(r) {
		span.AddField(k, v)
	}
	return ctx, span
}

// InjectTraceHeaders attaches the span's correlation identity to the headers
// of an outbound request in both wire formats, so the receiving service can
// continue the trace with whichever one it understands. The trace's
// tracestate rides along when there is one.
func InjectTraceHeaders(span *trace.Span, header http.Header) {
	if span == nil {
		return
	}
	tc := span.TraceContext()
	header.Set(propagation.TraceParentHeader, propagation.MarshalW3CTraceContext(tc))
	header.Set(propagation.RequestIDHeader, propagation.MarshalLegacyTraceContext(tc))
	if tr := span.GetTrace(); tr != nil {
		if ts := tr.GetTraceState(); ts.Len() > 0 {
			header.Set(propagation.TraceStateHeader, ts.String())
		}
	}
}
