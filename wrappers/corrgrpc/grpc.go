package corrgrpc

import (
	"context"
	"reflect"
	"runtime"
	"strings"

	"github.com/rambhatt-msft/correlate-go/propagation"
	"github.com/rambhatt-msft/correlate-go/trace"
	"github.com/rambhatt-msft/correlate-go/wrappers/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// getMetadataStringValue is a simple helper method that checks the provided
// metadata for a value associated with the provided key. Multiple values are
// joined with a comma so a duplicated correlation header is visible to the
// parser, the same way it would be on an HTTP request. If the value does not
// exist, an empty string is returned.
func getMetadataStringValue(md metadata.MD, key string) string {
	if val, ok := md[key]; ok {
		return strings.Join(val, ",")
	}
	return ""
}

// startSpanOrTraceFromUnaryGRPC checks to see if a trace already exists in the
// provided context before creating either a root span or a child span of the
// existing active span. The function understands trace parser hooks, so if one
// is provided, it'll use it to parse the incoming request for trace context.
func startSpanOrTraceFromUnaryGRPC(
	ctx context.Context,
	info *grpc.UnaryServerInfo,
	parserHook config.GRPCTraceParserHook,
) (context.Context, *trace.Span) {
	span := trace.GetSpanFromContext(ctx)
	if span == nil {
		// no active span, create a new trace
		var tr *trace.Trace
		md, ok := metadata.FromIncomingContext(ctx)
		if ok {
			if parserHook == nil {
				// the modern header wins when both formats arrive
				header := getMetadataStringValue(md, propagation.TraceParentHeader)
				if header == "" {
					header = getMetadataStringValue(md, strings.ToLower(propagation.RequestIDHeader))
				}
				ctx, tr = trace.NewTrace(ctx, header)
			} else {
				tc := parserHook(ctx)
				ctx, tr = trace.NewTraceFromTraceContext(ctx, tc)
			}
		} else {
			ctx, tr = trace.NewTrace(ctx, "")
		}
		span = tr.GetRootSpan()
	} else {
		// create new span as child of active span.
		ctx, span = span.CreateChild(ctx)
	}
	return ctx, span
}

// addFields just adds available information about a gRPC request to the provided span.
func addFields(ctx context.Context, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler, span *trace.Span) {
	handlerName := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()

	span.AddField("handler.name", handlerName)
	span.AddField("name", handlerName)
	span.AddField("handler.method", info.FullMethod)

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val, ok := md["content-type"]; ok {
			span.AddField("request.content_type", val[0])
		}
		if val, ok := md[":authority"]; ok {
			span.AddField("request.header.authority", val[0])
		}
		if val, ok := md["user-agent"]; ok {
			span.AddField("request.header.user_agent", val[0])
		}
		if val, ok := md["x-forwarded-for"]; ok {
			span.AddField("request.header.x_forwarded_for", val[0])
		}
		if val, ok := md["x-forwarded-proto"]; ok {
			span.AddField("request.header.x_forwarded_proto", val[0])
		}
	}
}

// UnaryServerInterceptor creates an event per invocation of the returned
// interceptor, reading any correlation identifiers from the request metadata.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return UnaryServerInterceptorWithConfig(config.GRPCIncomingConfig{})
}

// UnaryServerInterceptorWithConfig will create an event per invocation of the
// returned interceptor. If passed a config.GRPCIncomingConfig with a
// GRPCParserHook, the hook will be called when creating the event, allowing it
// to specify how trace context information should be included in the span
// (e.g. it may have come from a remote parent in a specific format).
//
// Events created from GRPC interceptors will contain information from the gRPC
// metadata, if it exists, as well as information about the handler used and
// method being called.
func UnaryServerInterceptorWithConfig(cfg config.GRPCIncomingConfig) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx, span := startSpanOrTraceFromUnaryGRPC(ctx, info, cfg.GRPCParserHook)
		defer span.Send()

		addFields(ctx, info, handler, span)
		resp, err := handler(ctx, req)
		if err != nil {
			span.AddTraceField("handler_error", err.Error())
		}
		span.AddField("response.grpc_status_code", status.Code(err))
		span.AddField("response.grpc_status_message", status.Code(err).String())
		return resp, err
	}
}

// UnaryClientInterceptor creates a span per outgoing unary call and attaches
// the caller's correlation identity to the outgoing metadata in both wire
// formats, so the receiving service can continue the trace with whichever
// one it understands. Calls made without an active trace pass through
// untouched.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		span := trace.GetSpanFromContext(ctx)
		if span == nil {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		ctx, span = span.CreateChild(ctx)
		defer span.Send()
		span.AddField("meta.type", "grpc_client")
		span.AddField("name", method)
		span.AddField("handler.method", method)

		tc := span.TraceContext()
		pairs := []string{
			propagation.TraceParentHeader, propagation.MarshalW3CTraceContext(tc),
			strings.ToLower(propagation.RequestIDHeader), propagation.MarshalLegacyTraceContext(tc),
		}
		if tr := span.GetTrace(); tr != nil {
			if ts := tr.GetTraceState(); ts.Len() > 0 {
				pairs = append(pairs, propagation.TraceStateHeader, ts.String())
			}
		}
		ctx = metadata.AppendToOutgoingContext(ctx, pairs...)

		err := invoker(ctx, method, req, reply, cc, opts...)
		if err != nil {
			span.AddField("error", err.Error())
		}
		span.AddField("response.grpc_status_code", status.Code(err))
		span.AddField("response.grpc_status_message", status.Code(err).String())
		return err
	}
}
