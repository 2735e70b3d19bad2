package corrgrpc

import (
	"context"
	"testing"

	libhoney "github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"
	correlate "github.com/rambhatt-msft/correlate-go"
	"github.com/rambhatt-msft/correlate-go/propagation"
	"github.com/rambhatt-msft/correlate-go/trace"
	"github.com/rambhatt-msft/correlate-go/wrappers/config"
	"github.com/stretchr/testify/assert"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestStartSpanOrTrace(t *testing.T) {
	info := &grpc.UnaryServerInfo{
		FullMethod: "test.method",
	}
	// no current span, no parser hook, expect a new trace
	ctx := context.Background()
	ctx, span := startSpanOrTraceFromUnaryGRPC(ctx, info, nil)
	assert.Equal(t, 0, len(span.GetChildren()), "Span should not have children")
	assert.Equal(t, "", span.GetParentID(), "Span should not have parent")

	// now let's create a child span
	ctx = trace.PutSpanInContext(ctx, span)
	ctx, spanTwo := startSpanOrTraceFromUnaryGRPC(ctx, info, nil)
	assert.Equal(t, 1, len(span.GetChildren()), "Should have one child span")
	assert.Equal(t, span, spanTwo.GetParent(), "Span should have been created as child")

	// metadata without correlation headers, no parser hook
	ctx = context.Background()
	ctx = metadata.NewIncomingContext(ctx, metadata.New(map[string]string{
		"content-type": "application/grpc",
	}))
	ctx, spanThree := startSpanOrTraceFromUnaryGRPC(ctx, info, nil)
	assert.Equal(t, 0, len(spanThree.GetChildren()), "span should not have children")
	assert.Equal(t, "", spanThree.GetParentID(), "Span should not have parent")

	// metadata, no parser hook, traceparent header
	ctx = metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"traceparent": "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
	}))
	ctx, spanFour := startSpanOrTraceFromUnaryGRPC(ctx, info, nil)
	assert.Equal(t, 0, len(spanFour.GetChildren()), "span should not have children")
	assert.Equal(t, "b7ad6b7169203331", spanFour.GetParentID(), "Expected parent_id from header")
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spanFour.GetTrace().GetTraceID(), "Expected trace id from header")
	assert.NotEqual(t, "b7ad6b7169203331", spanFour.GetSpanID(), "adopted trace must mint its own span id")

	// metadata, no parser hook, legacy request-id header
	ctx = metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"request-id": "|abc123.def456.",
	}))
	ctx, spanFive := startSpanOrTraceFromUnaryGRPC(ctx, info, nil)
	assert.Equal(t, "def456", spanFive.GetParentID(), "innermost legacy segment becomes the parent")
	assert.True(t, propagation.IsValidTraceID(spanFive.GetTrace().GetTraceID()), "non conforming legacy root gets a fresh trace id")

	// metadata, parserhook
	ctx = metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"content-type": "application/grpc",
	}))
	parserHook := func(ctx context.Context) *propagation.TraceContext {
		return &propagation.TraceContext{
			TraceID: "ffffffffffffffffffffffffffffffff",
			SpanID:  "aaaaaaaaaaaaaaaa",
		}
	}
	ctx, spanSix := startSpanOrTraceFromUnaryGRPC(ctx, info, parserHook)
	assert.Equal(t, 0, len(spanSix.GetChildren()), "span should not have children")
	assert.Equal(t, "aaaaaaaaaaaaaaaa", spanSix.GetParentID(), "Expected parent id from parser hook")
	assert.Equal(t, "ffffffffffffffffffffffffffffffff", spanSix.GetTrace().GetTraceID(), "Expected trace id from parser hook")
}

func TestUnaryInterceptor(t *testing.T) {
	mo := &transmission.MockSender{}
	client, err := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       "placeholder",
		Dataset:      "placeholder",
		APIHost:      "placeholder",
		Transmission: mo})
	assert.Equal(t, nil, err)
	correlate.Init(correlate.Config{Client: client})

	md := metadata.New(map[string]string{
		"content-type":      "application/grpc",
		":authority":        "api.service.example:443",
		"user-agent":        "testing-is-fun",
		"X-Forwarded-For":   "10.11.12.13", // headers are Kabob-Title-Case from clients
		"X-Forwarded-Proto": "https",
	})
	ctx := metadata.NewIncomingContext(context.Background(), md)
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return req, nil
	}
	info := &grpc.UnaryServerInfo{
		FullMethod: "test.method",
	}
	interceptor := UnaryServerInterceptorWithConfig(config.GRPCIncomingConfig{})
	var dummy interface{}
	resp, err := interceptor(ctx, dummy, info, handler)
	assert.NoError(t, err, "Unexpected error calling interceptor")
	assert.Equal(t, resp, dummy)

	evs := mo.Events()
	assert.Equal(t, 1, len(evs), "1 event is created")
	successfulFields := evs[0].Data

	contentType, ok := successfulFields["request.content_type"]
	assert.True(t, ok, "content-type field must exist on middleware generated event")
	assert.Equal(t, "application/grpc", contentType, "content-type should be set")

	authority, ok := successfulFields["request.header.authority"]
	assert.True(t, ok, "authority field must exist on middleware generated event")
	assert.Equal(t, "api.service.example:443", authority, "authority should be set")

	userAgent, ok := successfulFields["request.header.user_agent"]
	assert.True(t, ok, "user-agent expected to exist on middleware generated event")
	assert.Equal(t, "testing-is-fun", userAgent, "user-agent should be set")

	xForwardedFor, ok := successfulFields["request.header.x_forwarded_for"]
	assert.True(t, ok, "x_forwarded_for expected to exist on middleware generated event")
	assert.Equal(t, "10.11.12.13", xForwardedFor, "x_forwarded_for should be set")

	xForwardedProto, ok := successfulFields["request.header.x_forwarded_proto"]
	assert.True(t, ok, "x_forwarded_proto expected to exist on middleware generated event")
	assert.Equal(t, "https", xForwardedProto, "x_forwarded_proto should be set")

	method, ok := successfulFields["handler.method"]
	assert.True(t, ok, "method name should be set")
	assert.Equal(t, "test.method", method, "method name should be set")

	statusCode, ok := successfulFields["response.grpc_status_code"]
	assert.True(t, ok, "Status code must exist on middleware generated event")
	assert.Equal(t, codes.OK, statusCode, "status must exist")

	statusMsg, ok := successfulFields["response.grpc_status_message"]
	assert.True(t, ok, "Status message must exist on middleware generated event")
	assert.Equal(t, codes.OK.String(), statusMsg, "human-readable status must exist")
}

func TestUnaryClientInterceptor(t *testing.T) {
	mo := &transmission.MockSender{}
	client, err := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       "placeholder",
		Dataset:      "placeholder",
		APIHost:      "placeholder",
		Transmission: mo})
	assert.Equal(t, nil, err)
	correlate.Init(correlate.Config{Client: client})

	ctx, tr := trace.NewTrace(context.Background(), "")

	var outMD metadata.MD
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		outMD, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}
	interceptor := UnaryClientInterceptor()
	err = interceptor(ctx, "/flavor.v1.FlavorService/List", wrapperspb.String("ping"), wrapperspb.String(""), nil, invoker)
	assert.NoError(t, err)

	vals := outMD.Get("traceparent")
	assert.Equal(t, 1, len(vals), "the outgoing metadata should carry a traceparent")
	tc := propagation.UnmarshalW3CTraceContext(vals[0])
	assert.Equal(t, tr.GetTraceID(), tc.TraceID, "the call should ride the caller's trace")
	assert.NotEqual(t, tr.GetRootSpan().GetSpanID(), tc.SpanID, "the outbound call gets its own span, not the root")
	reqID := outMD.Get("request-id")
	assert.Equal(t, 1, len(reqID))
	assert.Equal(t, "|"+tc.TraceID+"."+tc.SpanID+".", reqID[0], "both outbound formats should name the same span")

	evs := mo.Events()
	assert.Equal(t, 1, len(evs), "the outbound call's span is sent when the call returns")
	fields := evs[0].Data
	assert.Equal(t, "grpc_client", fields["meta.type"])
	assert.Equal(t, "/flavor.v1.FlavorService/List", fields["handler.method"])
	assert.Equal(t, codes.OK, fields["response.grpc_status_code"])
}

func TestUnaryClientInterceptorWithoutTrace(t *testing.T) {
	mo := &transmission.MockSender{}
	client, err := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       "placeholder",
		Dataset:      "placeholder",
		APIHost:      "placeholder",
		Transmission: mo})
	assert.Equal(t, nil, err)
	correlate.Init(correlate.Config{Client: client})

	var sawMetadata bool
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		_, sawMetadata = metadata.FromOutgoingContext(ctx)
		return nil
	}
	err = UnaryClientInterceptor()(context.Background(), "/flavor.v1.FlavorService/List", nil, nil, nil, invoker)
	assert.NoError(t, err)
	assert.False(t, sawMetadata, "without a trace there is nothing to propagate")
	assert.Equal(t, 0, len(mo.Events()), "a traceless call passes through without a span")
}

func TestUnaryInterceptorContinuesTrace(t *testing.T) {
	mo := &transmission.MockSender{}
	client, err := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       "placeholder",
		Dataset:      "placeholder",
		APIHost:      "placeholder",
		Transmission: mo})
	assert.Equal(t, nil, err)
	correlate.Init(correlate.Config{Client: client})

	md := metadata.New(map[string]string{
		"traceparent": "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
	})
	ctx := metadata.NewIncomingContext(context.Background(), md)
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return req, nil
	}
	info := &grpc.UnaryServerInfo{
		FullMethod: "test.method",
	}
	interceptor := UnaryServerInterceptor()
	_, err = interceptor(ctx, nil, info, handler)
	assert.NoError(t, err)

	evs := mo.Events()
	assert.Equal(t, 1, len(evs))
	fields := evs[0].Data
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", fields["trace.trace_id"])
	assert.Equal(t, "b7ad6b7169203331", fields["trace.parent_id"])
	assert.Equal(t, "|0af7651916cd43dd8448eb211c80319c.b7ad6b7169203331.", fields["trace.request_id"], "root event carries the caller's identity in request id form")
}
