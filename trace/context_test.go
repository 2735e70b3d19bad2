package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceFromContext(t *testing.T) {
	ctx, tr := NewTrace(context.Background(), "")
	trInCtx := GetTraceFromContext(ctx)
	assert.Equal(t, tr, trInCtx, "trace from context should be the trace we got from making a new trace")
	emptyTrace := &Trace{}
	ctx = PutTraceInContext(ctx, emptyTrace)
	trInCtx = GetTraceFromContext(ctx)
	assert.Equal(t, emptyTrace, trInCtx, "trace in context should be trace we put in the context")
	assert.Nil(t, GetTraceFromContext(context.Background()), "a bare context holds no trace")
}

func TestSpanFromContext(t *testing.T) {
	ctx, tr := NewTrace(context.Background(), "")
	rs := tr.GetRootSpan()
	spanInCtx := GetSpanFromContext(ctx)
	assert.Equal(t, rs, spanInCtx, "span from context should be the root span we got from making a new trace")
	emptySpan := &Span{}
	ctx = PutSpanInContext(ctx, emptySpan)
	spanInCtx = GetSpanFromContext(ctx)
	assert.Equal(t, emptySpan, spanInCtx, "span in context should be span we put in the context")
	assert.Nil(t, GetSpanFromContext(context.Background()), "a bare context holds no span")
}

func TestCopyContext(t *testing.T) {
	src, tr := NewTrace(context.Background(), "")
	dest, err := CopyContext(context.Background(), src)
	assert.NoError(t, err)
	assert.Equal(t, tr, GetTraceFromContext(dest), "copying should carry the trace over")
	assert.Equal(t, tr.GetRootSpan(), GetSpanFromContext(dest), "copying should carry the active span over")

	_, err = CopyContext(context.Background(), context.Background())
	assert.Equal(t, ErrTraceNotFoundInContext, err, "copying from a bare context should report the missing trace")
}
