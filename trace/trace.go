package trace

import (
	"context"
	"strings"
	"sync"

	libhoney "github.com/honeycombio/libhoney-go"
	"github.com/rambhatt-msft/correlate-go/client"
	"github.com/rambhatt-msft/correlate-go/internal"
	"github.com/rambhatt-msft/correlate-go/propagation"
	"github.com/rambhatt-msft/correlate-go/timer"
)

// GlobalConfig holds the process wide hooks applied to every span send.
var GlobalConfig Config

// Config bundles the hooks a process can install around span sends.
type Config struct {
	// SamplerHook is called with the fields of each span before it is sent.
	// It returns whether to keep the span and the sample rate to claim for
	// it. When unset, every span is kept.
	SamplerHook func(map[string]interface{}) (bool, int)
	// PresendHook is called with the fields of each span just before send,
	// after trace level fields have been applied. The map may be modified
	// in place.
	PresendHook func(map[string]interface{})
}

// Trace is one process's view of a distributed operation. It owns the
// correlation identity shared by all of its spans, the tracestate that
// arrived with the operation, and the trace level fields added to every
// span at send time.
type Trace struct {
	builder          *libhoney.Builder
	traceContext     *propagation.TraceContext
	traceState       *propagation.TraceState
	rollupFields     map[string]float64
	rollupLock       sync.Mutex
	rootSpan         *Span
	tlfLock          sync.Mutex
	traceLevelFields map[string]interface{}
}

// NewTrace creates a trace from a serialized correlation header in either
// wire format; hierarchical ids are recognized by their leading pipe or
// absence of dashes. Pass an empty string to start a brand new trace. The
// header never fails to parse; an unusable one starts a trace with fresh
// identifiers.
func NewTrace(ctx context.Context, serializedHeader string) (context.Context, *Trace) {
	header := strings.TrimSpace(serializedHeader)
	if header == "" {
		return newTrace(ctx, propagation.NewTraceContext(), "")
	}
	var tc *propagation.TraceContext
	if strings.HasPrefix(header, "|") || !strings.Contains(header, "-") {
		tc = propagation.UnmarshalLegacyTraceContext(header)
	} else {
		tc = propagation.UnmarshalW3CTraceContext(header)
	}
	return NewTraceFromTraceContext(ctx, tc)
}

// NewTraceFromTraceContext creates a trace continuing an operation that
// arrived from a remote caller. tc should be freshly unmarshaled from the
// caller's headers: its span id still names the caller's span, so it becomes
// the root span's parent id and the context's span id is renewed to mint
// this process's own root span. A nil tc starts a brand new trace.
func NewTraceFromTraceContext(ctx context.Context, tc *propagation.TraceContext) (context.Context, *Trace) {
	if tc == nil {
		return newTrace(ctx, propagation.NewTraceContext(), "")
	}
	remoteParentID := tc.SpanID
	tc.RenewSpanID()
	return newTrace(ctx, tc, remoteParentID)
}

func newTrace(ctx context.Context, tc *propagation.TraceContext, remoteParentID string) (context.Context, *Trace) {
	trace := &Trace{
		builder:          client.NewBuilder(),
		traceContext:     tc,
		rollupFields:     make(map[string]float64),
		traceLevelFields: make(map[string]interface{}),
	}
	rootSpan := newSpan()
	rootSpan.isRoot = true
	rootSpan.spanID = tc.SpanID
	rootSpan.parentID = remoteParentID
	rootSpan.ev = trace.builder.NewEvent()
	rootSpan.trace = trace
	trace.rootSpan = rootSpan

	ctx = PutTraceInContext(ctx, trace)
	ctx = PutSpanInContext(ctx, rootSpan)
	return ctx, trace
}

// AddField adds a field to the trace. Every span on the trace will have this
// field applied when it is sent.
func (t *Trace) AddField(key string, val interface{}) {
	t.tlfLock.Lock()
	defer t.tlfLock.Unlock()
	if t.traceLevelFields != nil {
		t.traceLevelFields[key] = val
	}
}

// addRollupField sums val into the named field on the trace, where it gets
// reported on the root span.
func (t *Trace) addRollupField(key string, val float64) {
	t.rollupLock.Lock()
	defer t.rollupLock.Unlock()
	if t.rollupFields != nil {
		t.rollupFields[key] += val
	}
}

// GetRootSpan returns the root of the trace, the span that represents the
// whole operation within this process.
func (t *Trace) GetRootSpan() *Span {
	return t.rootSpan
}

// GetTraceID returns the trace id shared by every span on this trace.
func (t *Trace) GetTraceID() string {
	return t.traceContext.TraceID
}

// GetParentID returns the correlation id of the inbound request as it
// arrived: the verbatim Request-Id for a legacy caller, otherwise the legacy
// rendering of the parsed or generated ids.
func (t *Trace) GetParentID() string {
	return t.traceContext.ParentID
}

// SetTraceState attaches the tracestate that arrived with the operation so
// outbound calls can carry it forward.
func (t *Trace) SetTraceState(ts *propagation.TraceState) {
	t.traceState = ts
}

// GetTraceState returns the tracestate attached to the trace, or nil.
func (t *Trace) GetTraceState() *propagation.TraceState {
	return t.traceState
}

// Send finishes any unfinished synchronous spans and sends the whole trace.
// Async spans must still send themselves.
func (t *Trace) Send() {
	rs := t.rootSpan
	if !rs.isFinished {
		rs.Finish()
	}
	recursiveSend(rs)
}

// Span is one unit of work within a trace.
type Span struct {
	isAsync      bool
	isFinished   bool
	isRoot       bool
	isSent       bool
	children     []*Span
	ev           *libhoney.Event
	spanID       string
	parentID     string
	parent       *Span
	rollupFields map[string]float64
	rollupLock   sync.Mutex
	timer        timer.Timer
	trace        *Trace
}

func newSpan() *Span {
	return &Span{
		spanID:       internal.NewSpanID(),
		timer:        timer.Start(),
		children:     make([]*Span, 0),
		rollupFields: make(map[string]float64),
	}
}

// AddField adds a field to the span.
func (s *Span) AddField(key string, val interface{}) {
	if s.ev != nil {
		s.ev.AddField(key, val)
	}
}

// AddRollupField sums val into the named field on this span and also into
// the trace's total for the field.
func (s *Span) AddRollupField(key string, val float64) {
	s.rollupLock.Lock()
	if s.rollupFields != nil {
		s.rollupFields[key] += val
	}
	s.rollupLock.Unlock()
	if s.trace != nil {
		s.trace.addRollupField(key, val)
	}
}

// AddTraceField adds a field to the span's trace; it will appear on every
// span the trace sends.
func (s *Span) AddTraceField(key string, val interface{}) {
	if s.trace != nil {
		s.trace.AddField(key, val)
	}
}

// Finish closes the span: it stops the timer, records the correlation ids,
// and finishes any synchronous children that are still open. Finishing the
// root span sends the trace.
func (s *Span) Finish() {
	if s.ev == nil {
		return
	}
	if s.timer != nil {
		s.ev.AddField("duration_ms", s.timer.Finish())
	}
	s.ev.AddField("trace.trace_id", s.trace.traceContext.TraceID)
	if s.parentID != "" {
		s.ev.AddField("trace.parent_id", s.parentID)
	}
	s.ev.AddField("trace.span_id", s.spanID)
	if s.isRoot {
		// the root span carries the inbound correlation id, and the original
		// legacy root when it could not serve as the trace id
		s.ev.AddField("trace.request_id", s.trace.traceContext.ParentID)
		if legacyRoot := s.trace.traceContext.LegacyRootID; legacyRoot != "" {
			s.ev.AddField("trace.legacy_root_id", legacyRoot)
		}
	}
	s.rollupLock.Lock()
	for k, v := range s.rollupFields {
		s.ev.AddField(k, v)
	}
	s.rollupLock.Unlock()
	if s.isRoot {
		s.trace.rollupLock.Lock()
		for k, v := range s.trace.rollupFields {
			s.ev.AddField("rollup."+k, v)
		}
		s.trace.rollupLock.Unlock()
	}
	for _, child := range s.children {
		if !child.IsAsync() && !child.isFinished {
			child.AddField("meta.finished_by_parent", true)
			child.Finish()
		}
	}
	s.isFinished = true
	// closing the root span sends the whole trace
	if s.isRoot {
		s.trace.Send()
	}
}

// IsAsync reports whether the span is expected to outlive its parent.
func (s *Span) IsAsync() bool {
	return s.isAsync
}

// GetChildren returns the children of this span.
func (s *Span) GetChildren() []*Span {
	return s.children
}

// GetParent returns the parent span, or nil on the root.
func (s *Span) GetParent() *Span {
	return s.parent
}

// GetParentID returns the id of this span's parent. On a root span this is
// the remote caller's span id, or empty when the trace started here.
func (s *Span) GetParentID() string {
	return s.parentID
}

// GetSpanID returns this span's id.
func (s *Span) GetSpanID() string {
	return s.spanID
}

// GetTrace returns the trace this span belongs to.
func (s *Span) GetTrace() *Trace {
	return s.trace
}

// CreateAsyncChild creates a child of the current span that is expected to
// outlive it (and the trace). Async spans must be sent with their own Send
// but are otherwise identical to normal spans.
func (s *Span) CreateAsyncChild(ctx context.Context) (context.Context, *Span) {
	ctx, newSpan := s.CreateChild(ctx)
	newSpan.isAsync = true
	return ctx, newSpan
}

// CreateChild creates a child of the current span. Spans must finish before
// their parents.
func (s *Span) CreateChild(ctx context.Context) (context.Context, *Span) {
	newSpan := newSpan()
	newSpan.parent = s
	newSpan.parentID = s.spanID
	newSpan.trace = s.trace
	newSpan.ev = s.trace.builder.NewEvent()
	s.children = append(s.children, newSpan)
	ctx = PutSpanInContext(ctx, newSpan)
	return ctx, newSpan
}

// TraceContext returns the correlation identity an outbound call made from
// this span should carry: a copy of the trace's context with this span as
// the parent. Mutating the copy does not affect the trace.
func (s *Span) TraceContext() *propagation.TraceContext {
	tc := *s.trace.traceContext
	tc.SpanID = s.spanID
	return &tc
}

// SerializeHeaders returns the span's identity in the modern wire format,
// ready to be attached to an outbound request.
func (s *Span) SerializeHeaders() string {
	return propagation.MarshalW3CTraceContext(s.TraceContext())
}

// send applies trace level fields and hooks, then sends the span.
func (s *Span) send() {
	if s.isSent {
		return
	}
	// trace level fields are applied as late as possible so spans pick up
	// fields added after they finished
	s.trace.tlfLock.Lock()
	for k, v := range s.trace.traceLevelFields {
		s.AddField(k, v)
	}
	s.trace.tlfLock.Unlock()

	var spanType string
	switch {
	case s.isRoot:
		if s.parentID == "" {
			spanType = "root"
		} else {
			spanType = "subroot"
		}
	case s.isAsync:
		spanType = "async"
	case len(s.children) == 0:
		spanType = "leaf"
	default:
		spanType = "mid"
	}
	s.AddField("meta.span_type", spanType)

	shouldKeep := true
	if GlobalConfig.SamplerHook != nil {
		var sampleRate int
		shouldKeep, sampleRate = GlobalConfig.SamplerHook(s.ev.Fields())
		s.ev.SampleRate *= uint(sampleRate)
	}
	if shouldKeep {
		if GlobalConfig.PresendHook != nil {
			GlobalConfig.PresendHook(s.ev.Fields())
		}
		s.ev.SendPresampled()
	}
}

// recursiveSend sends this span and its synchronous children; async spans
// send themselves.
func recursiveSend(s *Span) {
	if !s.isSent {
		s.send()
	}
	for _, childSpan := range s.children {
		if !childSpan.IsAsync() {
			recursiveSend(childSpan)
		}
	}
	s.isSent = true
}

// Send sends this span and any synchronous children. Async spans are the
// main use; finishing the root span already sends synchronous ones. Fields
// added to the trace after a span is sent will not appear on it.
func (s *Span) Send() {
	if !s.isFinished {
		s.Finish()
	}
	recursiveSend(s)
}
