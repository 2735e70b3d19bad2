// Package propagation includes types and functions for parsing, repairing and
// serializing trace correlation identifiers as they cross process boundaries.
// It understands two wire formats: the W3C trace context header (traceparent,
// with its tracestate companion) and the older hierarchical Request-Id header.
//
// Unlike most parsers, the identifier constructors in this package never fail.
// A service must always end up with usable correlation identifiers, because a
// broken tracing header must never break the request it arrived on. Malformed
// input is repaired by regenerating the affected fields; the only trace of the
// repair is that the resulting ids differ from what was supplied.
package propagation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rambhatt-msft/correlate-go/internal"
)

// HTTP headers recognized on inbound requests and set on outbound ones.
const (
	// TraceParentHeader is the W3C trace context header.
	TraceParentHeader = "traceparent"
	// TraceStateHeader carries vendor-specific data alongside TraceParentHeader.
	TraceStateHeader = "tracestate"
	// RequestIDHeader is the legacy hierarchical correlation header.
	RequestIDHeader = "Request-Id"
	// CorrelationContextHeader carries comma-separated key=value correlation
	// properties set by the caller.
	CorrelationContextHeader = "Correlation-Context"
)

// Field defaults applied whenever a header is absent or a field is repaired.
const (
	DefaultVersion   = "00"
	DefaultTraceFlag = "01"
)

const (
	emptyTraceID    = "00000000000000000000000000000000"
	emptySpanID     = "0000000000000000"
	reservedVersion = "ff"
)

var (
	validTraceIDPattern   = regexp.MustCompile(`^[0-9a-f]{32}$`)
	validSpanIDPattern    = regexp.MustCompile(`^[0-9a-f]{16}$`)
	validVersionPattern   = regexp.MustCompile(`^[0-9a-f]{2}$`)
	currentVersionPattern = regexp.MustCompile(`^0[0-9a-f]$`)
	validTraceFlagPattern = regexp.MustCompile(`^[0-9a-f]{2}$`)
)

// TraceContext is the correlation identity of one operation within a trace.
// Version, TraceID, SpanID and TraceFlag are the four fields of the W3C
// traceparent header. ParentID holds the inbound legacy Request-Id when the
// context came from one, otherwise the legacy rendering of the generated ids;
// it reflects the context as constructed and is not updated afterwards (use
// BackCompatRequestID for a rendering of the current ids). LegacyRootID is
// populated only when a legacy root could not serve as a trace id, so the
// original value stays available as a diagnostic dimension.
//
// Every constructor in this package returns a TraceContext whose TraceID,
// SpanID, Version and TraceFlag are valid, whatever the input looked like.
// A TraceContext is intended to identify a single in-flight operation and is
// not safe for concurrent mutation; callers sharing one across goroutines
// must not call RenewSpanID on it.
type TraceContext struct {
	Version      string
	TraceID      string
	SpanID       string
	TraceFlag    string
	ParentID     string
	LegacyRootID string
}

// NewTraceContext returns a TraceContext with freshly generated ids and
// default version and flag, for operations that arrived with no correlation
// headers at all.
func NewTraceContext() *TraceContext {
	tc := &TraceContext{
		Version:   DefaultVersion,
		TraceID:   internal.NewTraceID(),
		SpanID:    internal.NewSpanID(),
		TraceFlag: DefaultTraceFlag,
	}
	tc.ParentID = tc.BackCompatRequestID()
	return tc
}

// IsValidTraceID reports whether id is 32 lowercase hex characters and not
// the all-zero id the wire format reserves for "no trace".
func IsValidTraceID(id string) bool {
	return validTraceIDPattern.MatchString(id) && id != emptyTraceID
}

// IsValidSpanID reports whether id is 16 lowercase hex characters and not
// the all-zero id.
func IsValidSpanID(id string) bool {
	return validSpanIDPattern.MatchString(id) && id != emptySpanID
}

// hasValidIDs checks the two generated-or-parsed ids.
func (tc *TraceContext) hasValidIDs() bool {
	return IsValidTraceID(tc.TraceID) && IsValidSpanID(tc.SpanID)
}

// IsValid reports whether every field of the context has the shape the wire
// format requires. Contexts built by this package always satisfy it; contexts
// assembled by hand may not.
func (tc *TraceContext) IsValid() bool {
	return validVersionPattern.MatchString(tc.Version) &&
		validTraceFlagPattern.MatchString(tc.TraceFlag) &&
		tc.hasValidIDs()
}

// String renders the context in the W3C traceparent wire format,
// version-traceid-spanid-traceflag.
func (tc *TraceContext) String() string {
	return strings.Join([]string{tc.Version, tc.TraceID, tc.SpanID, tc.TraceFlag}, "-")
}

// BackCompatRequestID renders the current ids in the legacy hierarchical
// format, |traceid.spanid. , for peers that only understand Request-Id.
// It is computed from the current fields on every call, so it stays accurate
// after RenewSpanID; ParentID does not.
func (tc *TraceContext) BackCompatRequestID() string {
	return fmt.Sprintf("|%s.%s.", tc.TraceID, tc.SpanID)
}

// RenewSpanID replaces SpanID with a freshly generated id, leaving every
// other field untouched. Call it before each outbound request so the remote
// side sees this hop as its parent span.
func (tc *TraceContext) RenewSpanID() {
	tc.SpanID = internal.NewSpanID()
}

// PropagationError wraps any error encountered while parsing trace
// propagation headers that carry droppable data, such as tracestate.
type PropagationError struct {
	message      string
	wrappedError error
}

// Error returns a formatted message containing the error.
func (p *PropagationError) Error() string {
	if p.wrappedError == nil {
		return p.message
	}
	return fmt.Sprintf(p.message, p.wrappedError)
}
