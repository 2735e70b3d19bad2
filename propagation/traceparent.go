package propagation

import (
	"strings"

	"github.com/rambhatt-msft/correlate-go/internal"
)

// MarshalW3CTraceContext renders tc as a traceparent header value, ready to
// be set on an outbound request.
//
// If tc is nil, the returned value will be an empty string.
func MarshalW3CTraceContext(tc *TraceContext) string {
	if tc == nil {
		return ""
	}
	return tc.String()
}

// UnmarshalW3CTraceContext parses a traceparent header value into a
// TraceContext. It never fails: any field that does not hold up under
// validation is replaced with a generated one, so the result is always a
// usable identity for the operation the header arrived on.
//
// The repair rules, applied in order:
//
//   - A header containing a comma is two or more header values concatenated.
//     The whole value is discarded and both ids regenerated.
//   - Fewer than 4 dash-separated fields: both ids are regenerated.
//   - A version that is not 2 hex chars resets to 00 and regenerates the
//     trace id.
//   - Version 00 requires exactly 4 fields; any other count regenerates
//     both ids.
//   - Version ff is reserved by the wire format: reset to 00, regenerate both.
//   - A version above 0f downgrades to 00. The ids are kept.
//   - A malformed trace flag resets to 01 and regenerates the trace id.
//   - An invalid trace id is regenerated alone.
//   - An invalid span id regenerates both the span id and the trace id.
//
// Later rules see fields already repaired by earlier ones; the order is part
// of the contract.
func UnmarshalW3CTraceContext(header string) *TraceContext {
	tc := &TraceContext{
		Version:   DefaultVersion,
		TraceFlag: DefaultTraceFlag,
	}
	if strings.Contains(header, ",") {
		tc.TraceID = internal.NewTraceID()
		tc.SpanID = internal.NewSpanID()
	} else {
		fields := strings.Split(strings.TrimSpace(header), "-")
		if len(fields) >= 4 {
			tc.Version = fields[0]
			tc.TraceID = fields[1]
			tc.SpanID = fields[2]
			tc.TraceFlag = fields[3]
		} else {
			tc.TraceID = internal.NewTraceID()
			tc.SpanID = internal.NewSpanID()
		}
		if !validVersionPattern.MatchString(tc.Version) {
			tc.Version = DefaultVersion
			tc.TraceID = internal.NewTraceID()
		}
		if tc.Version == DefaultVersion && len(fields) != 4 {
			tc.TraceID = internal.NewTraceID()
			tc.SpanID = internal.NewSpanID()
		}
		if tc.Version == reservedVersion {
			tc.Version = DefaultVersion
			tc.TraceID = internal.NewTraceID()
			tc.SpanID = internal.NewSpanID()
		}
		if !currentVersionPattern.MatchString(tc.Version) {
			tc.Version = DefaultVersion
		}
		if !validTraceFlagPattern.MatchString(tc.TraceFlag) {
			tc.TraceFlag = DefaultTraceFlag
			tc.TraceID = internal.NewTraceID()
		}
		if !IsValidTraceID(tc.TraceID) {
			tc.TraceID = internal.NewTraceID()
		}
		if !IsValidSpanID(tc.SpanID) {
			tc.SpanID = internal.NewSpanID()
			tc.TraceID = internal.NewTraceID()
		}
	}
	tc.ParentID = tc.BackCompatRequestID()
	return tc
}
