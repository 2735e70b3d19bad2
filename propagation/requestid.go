package propagation

import (
	"strings"

	"github.com/rambhatt-msft/correlate-go/internal"
)

// requestIDMaxLength caps hierarchical Request-Id values. Ids grow by one
// segment per hop, so deep call chains would otherwise grow without bound.
const requestIDMaxLength = 1024

// MarshalLegacyTraceContext renders tc in the hierarchical Request-Id format
// understood by older peers.
//
// If tc is nil, the returned value will be an empty string.
func MarshalLegacyTraceContext(tc *TraceContext) string {
	if tc == nil {
		return ""
	}
	return tc.BackCompatRequestID()
}

// UnmarshalLegacyTraceContext builds a TraceContext from a hierarchical
// Request-Id header value. Like UnmarshalW3CTraceContext it never fails.
//
// The inbound value is kept verbatim in ParentID. Its root segment becomes
// the trace id when it already has trace id shape; otherwise the root is
// preserved in LegacyRootID and a fresh trace id is generated. The innermost
// segment of the id becomes the span id as given: legacy producers put
// arbitrary suffixes there, and rewriting the segment would break correlation
// with their own records of it.
//
// An empty value is the same as having no header at all.
func UnmarshalLegacyTraceContext(requestID string) *TraceContext {
	if requestID == "" {
		return NewTraceContext()
	}
	tc := &TraceContext{
		Version:   DefaultVersion,
		TraceFlag: DefaultTraceFlag,
		ParentID:  requestID,
	}
	root := RootID(requestID)
	if !IsValidTraceID(root) {
		tc.LegacyRootID = root
		root = internal.NewTraceID()
	}
	if strings.Contains(requestID, "|") {
		end := len(requestID) - 1
		start := strings.LastIndex(requestID[:end], ".") + 1
		requestID = requestID[start:end]
	}
	tc.TraceID = root
	tc.SpanID = requestID
	return tc
}

// RootID extracts the root segment of a hierarchical id: the text between
// the leading | (if any) and the first dot. The root of a legacy id is the
// equivalent of a trace id.
func RootID(id string) string {
	end := strings.Index(id, ".")
	if end < 0 {
		end = len(id)
	}
	start := 0
	if strings.HasPrefix(id, "|") {
		start = 1
	}
	return id[start:end]
}

// GenerateRequestID returns a hierarchical child id under parentID, for
// handing to an outbound dependency that only speaks the legacy format. The
// child appends a random suffix segment, so no coordination between callers
// is needed. With an empty parentID it starts a new hierarchy.
func GenerateRequestID(parentID string) string {
	if parentID == "" {
		return generateRootRequestID()
	}
	if parentID[0] != '|' {
		parentID = "|" + parentID
	}
	if parentID[len(parentID)-1] != '.' {
		parentID += "."
	}
	return appendSuffix(parentID, internal.NewSpanID(), "_")
}

func generateRootRequestID() string {
	return "|" + internal.NewTraceID() + "."
}

// appendSuffix attaches one more segment to a hierarchical id, keeping the
// result under requestIDMaxLength. When the id is already too long it is cut
// back to the previous segment boundary and terminated with an 8 hex char
// marker and #, which still correlates to the root even though the full
// lineage is lost.
func appendSuffix(parentID, suffix, delimiter string) string {
	if len(parentID)+len(suffix) < requestIDMaxLength {
		return parentID + suffix + delimiter
	}
	trimPosition := requestIDMaxLength - 9
	if trimPosition > len(parentID) {
		trimPosition = len(parentID)
	}
	for ; trimPosition > 1; trimPosition-- {
		c := parentID[trimPosition-1]
		if c == '.' || c == '_' {
			break
		}
	}
	if trimPosition <= 1 {
		// nothing recognizable to trim back to, so the id was never valid
		return generateRootRequestID()
	}
	return parentID[:trimPosition] + internal.NewSpanID()[:8] + "#"
}

// GetCorrelationContextTarget extracts the value for key from a
// comma-separated key=value header such as Correlation-Context.
func GetCorrelationContextTarget(header, key string) string {
	for _, pair := range strings.Split(header, ",") {
		keyValue := strings.Split(pair, "=")
		if len(keyValue) == 2 && keyValue[0] == key {
			return keyValue[1]
		}
	}
	return ""
}
