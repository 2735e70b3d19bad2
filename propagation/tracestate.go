package propagation

import (
	"regexp"
	"strings"
)

// maxTraceStateEntries is the list-member cap the wire format imposes on a
// tracestate header.
const maxTraceStateEntries = 32

var (
	simpleTraceStateKey = regexp.MustCompile(`^[ ]?[a-z0-9*\-_/]{1,256}$`)
	tenantTraceStateKey = regexp.MustCompile(`^[ ]?[a-z0-9*\-_/]{1,241}$`)
	systemTraceStateKey = regexp.MustCompile(`^[ ]?[a-z0-9*\-_/]{1,14}$`)
	traceStateValue     = regexp.MustCompile(`^[ ]?[\x20-\x2b\x2d-\x3c\x3e-\x7e]{0,255}[\x21-\x2b\x2d-\x3c\x3e-\x7e]$`)
)

// TraceState holds the ordered vendor entries of a tracestate header. It
// rides along with a TraceContext but is never used to repair one; vendors
// other than us own its contents, so entries pass through untouched or not
// at all.
type TraceState struct {
	entries []string
}

// UnmarshalTraceState parses a tracestate header value. The wire format
// requires dropping the whole header when any part of it is unusable, so a
// malformed value yields an empty TraceState rather than a partial one. The
// returned error says what was wrong with the header; the TraceState is
// usable either way.
func UnmarshalTraceState(header string) (*TraceState, error) {
	ts := &TraceState{}
	if header == "" {
		return ts, nil
	}
	members := strings.Split(header, ",")
	if len(members) > maxTraceStateEntries {
		return ts, &PropagationError{"tracestate header has more than 32 list members", nil}
	}
	entries := make([]string, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, member := range members {
		keyValue := strings.Split(member, "=")
		if len(keyValue) != 2 {
			return ts, &PropagationError{"tracestate list member is not a key=value pair", nil}
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if !validTraceStateKey(key) {
			return ts, &PropagationError{"tracestate list member has an invalid key", nil}
		}
		if !traceStateValue.MatchString(value) {
			return ts, &PropagationError{"tracestate list member has an invalid value", nil}
		}
		if seen[key] {
			return ts, &PropagationError{"tracestate header repeats a key", nil}
		}
		seen[key] = true
		entries = append(entries, key+"="+value)
	}
	ts.entries = entries
	return ts, nil
}

// validTraceStateKey checks a list member key, which is either a plain key or
// a tenant@system pair with its own length limits on each half.
func validTraceStateKey(key string) bool {
	parts := strings.Split(key, "@")
	if len(parts) == 2 {
		return tenantTraceStateKey.MatchString(strings.TrimSpace(parts[0])) &&
			systemTraceStateKey.MatchString(strings.TrimSpace(parts[1]))
	}
	if len(parts) == 1 {
		return simpleTraceStateKey.MatchString(key)
	}
	return false
}

// Len returns the number of entries that survived parsing.
func (ts *TraceState) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.entries)
}

// String renders the entries as a tracestate header value, or an empty
// string when there are none.
func (ts *TraceState) String() string {
	if ts.Len() == 0 {
		return ""
	}
	return strings.Join(ts.entries, ", ")
}
