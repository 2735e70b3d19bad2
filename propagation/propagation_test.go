package propagation

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testTraceID = "0af7651916cd43dd8448eb211c80319c"
	testSpanID  = "b7ad6b7169203331"
)

var backCompatPattern = regexp.MustCompile(`^\|[0-9a-f]{32}\.[0-9a-f]{16}\.$`)

func TestIsValidTraceID(t *testing.T) {
	testCases := []struct {
		name  string
		id    string
		valid bool
	}{
		{"well formed id", testTraceID, true},
		{"empty", "", false},
		{"all zeroes", "00000000000000000000000000000000", false},
		{"too short", "0af7651916cd43dd", false},
		{"too long", testTraceID + "00", false},
		{"uppercase hex", "0AF7651916CD43DD8448EB211C80319C", false},
		{"non hex", "0xf7651916cd43dd8448eb211c80319z", false},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidTraceID(tt.id))
		})
	}
}

func TestIsValidSpanID(t *testing.T) {
	testCases := []struct {
		name  string
		id    string
		valid bool
	}{
		{"well formed id", testSpanID, true},
		{"empty", "", false},
		{"all zeroes", "0000000000000000", false},
		{"too short", "b7ad6b71", false},
		{"too long", testSpanID + "00", false},
		{"uppercase hex", "B7AD6B7169203331", false},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidSpanID(tt.id))
		})
	}
}

func TestNewTraceContext(t *testing.T) {
	tc := NewTraceContext()
	assert.Equal(t, DefaultVersion, tc.Version, "fresh contexts should carry the default version")
	assert.Equal(t, DefaultTraceFlag, tc.TraceFlag, "fresh contexts should carry the default flag")
	assert.True(t, IsValidTraceID(tc.TraceID), "fresh contexts should have a valid trace id")
	assert.True(t, IsValidSpanID(tc.SpanID), "fresh contexts should have a valid span id")
	assert.True(t, tc.IsValid())
	assert.Equal(t, tc.BackCompatRequestID(), tc.ParentID, "parent id should be the legacy rendering of the fresh ids")
	assert.Empty(t, tc.LegacyRootID)

	other := NewTraceContext()
	assert.NotEqual(t, tc.TraceID, other.TraceID, "two fresh contexts should not share a trace id")
	assert.NotEqual(t, tc.SpanID, other.SpanID, "two fresh contexts should not share a span id")
}

func TestTraceContextString(t *testing.T) {
	tc := &TraceContext{
		Version:   "00",
		TraceID:   testTraceID,
		SpanID:    testSpanID,
		TraceFlag: "01",
	}
	assert.Equal(t, "00-"+testTraceID+"-"+testSpanID+"-01", tc.String())
}

func TestBackCompatRequestID(t *testing.T) {
	tc := NewTraceContext()
	assert.Regexp(t, backCompatPattern, tc.BackCompatRequestID())
	assert.Equal(t, "|"+tc.TraceID+"."+tc.SpanID+".", tc.BackCompatRequestID())
}

func TestRenewSpanID(t *testing.T) {
	tc := NewTraceContext()
	traceID := tc.TraceID
	version := tc.Version
	flag := tc.TraceFlag
	parentID := tc.ParentID
	firstSpanID := tc.SpanID

	tc.RenewSpanID()
	assert.NotEqual(t, firstSpanID, tc.SpanID, "renewing should produce a new span id")
	assert.True(t, IsValidSpanID(tc.SpanID))
	assert.Equal(t, traceID, tc.TraceID, "renewing the span id should not change the trace id")
	assert.Equal(t, version, tc.Version)
	assert.Equal(t, flag, tc.TraceFlag)
	assert.Equal(t, parentID, tc.ParentID, "the stored parent id reflects construction time and renewing should not rewrite it")
	assert.Equal(t, "|"+traceID+"."+tc.SpanID+".", tc.BackCompatRequestID(),
		"the computed legacy rendering should pick up the renewed span id")

	secondSpanID := tc.SpanID
	tc.RenewSpanID()
	assert.NotEqual(t, secondSpanID, tc.SpanID, "each renewal should produce a distinct span id")
}

func TestIsValid(t *testing.T) {
	testCases := []struct {
		name  string
		tc    TraceContext
		valid bool
	}{
		{"complete context", TraceContext{Version: "00", TraceID: testTraceID, SpanID: testSpanID, TraceFlag: "01"}, true},
		{"zero value", TraceContext{}, false},
		{"bad version", TraceContext{Version: "fff", TraceID: testTraceID, SpanID: testSpanID, TraceFlag: "01"}, false},
		{"bad flag", TraceContext{Version: "00", TraceID: testTraceID, SpanID: testSpanID, TraceFlag: "1"}, false},
		{"zero trace id", TraceContext{Version: "00", TraceID: "00000000000000000000000000000000", SpanID: testSpanID, TraceFlag: "01"}, false},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.tc.IsValid())
		})
	}
}

func TestMarshalNilContexts(t *testing.T) {
	assert.Equal(t, "", MarshalW3CTraceContext(nil))
	assert.Equal(t, "", MarshalLegacyTraceContext(nil))
}

func TestPropagationError(t *testing.T) {
	err := &PropagationError{"header is unusable", nil}
	assert.Equal(t, "header is unusable", err.Error())
}
