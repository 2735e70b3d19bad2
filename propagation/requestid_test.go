package propagation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnmarshalLegacyTraceContext(t *testing.T) {
	testCases := []struct {
		name             string
		requestID        string
		wantTraceID      string // empty means freshly generated
		wantSpanID       string
		wantLegacyRootID string
	}{
		{
			name:        "hierarchical id with a valid root",
			requestID:   "|abcdefabcdefabcdefabcdefabcdef01.1234567812345678.",
			wantTraceID: "abcdefabcdefabcdefabcdefabcdef01",
			wantSpanID:  "1234567812345678",
		},
		{
			name:             "hierarchical id with an invalid root",
			requestID:        "|not-a-valid-root.span123.",
			wantSpanID:       "span123",
			wantLegacyRootID: "not-a-valid-root",
		},
		{
			name:        "deeply nested id keeps only the innermost segment",
			requestID:   "|abcdefabcdefabcdefabcdefabcdef01.a1.b2.c3.",
			wantTraceID: "abcdefabcdefabcdefabcdefabcdef01",
			wantSpanID:  "c3",
		},
		{
			name:        "bare id without delimiters is used whole",
			requestID:   "abcdefabcdefabcdefabcdefabcdef01",
			wantTraceID: "abcdefabcdefabcdefabcdefabcdef01",
			wantSpanID:  "abcdefabcdefabcdefabcdefabcdef01",
		},
		{
			name:             "dotted id without a pipe is not resliced",
			requestID:        "opaque.value",
			wantSpanID:       "opaque.value",
			wantLegacyRootID: "opaque",
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			tc := UnmarshalLegacyTraceContext(tt.requestID)
			assert.Equal(t, tt.requestID, tc.ParentID, "the inbound id should be stored verbatim")
			assert.Equal(t, DefaultVersion, tc.Version)
			assert.Equal(t, DefaultTraceFlag, tc.TraceFlag)
			if tt.wantTraceID != "" {
				assert.Equal(t, tt.wantTraceID, tc.TraceID, "the root segment should become the trace id")
			} else {
				assert.True(t, IsValidTraceID(tc.TraceID), "an unusable root should be replaced with a valid trace id")
				assert.NotEqual(t, tt.wantLegacyRootID, tc.TraceID)
			}
			assert.Equal(t, tt.wantSpanID, tc.SpanID, "the span id is taken as given, even when it is not id shaped")
			assert.Equal(t, tt.wantLegacyRootID, tc.LegacyRootID)
		})
	}
}

func TestUnmarshalLegacyTraceContextEmpty(t *testing.T) {
	tc := UnmarshalLegacyTraceContext("")
	assert.True(t, tc.IsValid(), "an empty id should act like having no header at all")
	assert.Regexp(t, backCompatPattern, tc.ParentID)
	assert.Empty(t, tc.LegacyRootID)
}

func TestLegacyRoundTrip(t *testing.T) {
	requestID := "|abcdefabcdefabcdefabcdefabcdef01.1234567812345678."
	tc := UnmarshalLegacyTraceContext(requestID)
	assert.Equal(t, requestID, MarshalLegacyTraceContext(tc),
		"a well formed hierarchical id should round trip unchanged")
}

func TestRootID(t *testing.T) {
	testCases := []struct {
		name string
		id   string
		want string
	}{
		{"pipe and dots", "|root.span.", "root"},
		{"dots only", "root.span", "root"},
		{"pipe only", "|rootonly", "rootonly"},
		{"bare id", "rootonly", "rootonly"},
		{"empty", "", ""},
		{"pipe then dot", "|.", ""},
		{"nested segments", "|root.a.b.c.", "root"},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RootID(tt.id))
		})
	}
}

func TestGenerateRequestID(t *testing.T) {
	t.Run("child of a hierarchical parent", func(t *testing.T) {
		id := GenerateRequestID("|root.")
		assert.Regexp(t, `^\|root\.[0-9a-f]{16}_$`, id)
	})

	t.Run("bare parent gains the hierarchy delimiters", func(t *testing.T) {
		id := GenerateRequestID("root")
		assert.Regexp(t, `^\|root\.[0-9a-f]{16}_$`, id)
	})

	t.Run("no parent starts a new hierarchy", func(t *testing.T) {
		id := GenerateRequestID("")
		assert.Regexp(t, `^\|[0-9a-f]{32}\.$`, id)
	})

	t.Run("children of one parent are distinct", func(t *testing.T) {
		parent := "|root."
		assert.NotEqual(t, GenerateRequestID(parent), GenerateRequestID(parent))
	})

	t.Run("overlong parent is trimmed at a segment boundary", func(t *testing.T) {
		parent := "|root." + strings.Repeat("abcdef_", 160)
		id := GenerateRequestID(parent)
		assert.LessOrEqual(t, len(id), requestIDMaxLength)
		assert.True(t, strings.HasSuffix(id, "#"), "an overflowed id should end with the overflow marker")
		assert.True(t, strings.HasPrefix(id, "|root."), "trimming should keep the leading segments")
		boundary := id[len(id)-10]
		assert.Contains(t, []byte{'.', '_'}, boundary, "the overflow suffix should start at a segment boundary")
	})

	t.Run("parent just under the cap trims at its trailing boundary", func(t *testing.T) {
		parent := "|" + strings.Repeat("a", 1006) + "."
		id := GenerateRequestID(parent)
		assert.LessOrEqual(t, len(id), requestIDMaxLength)
		assert.True(t, strings.HasPrefix(id, parent), "a parent ending on a boundary should be kept whole")
		assert.True(t, strings.HasSuffix(id, "#"))
	})

	t.Run("overlong parent without boundaries starts over", func(t *testing.T) {
		id := GenerateRequestID(strings.Repeat("a", 1100))
		assert.Regexp(t, `^\|[0-9a-f]{32}\.$`, id)
	})
}

func TestGetCorrelationContextTarget(t *testing.T) {
	testCases := []struct {
		name   string
		header string
		key    string
		want   string
	}{
		{"single pair", "appId=cid-v1:some-guid", "appId", "cid-v1:some-guid"},
		{"several pairs", "roleName=frontend,appId=cid-v1:some-guid", "appId", "cid-v1:some-guid"},
		{"missing key", "roleName=frontend", "appId", ""},
		{"empty header", "", "appId", ""},
		{"malformed pair is skipped", "garbage,appId=cid-v1:some-guid", "appId", "cid-v1:some-guid"},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCorrelationContextTarget(tt.header, tt.key))
		})
	}
}
