// Package internal holds the identifier generator shared by the propagation
// and trace packages. It is not part of the public API.
package internal

import (
	"strings"

	"github.com/google/uuid"
)

// NewTraceID returns a new trace id: 32 lowercase hex characters sourced from
// a random UUID. A v4 UUID always has version and variant bits set, so the
// result can never be the all-zero id.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewRandom()).String(), "-", "")
}

// NewSpanID returns a new span id: the first 16 characters of a new trace id.
// The version nibble of the underlying UUID falls inside the kept prefix, so
// a span id can never be all zeroes either.
func NewSpanID() string {
	return NewTraceID()[:16]
}
