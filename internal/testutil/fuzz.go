// Package testutil holds small helpers shared by the fuzz targets on the
// announcement codecs.
package testutil

import (
	"testing"
	"time"
)

// MaxFuzzInput matches the wire frame cap; anything larger would be
// rejected before decoding anyway.
const MaxFuzzInput = 64 << 10

const FuzzDeadline = 100 * time.Millisecond

// ClampInput truncates oversized fuzz inputs instead of skipping them, so
// the prefix still exercises the decoder.
func ClampInput(b []byte) []byte {
	if len(b) > MaxFuzzInput {
		return b[:MaxFuzzInput]
	}
	return b
}

// MustFinish fails the test if fn does not return within d. Decoders are
// straight-line code; a stall means an input found a loop.
func MustFinish(t testing.TB, d time.Duration, fn func()) {
	t.Helper()
	if d <= 0 {
		d = FuzzDeadline
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("decoder did not finish within %s", d)
	}
}
