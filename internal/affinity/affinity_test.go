package affinity

import "testing"

func TestPinCurrentGoroutineDoesNotPanic(t *testing.T) {
	// Affinity is best-effort; the only contract worth testing here is
	// that pinning (or failing to, on an unsupported platform) never
	// panics the caller.
	PinCurrentGoroutine(0)
	PinCurrentGoroutine(-1)
	PinCurrentGoroutine(1000)
}
