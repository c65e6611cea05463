// Package affinity pins a worker goroutine's OS thread to a specific
// CPU core. It is best-effort: platforms without a pinning syscall get
// a no-op implementation (affinity_stub.go) rather than an error,
// since affinity is a throughput tuning knob, never a correctness
// requirement of the scheduler.
package affinity

// PinCurrentGoroutine locks the calling goroutine to its current OS
// thread and attempts to restrict that thread to CPU core,
// wrapping around the machine's CPU count. Call it once, as the first
// thing a worker goroutine does, never from a goroutine that later
// needs to migrate threads.
func PinCurrentGoroutine(core int) {
	pin(core)
}
