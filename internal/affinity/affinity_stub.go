//go:build !linux

package affinity

func pin(core int) {
	// No portable affinity syscall on this platform; running unpinned
	// is correct, just not as cache-friendly.
}
