//go:build linux

package affinity

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func pin(core int) {
	runtime.LockOSThread()

	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	core = core % n
	if core < 0 {
		core += n
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	// Best-effort: an affinity failure (e.g. restricted cgroup) isn't
	// worth surfacing as an error from a tuning knob.
	_ = unix.SchedSetaffinity(0, &set)
}
