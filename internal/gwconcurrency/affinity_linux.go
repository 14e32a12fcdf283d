//go:build linux

// File: internal/gwconcurrency/affinity_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux CPU pinning via sched_setaffinity, using golang.org/x/sys/unix
// instead of cgo so the gateway stays a static, cross-compilable binary.

package gwconcurrency

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func platformPin(cpuID int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}

func platformUnpin() error {
	var set unix.CPUSet
	set.Zero()
	n := runtime.NumCPU()
	for i := 0; i < n; i++ {
		set.Set(i)
	}
	return unix.SchedSetaffinity(0, &set)
}
