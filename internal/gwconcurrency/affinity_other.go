//go:build !linux

// File: internal/gwconcurrency/affinity_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CPU pinning is Linux-only; other platforms report unsupported so callers
// can degrade to "no pinning" without crashing.

package gwconcurrency

import "errors"

var errAffinityUnsupported = errors.New("gwconcurrency: cpu affinity not supported on this platform")

func platformPin(cpuID int) error {
	return errAffinityUnsupported
}

func platformUnpin() error {
	return errAffinityUnsupported
}
