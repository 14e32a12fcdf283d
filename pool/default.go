// File: pool/default.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide default buffer pool. The connection read loop draws its read
// buffer from it; the frame codec allocates frame bodies directly and does
// not use it.

package pool

import (
	"sync"

	"github.com/momentics/hiogate/api"
)

var (
	defaultOnce sync.Once
	defaultPool *SizeClassPool
)

// DefaultPool returns the process-wide buffer pool, created on first use.
func DefaultPool() api.BufferPool {
	defaultOnce.Do(func() {
		defaultPool = NewSizeClassPool()
	})
	return defaultPool
}
