// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Size-classed buffer pool keeping read-loop allocation off the hot path. Buffers are bucketed by power-of-two size class; a request
// is rounded up to the smallest class that fits.

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hiogate/api"
)

const (
	minClassShift = 9  // 512 B
	maxClassShift = 24 // 16 MiB, comfortably above the 10 MiB max frame body
)

// SizeClassPool implements api.BufferPool using one sync.Pool per power-of-two
// size class between 512 B and 16 MiB.
type SizeClassPool struct {
	classes [maxClassShift - minClassShift + 1]sync.Pool

	totalAlloc int64
	totalFree  int64
	inUse      int64
}

// NewSizeClassPool constructs an empty pool; classes are populated lazily.
func NewSizeClassPool() *SizeClassPool {
	p := &SizeClassPool{}
	for i := range p.classes {
		classSize := 1 << (minClassShift + i)
		p.classes[i].New = func() any {
			return make([]byte, classSize)
		}
	}
	return p
}

func classIndexFor(size int) int {
	shift := minClassShift
	n := 1 << shift
	idx := 0
	for n < size && shift < maxClassShift {
		shift++
		n <<= 1
		idx++
	}
	if n < size {
		// Larger than the biggest class: one past the last class index.
		idx++
	}
	return idx
}

// Get returns a Buffer whose Data has length size, backed by a slice from
// the smallest size class that accommodates it.
func (p *SizeClassPool) Get(size int) api.Buffer {
	if size <= 0 {
		return api.Buffer{Pool: p}
	}
	idx := classIndexFor(size)
	if idx >= len(p.classes) {
		// Larger than our biggest class: allocate directly, not pooled.
		atomic.AddInt64(&p.totalAlloc, 1)
		atomic.AddInt64(&p.inUse, 1)
		return api.Buffer{Data: make([]byte, size), Pool: p, Class: -1}
	}
	buf := p.classes[idx].Get().([]byte)
	if cap(buf) < size {
		buf = make([]byte, size)
	}
	atomic.AddInt64(&p.totalAlloc, 1)
	atomic.AddInt64(&p.inUse, 1)
	return api.Buffer{Data: buf[:size], Pool: p, Class: idx}
}

// Put returns a Buffer to its size class. Buffers allocated above the
// largest class (Class == -1) are simply dropped for the GC to reclaim.
func (p *SizeClassPool) Put(b api.Buffer) {
	atomic.AddInt64(&p.totalFree, 1)
	atomic.AddInt64(&p.inUse, -1)
	if b.Class < 0 || b.Class >= len(p.classes) {
		return
	}
	p.classes[b.Class].Put(b.Data[:cap(b.Data)])
}

// Stats reports pool-wide allocation counters.
func (p *SizeClassPool) Stats() api.BufferPoolStats {
	return api.BufferPoolStats{
		TotalAlloc: atomic.LoadInt64(&p.totalAlloc),
		TotalFree:  atomic.LoadInt64(&p.totalFree),
		InUse:      atomic.LoadInt64(&p.inUse),
	}
}

var _ api.BufferPool = (*SizeClassPool)(nil)
