// File: internal/gwconn/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection registry (C2): a sharded, concurrency-safe ConnectionID -> Conn
// map. Sharding is grounded on the FNV-hashed, power-of-two shard count used
// for the session store elsewhere in this codebase, adapted to a uint64 key
// instead of a string session id.

package gwconn

import (
	"sync"

	"github.com/momentics/hiogate/api"
	"github.com/momentics/hiogate/protocol"
)

// Conn is the narrow surface the registry needs from a connection manager:
// enough to enqueue outbound frames and request a close, without holding a
// back-reference that would make C2/C3 part of a reference cycle.
type Conn interface {
	ID() api.ConnectionID
	RemoteAddr() string
	Enqueue(f *protocol.Frame) error
	RequestClose(reason string)
	Closed() bool
}

// ErrQueueFull is returned by Send when a connection's outbound queue is
// full; the caller decides whether the dropped class may be discarded.
var (
	ErrNotFound = api.ErrConnNotFound
	ErrClosed   = api.ErrConnClosed
	ErrQueueFull = api.ErrQueueFull
)

type registryShard struct {
	mu    sync.RWMutex
	conns map[api.ConnectionID]Conn
}

// Registry is the concurrency-safe connection registry (C2).
type Registry struct {
	shards []*registryShard
	mask   uint64

	mu      sync.Mutex
	total   int64
	active  int64
}

// NewRegistry constructs a Registry with shardCount shards, rounded up to
// the next power of two.
func NewRegistry(shardCount int) *Registry {
	if shardCount <= 0 {
		shardCount = 16
	}
	n := nextPowerOfTwo(uint64(shardCount))
	shards := make([]*registryShard, n)
	for i := range shards {
		shards[i] = &registryShard{conns: make(map[api.ConnectionID]Conn)}
	}
	return &Registry{shards: shards, mask: n - 1}
}

func (r *Registry) shard(id api.ConnectionID) *registryShard {
	return r.shards[uint64(id)&r.mask]
}

// Register adds a connection to the registry and increments the active and
// total-accepted counters.
func (r *Registry) Register(c Conn) {
	sh := r.shard(c.ID())
	sh.mu.Lock()
	sh.conns[c.ID()] = c
	sh.mu.Unlock()

	r.mu.Lock()
	r.total++
	r.active++
	r.mu.Unlock()
}

// Unregister removes a connection, if present, and decrements the active
// count. A no-op if the id is absent (idempotent close cascade).
func (r *Registry) Unregister(id api.ConnectionID) {
	sh := r.shard(id)
	sh.mu.Lock()
	_, existed := sh.conns[id]
	delete(sh.conns, id)
	sh.mu.Unlock()

	if existed {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}
}

// Lookup returns the connection for id, if registered. It does not check
// Closed: a connection in the middle of its close cascade is still returned.
func (r *Registry) Lookup(id api.ConnectionID) (Conn, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	c, ok := sh.conns[id]
	sh.mu.RUnlock()
	return c, ok
}

// Send enqueues frame for delivery to id's outbound writer. Non-blocking:
// callers never wait on a slow peer.
func (r *Registry) Send(id api.ConnectionID, frame *protocol.Frame) error {
	c, ok := r.Lookup(id)
	if !ok {
		return ErrNotFound
	}
	if c.Closed() {
		return ErrClosed
	}
	return c.Enqueue(frame)
}

// Broadcast enqueues frame on every live connection, counting per-connection
// failures rather than raising them. Returns the number of connections on
// which the enqueue succeeded.
func (r *Registry) Broadcast(frame *protocol.Frame) int {
	delivered := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		snapshot := make([]Conn, 0, len(sh.conns))
		for _, c := range sh.conns {
			snapshot = append(snapshot, c)
		}
		sh.mu.RUnlock()

		for _, c := range snapshot {
			if c.Closed() {
				continue
			}
			if err := c.Enqueue(frame); err == nil {
				delivered++
			}
		}
	}
	return delivered
}

// CloseAll signals every registered connection to close; used by graceful
// shutdown.
func (r *Registry) CloseAll(reason string) {
	for _, sh := range r.shards {
		sh.mu.RLock()
		snapshot := make([]Conn, 0, len(sh.conns))
		for _, c := range sh.conns {
			snapshot = append(snapshot, c)
		}
		sh.mu.RUnlock()

		for _, c := range snapshot {
			c.RequestClose(reason)
		}
	}
}

// CloseConn requests that id close, if currently registered. Used by the
// dispatcher's single-device-login eviction, which only holds a
// ConnectionID and not a Conn reference.
func (r *Registry) CloseConn(id api.ConnectionID, reason string) {
	if c, ok := r.Lookup(id); ok {
		c.RequestClose(reason)
	}
}

// ActiveCount reports the current number of registered connections.
func (r *Registry) ActiveCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// TotalAccepted reports the cumulative number of connections ever
// registered.
func (r *Registry) TotalAccepted() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

func nextPowerOfTwo(v uint64) uint64 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}
