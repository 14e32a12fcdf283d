// File: internal/router/route_table.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RouteTable holds the ordered endpoint list and round-robin cursor for one
// downstream pool, with out-of-band health updates from a periodic check.

package router

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hiogate/protocol"
)

// Endpoint is one downstream target within a pool.
type Endpoint struct {
	Addr    string
	healthy atomic.Bool
}

// Healthy reports the endpoint's last-known health.
func (e *Endpoint) Healthy() bool { return e.healthy.Load() }

// RouteTable is an ordered, health-filtered endpoint list with an atomic
// round-robin cursor.
type RouteTable struct {
	mu        sync.RWMutex
	endpoints []*Endpoint
	cursor    uint64
}

// NewRouteTable constructs a table from a list of addresses, all initially
// marked healthy.
func NewRouteTable(addrs []string) *RouteTable {
	eps := make([]*Endpoint, len(addrs))
	for i, a := range addrs {
		e := &Endpoint{Addr: a}
		e.healthy.Store(true)
		eps[i] = e
	}
	return &RouteTable{endpoints: eps}
}

// Select advances the cursor and returns the next healthy endpoint. If a
// full cycle finds no healthy endpoint, it returns (nil, false) — the
// dispatcher treats this identically to an empty pool.
func (rt *RouteTable) Select() (*Endpoint, bool) {
	rt.mu.RLock()
	n := len(rt.endpoints)
	eps := rt.endpoints
	rt.mu.RUnlock()

	if n == 0 {
		return nil, false
	}
	for i := 0; i < n; i++ {
		idx := atomic.AddUint64(&rt.cursor, 1) % uint64(n)
		ep := eps[idx]
		if ep.Healthy() {
			return ep, true
		}
	}
	return nil, false
}

// MarkHealthy updates health for the endpoint matching addr, if present.
func (rt *RouteTable) MarkHealthy(addr string, healthy bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	for _, e := range rt.endpoints {
		if e.Addr == addr {
			e.healthy.Store(healthy)
			return
		}
	}
}

// Endpoints returns a snapshot of the configured endpoints, used by the
// periodic health checker.
func (rt *RouteTable) Endpoints() []*Endpoint {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]*Endpoint, len(rt.endpoints))
	copy(out, rt.endpoints)
	return out
}

// Router maps a downstream pool to its RouteTable.
type Router struct {
	mu     sync.RWMutex
	tables map[protocol.PoolID]*RouteTable
}

// NewRouter constructs a Router from a pool -> endpoint-address-list config.
func NewRouter(routes map[protocol.PoolID][]string) *Router {
	tables := make(map[protocol.PoolID]*RouteTable, len(routes))
	for pool, addrs := range routes {
		tables[pool] = NewRouteTable(addrs)
	}
	return &Router{tables: tables}
}

// TableFor returns the RouteTable for pool, if configured.
func (r *Router) TableFor(pool protocol.PoolID) (*RouteTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[pool]
	return t, ok
}

// HealthSummary reports, per configured pool, the count of healthy and
// total endpoints. Used by the admin debug probe; never consulted by the
// dispatcher's hot path.
func (r *Router) HealthSummary() map[string]PoolHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]PoolHealth, len(r.tables))
	for pool, t := range r.tables {
		eps := t.Endpoints()
		h := PoolHealth{Total: len(eps)}
		for _, e := range eps {
			if e.Healthy() {
				h.Healthy++
			}
		}
		out[string(pool)] = h
	}
	return out
}

// PoolHealth is a snapshot of one pool's endpoint health counts.
type PoolHealth struct {
	Healthy int
	Total   int
}
