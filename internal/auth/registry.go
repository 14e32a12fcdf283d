// File: internal/auth/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Auth registry (C3): enforces the single-device-login invariant. Unlike the
// connection registry, this component deliberately uses one exclusive lock
// rather than sharding — authenticate must write the conn->identity and
// identity->conn maps atomically with respect to each other so a racing
// authentication for the same identity resolves to exactly one winner
// (spec P7), which sharded per-key locking cannot guarantee across two
// different maps.

package auth

import (
	"sync"
	"time"

	"github.com/momentics/hiogate/api"
)

// Info is the per-connection auth state recorded on successful
// authentication.
type Info struct {
	Identity  string
	Token     string
	AuthedAt  time.Time
}

// Registry tracks the bidirectional conn<->identity mapping and enforces
// single-device-login.
type Registry struct {
	mu       sync.Mutex
	byConn   map[api.ConnectionID]Info
	byIdent  map[string]api.ConnectionID
}

// NewRegistry constructs an empty auth registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn:  make(map[api.ConnectionID]Info),
		byIdent: make(map[string]api.ConnectionID),
	}
}

// Authenticate writes both maps atomically with respect to each other. If
// identity already maps to a different connection, that connection is
// evicted from the auth map and returned as evicted=true, evictedConn — the
// caller is responsible for closing it. Re-authenticating the same
// (conn, identity) pair refreshes token/timestamp without evicting.
func (r *Registry) Authenticate(conn api.ConnectionID, identity, token string) (evicted bool, evictedConn api.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.byIdent[identity]; ok && prior != conn {
		delete(r.byConn, prior)
		evicted, evictedConn = true, prior
	}

	r.byConn[conn] = Info{Identity: identity, Token: token, AuthedAt: time.Now()}
	r.byIdent[identity] = conn
	return evicted, evictedConn
}

// Deauthenticate removes both mappings for conn, if present.
func (r *Registry) Deauthenticate(conn api.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byConn[conn]
	if !ok {
		return
	}
	delete(r.byConn, conn)
	if r.byIdent[info.Identity] == conn {
		delete(r.byIdent, info.Identity)
	}
}

// IsAuthenticated reports whether conn currently holds an auth record.
func (r *Registry) IsAuthenticated(conn api.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byConn[conn]
	return ok
}

// Identity returns the authenticated identity for conn, if any.
func (r *Registry) Identity(conn api.ConnectionID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byConn[conn]
	return info.Identity, ok
}

// LookupByIdentity returns the connection currently bound to identity.
func (r *Registry) LookupByIdentity(identity string) (api.ConnectionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byIdent[identity]
	return conn, ok
}

// SnapshotCount returns the number of currently authenticated connections.
func (r *Registry) SnapshotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byConn)
}

// Sweep removes auth records whose connection is no longer live according
// to isLive. The close cascade already calls Deauthenticate directly; this
// is a defensive reconciliation pass against the connection registry it
// never holds a back-reference to, run periodically by the supervisor
// alongside the rate-limiter bucket sweep.
func (r *Registry) Sweep(isLive func(api.ConnectionID) bool) (evicted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn, info := range r.byConn {
		if isLive(conn) {
			continue
		}
		delete(r.byConn, conn)
		if r.byIdent[info.Identity] == conn {
			delete(r.byIdent, info.Identity)
		}
		evicted++
	}
	return evicted
}
