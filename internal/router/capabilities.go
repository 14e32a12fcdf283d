// File: internal/router/capabilities.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// External capabilities the dispatcher invokes but does not implement
// itself: the identity provider behind system/auth frames, and the
// downstream RPC transport. Per the open design question this pins only
// the contract — implementers must not invent retry or buffering semantics
// beyond what's stated here.

package router

import (
	"context"

	"github.com/momentics/hiogate/api"
	"github.com/momentics/hiogate/protocol"
)

// Authenticator validates a system/auth frame's body and, on success,
// returns the identity and an opaque token to record in the auth registry.
type Authenticator interface {
	Authenticate(ctx context.Context, body []byte) (identity, token string, err error)
}

// Downstream forwards a frame to one endpoint of a downstream pool. The
// dispatcher does not wait for a reply; any response arrives asynchronously
// through the connection registry's Send.
type Downstream interface {
	Send(ctx context.Context, pool protocol.PoolID, endpoint string, connID api.ConnectionID, frame *protocol.Frame) error
}

// SessionMirror is the optional write-through capability for mirroring
// auth state to an external cache, per the out-of-scope "distributed
// session mirroring" collaborator. The dispatcher only ever writes through
// it on successful authentication; nothing in this module reads it back —
// reconstructing a transport handle from a mirrored key is explicitly not
// this module's concern.
type SessionMirror interface {
	Put(connID api.ConnectionID, key string, value []byte) error
}
