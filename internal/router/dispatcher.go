// File: internal/router/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatcher (C6): the per-frame pipeline — auth gate, rate gate, the
// system/auth special case, pool routing, round-robin endpoint selection,
// and the non-blocking forward to the downstream capability.

package router

import (
	"context"
	"log"
	"time"

	"github.com/momentics/hiogate/api"
	"github.com/momentics/hiogate/internal/auth"
	"github.com/momentics/hiogate/internal/gwconn"
	"github.com/momentics/hiogate/internal/gwstats"
	"github.com/momentics/hiogate/internal/ratelimit"
	"github.com/momentics/hiogate/protocol"
)

// Reserved reply message types for the auth success path.
const MsgTypeAuthOK int32 = 3

// Config carries the tunables the dispatcher needs beyond its collaborators.
type Config struct {
	// EmitErrorFrames controls whether drop paths reply with an error frame
	// (9000+ range) in addition to incrementing counters. It applies to every
	// message class alike. DefaultConfig turns it on.
	EmitErrorFrames bool
	// DownstreamTimeout bounds the deadline passed to the downstream
	// capability; on expiry the in-flight call is abandoned with no rollback.
	DownstreamTimeout time.Duration
}

// DefaultConfig returns dispatcher defaults.
func DefaultConfig() Config {
	return Config{EmitErrorFrames: true, DownstreamTimeout: 5 * time.Second}
}

// Dispatcher wires the registries, limiter, router, and injected capabilities
// into the single-frame pipeline described by C6.
type Dispatcher struct {
	cfg Config

	conns   *gwconn.Registry
	authReg *auth.Registry
	limiter *ratelimit.Limiter
	router  *Router
	authn   Authenticator
	down    Downstream
	mirror  SessionMirror
	stats   *gwstats.Stats
}

// NewDispatcher constructs a Dispatcher from its collaborators.
func NewDispatcher(cfg Config, conns *gwconn.Registry, authReg *auth.Registry, limiter *ratelimit.Limiter, rtr *Router, authn Authenticator, down Downstream, stats *gwstats.Stats) *Dispatcher {
	return &Dispatcher{
		cfg: cfg, conns: conns, authReg: authReg, limiter: limiter,
		router: rtr, authn: authn, down: down, stats: stats,
	}
}

// WithSessionMirror attaches an optional write-through session mirror. A nil
// mirror (the default) disables mirroring entirely; it is never required.
func (d *Dispatcher) WithSessionMirror(m SessionMirror) *Dispatcher {
	d.mirror = m
	return d
}

// Dispatch runs frame from connID (observed at ip) through the full
// pipeline. It never blocks on a slow peer and never returns an error to the
// caller — all failures are recovered locally via counters and optional
// error-frame replies, per the frame-level error taxonomy.
func (d *Dispatcher) Dispatch(ctx context.Context, connID api.ConnectionID, ip string, frame *protocol.Frame) {
	class := protocol.ClassOf(frame.MessageType)
	authed := d.authReg.IsAuthenticated(connID)

	if class != protocol.ClassSystemAuth && !authed {
		d.stats.IncDropped(gwstats.DropAuth)
		d.logDrop(api.ErrCodeAuth, connID, "frame dropped: connection not authenticated")
		d.replyError(connID, protocol.MsgTypeErrorUnauthorized)
		return
	}

	identity := ""
	if authed {
		identity, _ = d.authReg.Identity(connID)
	}
	if admitted, _ := d.limiter.Allow(ip, identity); !admitted {
		d.stats.IncDropped(gwstats.DropRate)
		d.logDrop(api.ErrCodeRate, connID, "frame dropped: rate limit exceeded")
		d.replyError(connID, protocol.MsgTypeErrorServerBusy)
		return
	}

	if class == protocol.ClassSystemAuth {
		d.handleAuth(ctx, connID, frame)
		return
	}

	pool, ok := protocol.PoolFor(class)
	if !ok {
		d.stats.IncDropped(gwstats.DropRoute)
		d.logDrop(api.ErrCodeRoute, connID, "frame dropped: no pool for message class")
		d.replyError(connID, protocol.MsgTypeErrorInternal)
		return
	}
	table, ok := d.router.TableFor(pool)
	if !ok {
		d.stats.IncDropped(gwstats.DropRoute)
		d.logDrop(api.ErrCodeRoute, connID, "frame dropped: pool has no route table")
		d.replyError(connID, protocol.MsgTypeErrorInternal)
		return
	}
	endpoint, ok := table.Select()
	if !ok {
		d.stats.IncDropped(gwstats.DropRoute)
		d.logDrop(api.ErrCodeRoute, connID, "frame dropped: pool has no healthy endpoints")
		d.replyError(connID, protocol.MsgTypeErrorInternal)
		return
	}

	sendCtx := ctx
	var cancel context.CancelFunc
	if d.cfg.DownstreamTimeout > 0 {
		sendCtx, cancel = context.WithTimeout(ctx, d.cfg.DownstreamTimeout)
		defer cancel()
	}
	if err := d.down.Send(sendCtx, pool, endpoint.Addr, connID, frame); err != nil {
		d.logDrop(api.ErrCodeInternal, connID, "downstream send failed: "+err.Error())
		d.stats.IncDropped(gwstats.DropRoute)
	}
}

// logDrop records a structured, classified error for a dropped frame,
// matching the codec's own api.NewError(code, message) usage for errors
// that deserve an error code instead of a bare log line.
func (d *Dispatcher) logDrop(code api.ErrorCode, connID api.ConnectionID, message string) {
	e := api.NewError(code, message).WithContext("conn_id", connID)
	log.Print("dispatcher: ", e)
}

func (d *Dispatcher) handleAuth(ctx context.Context, connID api.ConnectionID, frame *protocol.Frame) {
	identity, token, err := d.authn.Authenticate(ctx, frame.Body)
	if err != nil {
		d.replyError(connID, protocol.MsgTypeErrorUnauthorized)
		return
	}

	evicted, evictedConn := d.authReg.Authenticate(connID, identity, token)
	if evicted {
		d.conns.CloseConn(evictedConn, "single_device_login_evicted")
	}

	if d.mirror != nil {
		if err := d.mirror.Put(connID, identity, []byte(token)); err != nil {
			log.Printf("dispatcher: session mirror write failed for conn %d: %v", connID, err)
		}
	}

	reply := &protocol.Frame{
		MessageType: MsgTypeAuthOK,
		Sequence:    frame.Sequence,
		TimestampMs: time.Now().UnixMilli(),
		Body:        []byte(`{"ok":true}`),
	}
	if err := d.conns.Send(connID, reply); err != nil {
		log.Printf("dispatcher: failed to send auth reply to conn %d: %v", connID, err)
	}
}

func (d *Dispatcher) replyError(connID api.ConnectionID, errType int32) {
	if !d.cfg.EmitErrorFrames {
		return
	}
	frame := &protocol.Frame{
		MessageType: errType,
		TimestampMs: time.Now().UnixMilli(),
	}
	// Best-effort: a full outbound queue or missing connection here is not
	// itself an error worth surfacing — the original drop is already counted.
	_ = d.conns.Send(connID, frame)
}
