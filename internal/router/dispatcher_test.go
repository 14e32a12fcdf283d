package router

import (
	"context"
	"sync"
	"testing"

	"github.com/momentics/hiogate/api"
	"github.com/momentics/hiogate/internal/auth"
	"github.com/momentics/hiogate/internal/gwconn"
	"github.com/momentics/hiogate/internal/gwstats"
	"github.com/momentics/hiogate/internal/ratelimit"
	"github.com/momentics/hiogate/protocol"
)

type testConn struct {
	id      api.ConnectionID
	mu      sync.Mutex
	sent    []*protocol.Frame
	closed  bool
	closeReason string
}

func (c *testConn) ID() api.ConnectionID { return c.id }
func (c *testConn) RemoteAddr() string   { return "10.0.0.1:1234" }
func (c *testConn) Closed() bool         { c.mu.Lock(); defer c.mu.Unlock(); return c.closed }
func (c *testConn) RequestClose(reason string) {
	c.mu.Lock()
	c.closed = true
	c.closeReason = reason
	c.mu.Unlock()
}
func (c *testConn) Enqueue(f *protocol.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return gwconn.ErrClosed
	}
	c.sent = append(c.sent, f)
	return nil
}

type fakeAuthenticator struct {
	identity string
	token    string
	err      error
}

func (a *fakeAuthenticator) Authenticate(ctx context.Context, body []byte) (string, string, error) {
	return a.identity, a.token, a.err
}

type recordingDownstream struct {
	mu    sync.Mutex
	calls []protocol.PoolID
}

func (d *recordingDownstream) Send(ctx context.Context, pool protocol.PoolID, endpoint string, connID api.ConnectionID, frame *protocol.Frame) error {
	d.mu.Lock()
	d.calls = append(d.calls, pool)
	d.mu.Unlock()
	return nil
}

func newTestDispatcher(t *testing.T, authenticator Authenticator, down Downstream) (*Dispatcher, *gwconn.Registry) {
	t.Helper()
	conns := gwconn.NewRegistry(4)
	authReg := auth.NewRegistry()
	limiter := ratelimit.NewLimiter(ratelimit.Config{GlobalQPS: 1000, GlobalBurst: 1000})
	rtr := NewRouter(map[protocol.PoolID][]string{
		protocol.PoolLogic: {"127.0.0.1:9001"},
	})
	stats := gwstats.New()
	cfg := Config{EmitErrorFrames: true, DownstreamTimeout: 0}
	return NewDispatcher(cfg, conns, authReg, limiter, rtr, authenticator, down, stats), conns
}

func TestDispatchUnauthenticatedDropsGameFrame(t *testing.T) {
	d, conns := newTestDispatcher(t, &fakeAuthenticator{}, &recordingDownstream{})
	c := &testConn{id: 1}
	conns.Register(c)

	d.Dispatch(context.Background(), 1, "10.0.0.1", &protocol.Frame{MessageType: 102})

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) != 1 || c.sent[0].MessageType != protocol.MsgTypeErrorUnauthorized {
		t.Fatalf("expected one unauthorized error reply, got %+v", c.sent)
	}
}

func TestDispatchAuthSuccessEvictsPriorConnAndRoutes(t *testing.T) {
	down := &recordingDownstream{}
	d, conns := newTestDispatcher(t, &fakeAuthenticator{identity: "u1", token: "tok"}, down)

	prior := &testConn{id: 1}
	next := &testConn{id: 2}
	conns.Register(prior)
	conns.Register(next)

	// Conn 1 authenticates as u1.
	d.Dispatch(context.Background(), 1, "10.0.0.1", &protocol.Frame{MessageType: 2})
	// Conn 2 authenticates as u1 too -> single-device-login evicts conn 1.
	d.Dispatch(context.Background(), 2, "10.0.0.2", &protocol.Frame{MessageType: 2})

	if !prior.Closed() {
		t.Fatalf("expected prior connection to be closed by single-device-login eviction")
	}

	// conn 2 now sends a game frame; it should route to the logic pool.
	d.Dispatch(context.Background(), 2, "10.0.0.2", &protocol.Frame{MessageType: 102})
	down.mu.Lock()
	defer down.mu.Unlock()
	if len(down.calls) != 1 || down.calls[0] != protocol.PoolLogic {
		t.Fatalf("expected one dispatch to logic pool, got %+v", down.calls)
	}
}

func TestDispatchRouteDropWhenPoolEmpty(t *testing.T) {
	down := &recordingDownstream{}
	d, conns := newTestDispatcher(t, &fakeAuthenticator{identity: "u1", token: "tok"}, down)
	c := &testConn{id: 1}
	conns.Register(c)
	d.Dispatch(context.Background(), 1, "10.0.0.1", &protocol.Frame{MessageType: 2})

	// Chat pool was never configured in newTestDispatcher's router.
	d.Dispatch(context.Background(), 1, "10.0.0.1", &protocol.Frame{MessageType: 250})

	down.mu.Lock()
	defer down.mu.Unlock()
	if len(down.calls) != 0 {
		t.Fatalf("expected no downstream dispatch for unconfigured pool, got %+v", down.calls)
	}
}

type recordingMirror struct {
	mu    sync.Mutex
	calls map[string][]byte
}

func (m *recordingMirror) Put(connID api.ConnectionID, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string][]byte)
	}
	m.calls[key] = value
	return nil
}

func TestDispatchAuthSuccessWritesThroughSessionMirror(t *testing.T) {
	down := &recordingDownstream{}
	d, conns := newTestDispatcher(t, &fakeAuthenticator{identity: "u1", token: "tok"}, down)
	mirror := &recordingMirror{}
	d.WithSessionMirror(mirror)

	c := &testConn{id: 1}
	conns.Register(c)
	d.Dispatch(context.Background(), 1, "10.0.0.1", &protocol.Frame{MessageType: 2})

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	if string(mirror.calls["u1"]) != "tok" {
		t.Fatalf("expected session mirror write for u1=tok, got %+v", mirror.calls)
	}
}
