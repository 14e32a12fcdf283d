package gwconn

import (
	"sync"
	"testing"

	"github.com/momentics/hiogate/api"
	"github.com/momentics/hiogate/protocol"
)

type fakeConn struct {
	id     api.ConnectionID
	mu     sync.Mutex
	queue  []*protocol.Frame
	full   bool
	closed bool
}

func (f *fakeConn) ID() api.ConnectionID  { return f.id }
func (f *fakeConn) RemoteAddr() string    { return "127.0.0.1:0" }
func (f *fakeConn) Closed() bool          { f.mu.Lock(); defer f.mu.Unlock(); return f.closed }
func (f *fakeConn) RequestClose(reason string) {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
func (f *fakeConn) Enqueue(fr *protocol.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.full {
		return ErrQueueFull
	}
	f.queue = append(f.queue, fr)
	return nil
}

func TestRegistryRegisterLookupUnregister(t *testing.T) {
	r := NewRegistry(4)
	c := &fakeConn{id: 1}
	r.Register(c)

	got, ok := r.Lookup(1)
	if !ok || got.ID() != 1 {
		t.Fatalf("expected to find conn 1")
	}
	if r.ActiveCount() != 1 {
		t.Fatalf("expected active count 1, got %d", r.ActiveCount())
	}

	r.Unregister(1)
	if _, ok := r.Lookup(1); ok {
		t.Fatalf("conn 1 should be gone after unregister")
	}
	if r.ActiveCount() != 0 {
		t.Fatalf("expected active count 0 after unregister")
	}

	// Idempotent unregister on an absent id.
	r.Unregister(1)
}

func TestRegistrySendErrors(t *testing.T) {
	r := NewRegistry(4)
	if err := r.Send(99, &protocol.Frame{}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	c := &fakeConn{id: 1, full: true}
	r.Register(c)
	if err := r.Send(1, &protocol.Frame{}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	c.full = false
	if err := r.Send(1, &protocol.Frame{MessageType: 7}); err != nil {
		t.Fatalf("expected successful send, got %v", err)
	}
}

func TestRegistryBroadcastCountsOnlyLive(t *testing.T) {
	r := NewRegistry(4)
	c1 := &fakeConn{id: 1}
	c2 := &fakeConn{id: 2}
	c3 := &fakeConn{id: 3, closed: true}
	r.Register(c1)
	r.Register(c2)
	r.Register(c3)

	n := r.Broadcast(&protocol.Frame{MessageType: 1})
	if n != 2 {
		t.Fatalf("expected 2 delivered, got %d", n)
	}
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry(4)
	c1 := &fakeConn{id: 1}
	c2 := &fakeConn{id: 2}
	r.Register(c1)
	r.Register(c2)

	r.CloseAll("shutdown")
	if !c1.Closed() || !c2.Closed() {
		t.Fatalf("expected all connections requested to close")
	}
}
