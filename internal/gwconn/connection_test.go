package gwconn

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/momentics/hiogate/api"
	"github.com/momentics/hiogate/internal/gwstats"
	"github.com/momentics/hiogate/internal/nettransport"
	"github.com/momentics/hiogate/protocol"
)

func TestManagerDeliversFramesToDispatchInOrder(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	registry := NewRegistry(4)
	stats := gwstats.New()

	var received []int64
	dispatched := make(chan struct{}, 8)
	dispatch := func(ctx context.Context, connID api.ConnectionID, ip string, f *protocol.Frame) {
		received = append(received, f.Sequence)
		dispatched <- struct{}{}
	}

	cfg := DefaultConfig()
	cfg.ReadIdle = time.Second
	mgr := NewManager(1, nettransport.New(server), cfg, registry, dispatch, stats)

	done := make(chan struct{})
	go func() {
		mgr.Run(context.Background())
		close(done)
	}()

	var buf bytes.Buffer
	for i := int64(1); i <= 3; i++ {
		f := &protocol.Frame{MessageType: 102, Sequence: i, Body: []byte("x")}
		if err := protocol.Encode(&buf, f, protocol.DefaultCompressionThreshold); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	go client.Write(buf.Bytes())

	for i := 0; i < 3; i++ {
		select {
		case <-dispatched:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}

	for i, seq := range received {
		if seq != int64(i+1) {
			t.Fatalf("out-of-order delivery: %v", received)
		}
	}

	mgr.RequestClose("test_done")
	<-done
	if _, ok := registry.Lookup(1); ok {
		t.Fatalf("connection should be unregistered after close")
	}
}

func TestManagerEnqueueRejectsWhenClosed(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	registry := NewRegistry(4)
	stats := gwstats.New()
	dispatch := func(ctx context.Context, connID api.ConnectionID, ip string, f *protocol.Frame) {}
	mgr := NewManager(2, nettransport.New(server), DefaultConfig(), registry, dispatch, stats)

	mgr.RequestClose("early_close")
	if err := mgr.Enqueue(&protocol.Frame{MessageType: 1}); err != api.ErrConnClosed {
		t.Fatalf("expected ErrConnClosed, got %v", err)
	}
}

func TestManagerCloseIsIdempotent(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	registry := NewRegistry(4)
	stats := gwstats.New()
	dispatch := func(ctx context.Context, connID api.ConnectionID, ip string, f *protocol.Frame) {}
	mgr := NewManager(3, nettransport.New(server), DefaultConfig(), registry, dispatch, stats)

	mgr.RequestClose("first")
	mgr.RequestClose("second")
	if mgr.State() != api.ConnClosed {
		t.Fatalf("expected ConnClosed, got %v", mgr.State())
	}
}

func TestManagerEmitsOpenAndCloseEvents(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	registry := NewRegistry(4)
	stats := gwstats.New()
	dispatch := func(ctx context.Context, connID api.ConnectionID, ip string, f *protocol.Frame) {}
	mgr := NewManager(4, nettransport.New(server), DefaultConfig(), registry, dispatch, stats)

	events := make(chan any, 4)
	mgr.WithEvents(func(e any) { events <- e })

	done := make(chan struct{})
	go func() {
		mgr.Run(context.Background())
		close(done)
	}()

	select {
	case e := <-events:
		if _, ok := e.(api.ConnOpenEvent); !ok {
			t.Fatalf("expected ConnOpenEvent first, got %T", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ConnOpenEvent")
	}

	mgr.RequestClose("test_done")
	<-done

	select {
	case e := <-events:
		ce, ok := e.(api.ConnCloseEvent)
		if !ok || ce.Reason != "test_done" {
			t.Fatalf("expected ConnCloseEvent{Reason: test_done}, got %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ConnCloseEvent")
	}
}

func TestManagerRequestCloseInvokesAuthDeauth(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	registry := NewRegistry(4)
	stats := gwstats.New()
	dispatch := func(ctx context.Context, connID api.ConnectionID, ip string, f *protocol.Frame) {}
	mgr := NewManager(5, nettransport.New(server), DefaultConfig(), registry, dispatch, stats)

	deauthed := make(chan api.ConnectionID, 1)
	mgr.WithAuthDeauth(func(id api.ConnectionID) { deauthed <- id })

	mgr.RequestClose("test_done")

	select {
	case id := <-deauthed:
		if id != 5 {
			t.Fatalf("expected deauth for conn 5, got %v", id)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for auth deauth hook")
	}
}

func TestManagerCloseDrainsQueuedFrameBeforeTeardown(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	registry := NewRegistry(4)
	stats := gwstats.New()
	dispatch := func(ctx context.Context, connID api.ConnectionID, ip string, f *protocol.Frame) {}

	cfg := DefaultConfig()
	cfg.ShutdownDrain = 2 * time.Second
	mgr := NewManager(6, nettransport.New(server), cfg, registry, dispatch, stats)

	done := make(chan struct{})
	go func() {
		mgr.Run(context.Background())
		close(done)
	}()

	queued := &protocol.Frame{MessageType: 3, Sequence: 42, Body: []byte(`{"ok":true}`)}
	if err := mgr.Enqueue(queued); err != nil {
		t.Fatalf("enqueue before close: %v", err)
	}

	go mgr.RequestClose("drain_test")

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	total := 0
	var frames []*protocol.Frame
	for len(frames) == 0 {
		n, err := client.Read(buf[total:])
		if err != nil {
			t.Fatalf("read drained frame: %v", err)
		}
		total += n
		var decErr error
		frames, _, decErr = protocol.DecodeFrames(buf[:total])
		if decErr != nil {
			t.Fatalf("decode drained frame: %v", decErr)
		}
	}
	if frames[0].Sequence != 42 {
		t.Fatalf("expected queued frame seq 42 to survive close drain, got %+v", frames[0])
	}

	<-done
}
