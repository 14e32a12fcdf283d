// File: internal/gwconn/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection manager (C5): owns the Connection value exclusively (C2/C3
// hold only its ConnectionID, never a back-reference, per the cyclic-graph
// design note) and runs its reader and writer loops plus the idle watchdog
// and close cascade. Grounded on the channel-based inbox/outbox plus atomic
// closed-flag idiom used by this codebase's full-duplex connection type,
// adapted from framed WebSocket I/O to the streaming game-frame codec.

package gwconn

import (
	"context"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hiogate/api"
	"github.com/momentics/hiogate/internal/gwstats"
	"github.com/momentics/hiogate/pool"
	"github.com/momentics/hiogate/protocol"
)

// DispatchFunc is the injected per-frame handling capability — normally
// router.Dispatcher.Dispatch — kept as a function value rather than an
// imported type so this package never depends on the router package that
// itself depends on gwconn.Registry.
type DispatchFunc func(ctx context.Context, connID api.ConnectionID, remoteIP string, frame *protocol.Frame)

// Config carries the Manager's tunables, matching spec §6 defaults.
type Config struct {
	ReadIdle           time.Duration
	WriteIdle          time.Duration
	ShutdownDrain      time.Duration
	OutboundQueueSize  int
	CompressThreshold  int
	ReadBufferSize     int
}

// DefaultConfig returns the spec's default timeouts and sizing.
func DefaultConfig() Config {
	return Config{
		ReadIdle:          60 * time.Second,
		WriteIdle:         30 * time.Second,
		ShutdownDrain:     2 * time.Second,
		OutboundQueueSize: 256,
		CompressThreshold: protocol.DefaultCompressionThreshold,
		ReadBufferSize:    64 * 1024,
	}
}

// IDGenerator hands out monotonically increasing, never-reused connection
// IDs for the lifetime of the process (invariant I5).
type IDGenerator struct{ next uint64 }

// Next returns the next ConnectionID.
func (g *IDGenerator) Next() api.ConnectionID {
	return api.ConnectionID(atomic.AddUint64(&g.next, 1))
}

// Manager is the per-connection state machine and I/O owner (C5).
type Manager struct {
	id         api.ConnectionID
	transport  api.Transport
	remoteIP   string
	remoteAddr string
	cfg        Config

	registry *Registry
	dispatch DispatchFunc
	stats    *gwstats.Stats
	onEvent  func(event any)
	deauth   func(id api.ConnectionID)

	outbox chan *protocol.Frame

	state      atomic.Int32
	closeOnce  sync.Once
	closing    atomic.Bool
	closed     atomic.Bool
	closeDone  chan struct{}
}

// WithEvents attaches an optional lifecycle-event sink, delivered
// ConnOpenEvent on Run and ConnCloseEvent on the close cascade. Must be
// called before Run. A nil sink (the default) disables event delivery.
func (m *Manager) WithEvents(sink func(event any)) *Manager {
	m.onEvent = sink
	return m
}

// WithAuthDeauth attaches the C3 auth-registry deauthentication hook,
// normally auth.Registry.Deauthenticate, invoked synchronously during the
// close cascade (spec §4.5c, "unregisters from C2 and C3") so a connection's
// AuthInfo doesn't outlive it by as much as a periodic sweep interval. A nil
// hook (the default) leaves deauthentication to the registry's own sweep.
// Must be called before Run.
func (m *Manager) WithAuthDeauth(deauth func(id api.ConnectionID)) *Manager {
	m.deauth = deauth
	return m
}

// NewManager constructs a connection manager bound to an accepted transport.
// It does not start any loops — call Run for that.
func NewManager(id api.ConnectionID, tr api.Transport, cfg Config, registry *Registry, dispatch DispatchFunc, stats *gwstats.Stats) *Manager {
	m := &Manager{
		id:        id,
		transport: tr,
		cfg:       cfg,
		registry:  registry,
		dispatch:  dispatch,
		stats:     stats,
		outbox:    make(chan *protocol.Frame, cfg.OutboundQueueSize),
		closeDone: make(chan struct{}),
	}
	m.remoteAddr = tr.RemoteAddr()
	if host, _, err := net.SplitHostPort(m.remoteAddr); err == nil {
		m.remoteIP = host
	} else {
		m.remoteIP = m.remoteAddr
	}
	m.state.Store(int32(api.ConnCreated))
	return m
}

// ID implements Conn.
func (m *Manager) ID() api.ConnectionID { return m.id }

// RemoteAddr implements Conn.
func (m *Manager) RemoteAddr() string { return m.remoteAddr }

// Closed implements Conn.
func (m *Manager) Closed() bool { return m.closed.Load() }

// State reports the current connection lifecycle state.
func (m *Manager) State() api.ConnState { return api.ConnState(m.state.Load()) }

// SetAuthed transitions ACTIVE -> AUTHED. A no-op if already AUTHED or
// beyond.
func (m *Manager) SetAuthed() {
	m.state.CompareAndSwap(int32(api.ConnActive), int32(api.ConnAuthed))
}

// Enqueue implements Conn: a non-blocking append to the bounded outbound
// queue. Returns api.ErrQueueFull if the writer can't keep up.
func (m *Manager) Enqueue(f *protocol.Frame) error {
	if m.closing.Load() {
		return api.ErrConnClosed
	}
	select {
	case m.outbox <- f:
		return nil
	default:
		return api.ErrQueueFull
	}
}

// Run registers the connection, transitions it to ACTIVE, and blocks running
// the reader and writer loops until the connection closes.
func (m *Manager) Run(ctx context.Context) {
	m.registry.Register(m)
	m.stats.IncAccepted()
	m.state.Store(int32(api.ConnActive))
	if m.onEvent != nil {
		m.onEvent(api.ConnOpenEvent{ConnID: m.id, RemoteAddr: m.remoteAddr})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); m.readLoop(ctx) }()
	go func() { defer wg.Done(); m.writeLoop() }()
	wg.Wait()
}

// RequestClose implements Conn: triggers the close cascade exactly once, per
// spec §4.5: (a) stop admitting new work, (b) drain the writer with a
// bounded deadline so a reply already queued (auth-ok, error frame) isn't
// silently dropped, (c) tear down the transport, then deauthenticate from C3
// and unregister from C2.
func (m *Manager) RequestClose(reason string) {
	m.closeOnce.Do(func() {
		m.state.Store(int32(api.ConnClosing))
		m.closing.Store(true)
		// Closing closeDone here, before the drain, is what tells writeLoop
		// to stop servicing m.outbox so drainOutbox becomes its sole reader.
		close(m.closeDone)

		m.drainOutbox()

		_ = m.transport.Close()
		m.closed.Store(true)

		if m.deauth != nil {
			m.deauth(m.id)
		}
		m.registry.Unregister(m.id)
		m.state.Store(int32(api.ConnClosed))
		m.stats.IncClosed()
		if m.onEvent != nil {
			m.onEvent(api.ConnCloseEvent{ConnID: m.id, Reason: reason})
		}
	})
}

// drainOutbox flushes frames already queued in the outbound buffer at close
// time, bounded by cfg.ShutdownDrain (spec §4.5b's default 2s). Returns as
// soon as the queue runs dry rather than waiting out the full deadline.
func (m *Manager) drainOutbox() {
	deadline := time.NewTimer(m.cfg.ShutdownDrain)
	defer deadline.Stop()
	for {
		select {
		case f, ok := <-m.outbox:
			if !ok {
				return
			}
			if err := m.transport.SetWriteDeadline(time.Now().Add(m.cfg.ShutdownDrain)); err != nil {
				return
			}
			w := &frameWriter{t: m.transport}
			if err := protocol.Encode(w, f, m.cfg.CompressThreshold); err != nil {
				return
			}
			m.stats.IncFramesOut()
			m.stats.AddBytesOut(w.written)
		case <-deadline.C:
			return
		default:
			return
		}
	}
}

func (m *Manager) readLoop(ctx context.Context) {
	buf := make([]byte, 0, m.cfg.ReadBufferSize)
	chunkBuf := pool.DefaultPool().Get(m.cfg.ReadBufferSize)
	defer chunkBuf.Release()
	chunk := chunkBuf.Bytes()

	for {
		if m.closed.Load() {
			return
		}
		if err := m.transport.SetReadDeadline(time.Now().Add(m.cfg.ReadIdle)); err != nil {
			m.RequestClose("set_read_deadline_failed")
			return
		}

		n, err := m.transport.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			m.stats.AddBytesIn(n)
		}
		if err != nil {
			m.RequestClose("read_error")
			return
		}

		frames, consumed, decErr := protocol.DecodeFrames(buf)
		for _, f := range frames {
			m.stats.IncFramesIn()
			m.dispatch(ctx, m.id, m.remoteIP, f)
		}
		if consumed > 0 {
			buf = append(buf[:0], buf[consumed:]...)
		}
		if decErr != nil {
			log.Printf("gwconn: conn %d codec error: %v", m.id, decErr)
			switch decErr {
			case protocol.ErrOversize:
				m.stats.IncDropped(gwstats.DropOversize)
			default:
				m.stats.IncDropped(gwstats.DropMalformed)
			}
			m.RequestClose("codec_error")
			return
		}
	}
}

func (m *Manager) writeLoop() {
	idleTimer := time.NewTimer(m.cfg.WriteIdle)
	defer idleTimer.Stop()

	for {
		select {
		case <-m.closeDone:
			return
		case f, ok := <-m.outbox:
			if !ok {
				return
			}
			m.writeFrame(f)
			if !idleTimer.Stop() {
				<-idleTimer.C
			}
			idleTimer.Reset(m.cfg.WriteIdle)
		case <-idleTimer.C:
			heartbeat := &protocol.Frame{
				MessageType: protocol.MsgTypeHeartbeat,
				TimestampMs: time.Now().UnixMilli(),
			}
			m.writeFrame(heartbeat)
			idleTimer.Reset(m.cfg.WriteIdle)
		}
	}
}

func (m *Manager) writeFrame(f *protocol.Frame) {
	if err := m.transport.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		m.RequestClose("set_write_deadline_failed")
		return
	}
	w := &frameWriter{t: m.transport}
	if err := protocol.Encode(w, f, m.cfg.CompressThreshold); err != nil {
		m.RequestClose("write_error")
		return
	}
	m.stats.IncFramesOut()
	m.stats.AddBytesOut(w.written)
}

// frameWriter adapts api.Transport.Write to io.Writer while tracking bytes
// written, for the outbound byte counter.
type frameWriter struct {
	t       api.Transport
	written int
}

func (w *frameWriter) Write(p []byte) (int, error) {
	n, err := w.t.Write(p)
	w.written += n
	return n, err
}

var _ Conn = (*Manager)(nil)
