// File: server/gateway.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Gateway is the unified facade encapsulating listener, connection registry,
// auth registry, rate limiter, router, and dispatcher, adapted from this
// codebase's lowlevel server facade (listener + reactor + executor + control)
// to the game-gateway's accept-loop-plus-dispatch-pipeline shape.

package server

import (
	"context"
	"errors"
	"log"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/momentics/hiogate/adapters"
	"github.com/momentics/hiogate/api"
	"github.com/momentics/hiogate/internal/auth"
	"github.com/momentics/hiogate/internal/gwconcurrency"
	"github.com/momentics/hiogate/internal/gwconn"
	"github.com/momentics/hiogate/internal/gwstats"
	"github.com/momentics/hiogate/internal/nettransport"
	"github.com/momentics/hiogate/internal/ratelimit"
	"github.com/momentics/hiogate/internal/router"
)

// ErrAlreadyRunning is returned by Run if called more than once.
var ErrAlreadyRunning = errors.New("gateway already running")

// version is reported via the service_info debug probe. Bumped by hand per
// release; not tied to a build-time ldflags injection since this module
// ships no release pipeline of its own.
const version = "0.1.0"

// Gateway is the top-level facade wiring every collaborator into a running
// TCP accept loop.
type Gateway struct {
	cfg *Config

	conns   *gwconn.Registry
	authReg *auth.Registry
	limiter *ratelimit.Limiter
	rtr     *router.Router
	disp    *router.Dispatcher
	stats   *gwstats.Stats

	idGen     gwconn.IDGenerator
	sched     *gwconcurrency.Scheduler
	executor  *adapters.ExecutorAdapter
	ctrl      *adapters.ControlAdapter
	affinity  api.Affinity
	startedAt time.Time

	listener net.Listener

	runOnce    sync.Once
	shutdownCh chan struct{}
}

// New constructs a Gateway from cfg and the injected downstream capabilities.
// authn and down are normally backed by a real identity provider and RPC
// transport to the game's logic/chat/payment pools; tests may supply stubs.
func New(cfg *Config, authn router.Authenticator, down router.Downstream) *Gateway {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	conns := gwconn.NewRegistry(cfg.ShardCount)
	authReg := auth.NewRegistry()
	limiter := ratelimit.NewLimiter(cfg.rateLimitConfig())
	rtr := router.NewRouter(cfg.Routes)
	stats := gwstats.New()

	dispCfg := router.DefaultConfig()
	dispCfg.EmitErrorFrames = cfg.EmitErrorFrames
	disp := router.NewDispatcher(dispCfg, conns, authReg, limiter, rtr, authn, down, stats)

	ctrl := adapters.NewControlAdapter()

	gw := &Gateway{
		cfg:        cfg,
		conns:      conns,
		authReg:    authReg,
		limiter:    limiter,
		rtr:        rtr,
		disp:       disp,
		stats:      stats,
		sched:      gwconcurrency.NewScheduler(),
		executor:   adapters.NewExecutorAdapter(4),
		ctrl:       ctrl,
		affinity:   adapters.NewAffinityAdapter(),
		startedAt:  time.Now(),
		shutdownCh: make(chan struct{}),
	}
	gw.registerDebugProbes()
	return gw
}

// registerDebugProbes exposes the same named-probe pattern the teacher's
// broadcast example uses (RegisterDebugProbe("active_clients", ...)),
// generalized to this gateway's own live counters.
func (g *Gateway) registerDebugProbes() {
	g.ctrl.RegisterDebugProbe("active_connections", func() any { return g.conns.ActiveCount() })
	g.ctrl.RegisterDebugProbe("authenticated_connections", func() any { return g.authReg.SnapshotCount() })
	g.ctrl.RegisterDebugProbe("rate_buckets", func() any {
		ip, ident := g.limiter.BucketCounts()
		return map[string]int{"ip": ip, "identity": ident}
	})
	g.ctrl.RegisterDebugProbe("route_health", func() any { return g.rtr.HealthSummary() })
	g.ctrl.RegisterDebugProbe("service_info", func() any {
		return api.ServiceInfo{Name: "hiogate", Version: version, StartedAt: g.startedAt}
	})
}

// GetControl exposes the admin control surface (config snapshot, metrics,
// debug probes), mirroring the teacher's Server.GetControl() facade method.
func (g *Gateway) GetControl() api.Control { return g.ctrl }

// WithSessionMirror attaches an optional write-through session mirror to
// the dispatcher; see router.SessionMirror for the contract. Must be called
// before Run.
func (g *Gateway) WithSessionMirror(m router.SessionMirror) *Gateway {
	g.disp.WithSessionMirror(m)
	return g
}

// Stats exposes the running counters, for the admin metrics server.
func (g *Gateway) Stats() *gwstats.Stats { return g.stats }

// connInfo assembles the live registry/limiter counts the Stats snapshot
// needs but doesn't own.
func (g *Gateway) connInfo() gwstats.ConnInfo {
	ipCount, identCount := g.limiter.BucketCounts()
	return gwstats.ConnInfo{
		Active:          g.conns.ActiveCount(),
		Total:           g.conns.TotalAccepted(),
		Authenticated:   g.authReg.SnapshotCount(),
		BucketsIP:       ipCount,
		BucketsIdentity: identCount,
	}
}

// Run binds the listener, starts background jobs (rate-limiter sweep,
// health checks), and blocks accepting connections until Shutdown is called
// or ctx is canceled.
func (g *Gateway) Run(ctx context.Context) error {
	var runErr error
	started := false
	g.runOnce.Do(func() {
		started = true
		ln, err := net.Listen("tcp", g.cfg.ListenAddr)
		if err != nil {
			runErr = err
			return
		}
		g.listener = ln
	})
	if !started {
		return ErrAlreadyRunning
	}
	if runErr != nil {
		return runErr
	}

	health := router.NewHealthChecker(g.rtr, g.cfg.HealthCheckInterval)
	healthCtx, cancelHealth := context.WithCancel(ctx)
	defer cancelHealth()
	go health.Run(healthCtx)

	// Maintenance jobs run on the scheduler's ticks but execute on the
	// background executor pool, off the driver goroutine, per the
	// "small pool of worker tasks servicing... background timer tasks"
	// scheduling model (spec §5).
	if _, err := g.sched.ScheduleEvery(int64(60*time.Second), func() {
		if err := g.executor.Submit(g.limiter.Sweep); err != nil {
			log.Printf("gateway: rate-limiter sweep submit failed: %v", err)
		}
	}); err != nil {
		log.Printf("gateway: failed to schedule rate-limiter sweep: %v", err)
	}

	if _, err := g.sched.ScheduleEvery(int64(60*time.Second), func() {
		task := func() {
			isLive := func(id api.ConnectionID) bool {
				_, ok := g.conns.Lookup(id)
				return ok
			}
			if evicted := g.authReg.Sweep(isLive); evicted > 0 {
				log.Printf("gateway: auth sweep reconciled %d stale record(s)", evicted)
			}
		}
		if err := g.executor.Submit(task); err != nil {
			log.Printf("gateway: auth sweep submit failed: %v", err)
		}
	}); err != nil {
		log.Printf("gateway: failed to schedule auth sweep: %v", err)
	}

	if _, err := g.sched.ScheduleEvery(int64(time.Minute), func() {
		task := func() {
			snap := g.stats.Snapshot(g.connInfo())
			log.Printf("gateway: stats active=%d authed=%d frames_in=%d frames_out=%d",
				snap.Connections.Active, snap.Auth.Authenticated, snap.Frames.In, snap.Frames.Out)
		}
		if err := g.executor.Submit(task); err != nil {
			log.Printf("gateway: stats emission submit failed: %v", err)
		}
	}); err != nil {
		log.Printf("gateway: failed to schedule stats emission: %v", err)
	}

	go g.acceptLoop()

	select {
	case <-ctx.Done():
	case <-g.shutdownCh:
	}
	return g.shutdown()
}

// Shutdown signals Run to stop accepting and begin graceful teardown.
func (g *Gateway) Shutdown() {
	select {
	case <-g.shutdownCh:
	default:
		close(g.shutdownCh)
	}
}

// acceptLoop runs the accept socket's blocking Accept loop. When the
// optional listen.cpu_affinity config is set, it locks this goroutine to
// its OS thread and pins that thread to the configured CPU, generalizing
// the teacher's ListenerConfig.WorkerCPUs hook from a WebSocket listener
// to this gateway's accept loop.
func (g *Gateway) acceptLoop() {
	if g.cfg.AcceptCPU >= 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := g.affinity.Pin(g.cfg.AcceptCPU); err != nil {
			log.Printf("gateway: cpu affinity pin to %d failed: %v", g.cfg.AcceptCPU, err)
		}
	}

	for {
		conn, err := g.listener.Accept()
		if err != nil {
			select {
			case <-g.shutdownCh:
				return
			default:
				log.Printf("gateway: accept error: %v", err)
				return
			}
		}

		if g.cfg.MaxConnections > 0 && g.conns.ActiveCount() >= int64(g.cfg.MaxConnections) {
			_ = conn.Close()
			continue
		}

		go g.handleConn(conn)
	}
}

func (g *Gateway) handleConn(raw net.Conn) {
	id := g.idGen.Next()
	tr := nettransport.New(raw)

	mgrCfg := gwconn.DefaultConfig()
	mgrCfg.ReadIdle = g.cfg.ReadIdleTimeout
	mgrCfg.WriteIdle = g.cfg.WriteIdleTimeout
	mgrCfg.CompressThreshold = g.cfg.CompressThreshold

	mgr := gwconn.NewManager(id, tr, mgrCfg, g.conns, g.disp.Dispatch, g.stats)
	mgr.WithEvents(g.logConnEvent)
	mgr.WithAuthDeauth(g.authReg.Deauthenticate)
	mgr.Run(context.Background())
}

// logConnEvent is the default lifecycle-event sink wired into every
// connection's Manager, surfacing api.ConnOpenEvent/ConnCloseEvent as
// structured log lines for operators tailing the gateway's log stream.
func (g *Gateway) logConnEvent(event any) {
	switch e := event.(type) {
	case api.ConnOpenEvent:
		log.Printf("gateway: conn %d opened from %s", e.ConnID, e.RemoteAddr)
	case api.ConnCloseEvent:
		log.Printf("gateway: conn %d closed (%s)", e.ConnID, e.Reason)
	}
}

// shutdown closes the listener, signals every live connection to close, and
// waits up to cfg.ShutdownTimeout for the drain to finish before returning.
func (g *Gateway) shutdown() error {
	if g.listener != nil {
		_ = g.listener.Close()
	}

	drained := make(chan struct{})
	go func() {
		g.conns.CloseAll("server_shutdown")
		close(drained)
	}()

	timer := time.NewTimer(g.cfg.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		log.Printf("gateway: shutdown drain deadline (%s) exceeded with %d connections still active", g.cfg.ShutdownTimeout, g.conns.ActiveCount())
	}

	g.sched.Close()
	g.executor.Close()
	return nil
}
