// File: cmd/gateway/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Entry point for the game gateway process: flag parsing, signal handling,
// and facade wiring, following this codebase's example-binary conventions
// (flag.String for listen address, os/signal for graceful shutdown).

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/momentics/hiogate/api"
	"github.com/momentics/hiogate/control"
	"github.com/momentics/hiogate/protocol"
	"github.com/momentics/hiogate/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "0.0.0.0:8090", "gateway listen address")
	adminAddr := flag.String("admin-addr", ":8080", "admin metrics listen address")
	maxConns := flag.Int("max-connections", 100000, "maximum concurrent connections")
	globalQPS := flag.Float64("global-qps", 10000, "global rate limit, frames/sec")
	globalBurst := flag.Float64("global-burst", 20000, "global rate limit burst capacity")
	shutdownSec := flag.Int("shutdown-sec", 30, "graceful shutdown drain deadline, seconds")
	logicEndpoints := flag.String("logic-endpoints", "", "comma-separated logic pool addresses")
	chatEndpoints := flag.String("chat-endpoints", "", "comma-separated chat pool addresses")
	paymentEndpoints := flag.String("payment-endpoints", "", "comma-separated payment pool addresses")
	flag.Parse()

	cfg := server.DefaultConfig()
	cfg.ListenAddr = *addr
	cfg.AdminAddr = *adminAddr
	cfg.MaxConnections = *maxConns
	cfg.GlobalQPS = *globalQPS
	cfg.GlobalBurst = *globalBurst
	cfg.ShutdownTimeout = time.Duration(*shutdownSec) * time.Second
	cfg.Routes = map[protocol.PoolID][]string{
		protocol.PoolLogic:   splitAddrs(*logicEndpoints),
		protocol.PoolChat:    splitAddrs(*chatEndpoints),
		protocol.PoolPayment: splitAddrs(*paymentEndpoints),
	}
	// Environment overrides take precedence over flags, mirroring the
	// teacher's hot-reload config layering (env/file over compiled default).
	cfg.ApplyEnv()

	control.RegisterReloadHook(func() {
		fmt.Println("gateway: admin config reload applied")
	})

	gw := server.New(cfg, &stubAuthenticator{}, &stubDownstream{})
	metrics := server.NewMetricsServer(gw, cfg.AdminAddr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- gw.Run(ctx) }()
	go func() { errCh <- metrics.Run(ctx) }()

	fmt.Printf("gateway listening on %s (admin %s)\n", *addr, *adminAddr)

	// Wait for either a shutdown signal or one of the components exiting on
	// its own — the latter only happens on a fatal startup error (e.g. a
	// bind failure from net.Listen), since both Run methods otherwise block
	// until ctx is canceled. Selecting here, rather than going straight to
	// <-ctx.Done(), is what lets that failure reach an exit code instead of
	// hanging forever waiting for a signal that will never come.
	select {
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "gateway: fatal startup error: %v\n", err)
		return 1
	case <-ctx.Done():
	}
	fmt.Println("gateway: shutdown signal received, draining...")

	drainDeadline := time.After(cfg.ShutdownTimeout + 5*time.Second)
	for i := 0; i < 2; i++ {
		select {
		case err := <-errCh:
			if err != nil {
				fmt.Fprintf(os.Stderr, "gateway: component exited with error: %v\n", err)
			}
		case <-drainDeadline:
			fmt.Fprintln(os.Stderr, "gateway: shutdown drain deadline exceeded")
			return 2
		}
	}
	return 0
}

func splitAddrs(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stubAuthenticator accepts every system/auth frame, treating the frame
// body verbatim as the identity and issuing a fixed token. Real deployments
// inject an Authenticator backed by the account service.
type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(ctx context.Context, body []byte) (identity, token string, err error) {
	identity = strings.TrimSpace(string(body))
	if identity == "" {
		identity = "anonymous"
	}
	return identity, "dev-token", nil
}

// stubDownstream logs every forwarded frame instead of dialing a real
// logic/chat/payment pool. Real deployments inject a Downstream backed by
// the game server RPC transport.
type stubDownstream struct{}

func (stubDownstream) Send(ctx context.Context, pool protocol.PoolID, endpoint string, connID api.ConnectionID, frame *protocol.Frame) error {
	fmt.Printf("gateway: forward conn %d type %d -> %s (%s)\n", connID, frame.MessageType, pool, endpoint)
	return nil
}
