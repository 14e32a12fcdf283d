// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Gateway configuration: the flat key layout matches the admin/hot-reload
// config store conventions used elsewhere in this codebase, adapted from
// transport/NUMA tunables to the game-gateway's listen, limit, timeout,
// frame, and route settings.

package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/momentics/hiogate/internal/ratelimit"
	"github.com/momentics/hiogate/protocol"
)

// Config carries every tunable the gateway process needs at startup.
type Config struct {
	ListenAddr string

	MaxConnections int
	GlobalQPS      float64
	GlobalBurst    float64
	RefillPeriod   time.Duration

	ReadIdleTimeout  time.Duration
	WriteIdleTimeout time.Duration
	ShutdownTimeout  time.Duration

	MaxBodyBytes       int
	CompressThreshold  int

	// Routes maps a downstream pool name to its endpoint address list,
	// keyed by protocol.PoolID ("logic", "chat", "payment").
	Routes map[protocol.PoolID][]string

	HealthCheckInterval time.Duration

	ShardCount int

	// AdminAddr, when non-empty, serves the GET /metrics admin endpoint.
	AdminAddr string

	EmitErrorFrames bool

	// AcceptCPU, when >= 0, pins the accept-loop goroutine's OS thread to
	// that CPU (listen.cpu_affinity). Disabled (-1) by default; unsupported
	// platforms degrade to a logged no-op rather than failing startup.
	AcceptCPU int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: "0.0.0.0:8090",

		MaxConnections: 100000,
		GlobalQPS:      10000,
		GlobalBurst:    20000,
		RefillPeriod:   time.Second,

		ReadIdleTimeout:  60 * time.Second,
		WriteIdleTimeout: 30 * time.Second,
		ShutdownTimeout:  30 * time.Second,

		MaxBodyBytes:      protocol.MaxBodyBytes,
		CompressThreshold: protocol.DefaultCompressionThreshold,

		Routes: map[protocol.PoolID][]string{},

		HealthCheckInterval: 30 * time.Second,

		ShardCount: 16,

		AdminAddr: ":8080",

		EmitErrorFrames: true,

		AcceptCPU: -1,
	}
}

// rateLimitConfig derives the ratelimit package's Config from the gateway's
// flat GlobalQPS/GlobalBurst settings.
func (c *Config) rateLimitConfig() ratelimit.Config {
	return ratelimit.Config{GlobalQPS: c.GlobalQPS, GlobalBurst: c.GlobalBurst}
}

// ApplyEnv overrides c's fields from environment variables named after the
// flat `listen.addr`-style keys from spec §6: GATEWAY_ prefixed, upper case,
// dots replaced with underscores, with the section prefix dropped for the
// limits, timeouts, frame and listen.cpu_affinity keys (GATEWAY_GLOBAL_QPS
// for limits.global_qps, GATEWAY_CPU_AFFINITY for listen.cpu_affinity) —
// the same override layer the teacher's control.ConfigStore hot-reload path
// feeds from. Unset or unparsable
// variables leave the existing value untouched.
func (c *Config) ApplyEnv() {
	if v, ok := lookupEnv("GATEWAY_LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := lookupEnv("GATEWAY_ADMIN_ADDR"); ok {
		c.AdminAddr = v
	}
	if v, ok := lookupEnvInt("GATEWAY_MAX_CONNECTIONS"); ok {
		c.MaxConnections = v
	}
	if v, ok := lookupEnvFloat("GATEWAY_GLOBAL_QPS"); ok {
		c.GlobalQPS = v
	}
	if v, ok := lookupEnvFloat("GATEWAY_GLOBAL_BURST"); ok {
		c.GlobalBurst = v
	}
	if v, ok := lookupEnvInt("GATEWAY_READ_IDLE_SEC"); ok {
		c.ReadIdleTimeout = time.Duration(v) * time.Second
	}
	if v, ok := lookupEnvInt("GATEWAY_WRITE_IDLE_SEC"); ok {
		c.WriteIdleTimeout = time.Duration(v) * time.Second
	}
	if v, ok := lookupEnvInt("GATEWAY_SHUTDOWN_SEC"); ok {
		c.ShutdownTimeout = time.Duration(v) * time.Second
	}
	if v, ok := lookupEnvInt("GATEWAY_MAX_BODY_BYTES"); ok {
		c.MaxBodyBytes = v
	}
	if v, ok := lookupEnvInt("GATEWAY_COMPRESS_THRESHOLD"); ok {
		c.CompressThreshold = v
	}
	if v, ok := lookupEnvInt("GATEWAY_CPU_AFFINITY"); ok {
		c.AcceptCPU = v
	}
	for class, key := range map[string]string{
		"logic":   "GATEWAY_ROUTES_LOGIC",
		"chat":    "GATEWAY_ROUTES_CHAT",
		"payment": "GATEWAY_ROUTES_PAYMENT",
	} {
		if v, ok := lookupEnv(key); ok && v != "" {
			addrs := make([]string, 0)
			for _, a := range strings.Split(v, ",") {
				if a = strings.TrimSpace(a); a != "" {
					addrs = append(addrs, a)
				}
			}
			c.Routes[protocol.PoolID(class)] = addrs
		}
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func lookupEnvInt(key string) (int, bool) {
	v, ok := lookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupEnvFloat(key string) (float64, bool) {
	v, ok := lookupEnv(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
