package adapters_test

import (
	"testing"
	"time"

	"github.com/momentics/hiogate/adapters"
)

func TestControlAdapterBasic(t *testing.T) {
	ctrl := adapters.NewControlAdapter()
	cfg := ctrl.GetConfig()
	if len(cfg) != 0 {
		t.Fatalf("expected empty config on init, got %+v", cfg)
	}

	if err := ctrl.SetConfig(map[string]any{"listen.addr": ":7000"}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if got := ctrl.GetConfig()["listen.addr"]; got != ":7000" {
		t.Fatalf("SetConfig did not apply, got %v", got)
	}

	reloaded := make(chan struct{}, 1)
	ctrl.OnReload(func() { reloaded <- struct{}{} })
	if err := ctrl.SetConfig(map[string]any{"limits.global_qps": 5000}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatal("reload hook not invoked within 1s")
	}
}

func TestControlAdapterDebugProbesSurfaceInStats(t *testing.T) {
	ctrl := adapters.NewControlAdapter()
	ctrl.RegisterDebugProbe("active_connections", func() any { return 7 })

	stats := ctrl.Stats()
	if got := stats["debug.active_connections"]; got != 7 {
		t.Fatalf("expected debug probe value 7, got %v", got)
	}
	if _, ok := stats["debug.platform.cpus"]; !ok {
		t.Fatalf("expected platform probes pre-registered, got %+v", stats)
	}
}
