package auth

import (
	"testing"

	"github.com/momentics/hiogate/api"
)

func TestSingleDeviceLoginEvictsPriorConn(t *testing.T) {
	r := NewRegistry()
	const c1, c2 = 1, 2

	if evicted, _ := r.Authenticate(c1, "u1", "tok1"); evicted {
		t.Fatalf("first authentication should not evict anything")
	}
	evicted, evictedConn := r.Authenticate(c2, "u1", "tok2")
	if !evicted || evictedConn != c1 {
		t.Fatalf("expected c1 evicted, got evicted=%v conn=%v", evicted, evictedConn)
	}
	if r.IsAuthenticated(c1) {
		t.Fatalf("c1 should no longer be authenticated")
	}
	conn, ok := r.LookupByIdentity("u1")
	if !ok || conn != c2 {
		t.Fatalf("identity should resolve to c2, got %v ok=%v", conn, ok)
	}
}

func TestReauthenticateSameConnDoesNotEvict(t *testing.T) {
	r := NewRegistry()
	const c1 = 1
	r.Authenticate(c1, "u1", "tok1")
	evicted, _ := r.Authenticate(c1, "u1", "tok2")
	if evicted {
		t.Fatalf("re-authenticating the same (conn, identity) should not evict")
	}
	if !r.IsAuthenticated(c1) {
		t.Fatalf("c1 should remain authenticated")
	}
}

func TestDeauthenticateRemovesBothMappings(t *testing.T) {
	r := NewRegistry()
	const c1 = 1
	r.Authenticate(c1, "u1", "tok1")
	r.Deauthenticate(c1)
	if r.IsAuthenticated(c1) {
		t.Fatalf("c1 should not be authenticated after deauthenticate")
	}
	if _, ok := r.LookupByIdentity("u1"); ok {
		t.Fatalf("identity mapping should be removed")
	}
}

func TestSnapshotCount(t *testing.T) {
	r := NewRegistry()
	r.Authenticate(1, "u1", "t")
	r.Authenticate(2, "u2", "t")
	if got := r.SnapshotCount(); got != 2 {
		t.Fatalf("expected 2 authenticated, got %d", got)
	}
}

func TestSweepEvictsRecordsForDeadConnections(t *testing.T) {
	r := NewRegistry()
	r.Authenticate(1, "u1", "t")
	r.Authenticate(2, "u2", "t")

	evicted := r.Sweep(func(conn api.ConnectionID) bool { return conn == 2 })
	if evicted != 1 {
		t.Fatalf("expected 1 stale record evicted, got %d", evicted)
	}
	if r.IsAuthenticated(1) {
		t.Fatalf("conn 1 should have been swept")
	}
	if !r.IsAuthenticated(2) {
		t.Fatalf("conn 2 should still be authenticated")
	}
	if _, ok := r.LookupByIdentity("u1"); ok {
		t.Fatalf("identity mapping for u1 should be removed")
	}
}
