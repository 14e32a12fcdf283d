package pool

import "testing"

func TestSizeClassPoolGetPutRoundTrip(t *testing.T) {
	p := NewSizeClassPool()

	b := p.Get(1000)
	if len(b.Bytes()) != 1000 {
		t.Fatalf("expected 1000-byte buffer, got %d", len(b.Bytes()))
	}
	stats := p.Stats()
	if stats.InUse != 1 {
		t.Fatalf("expected 1 buffer in use, got %d", stats.InUse)
	}

	b.Release()
	stats = p.Stats()
	if stats.InUse != 0 {
		t.Fatalf("expected 0 buffers in use after release, got %d", stats.InUse)
	}

	reused := p.Get(1000)
	if len(reused.Bytes()) != 1000 {
		t.Fatalf("expected reused buffer of 1000 bytes, got %d", len(reused.Bytes()))
	}
}

func TestSizeClassPoolOversizeRequestNotPooled(t *testing.T) {
	p := NewSizeClassPool()
	b := p.Get(1 << 25) // bigger than the largest class
	if b.Class != -1 {
		t.Fatalf("expected unpooled class for oversize request, got %d", b.Class)
	}
	b.Release()
}

func TestDefaultPoolIsSingleton(t *testing.T) {
	a := DefaultPool()
	b := DefaultPool()
	if a != b {
		t.Fatalf("expected DefaultPool to return the same instance")
	}
}
