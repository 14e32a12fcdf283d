// File: internal/gwstats/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Atomic counters backing the admin metrics snapshot (spec §6). All counters
// are monotonic u64 and updated with atomic adds, per the concurrency
// model's shared-resource policy.

package gwstats

import (
	"sync/atomic"
	"time"
)

// Stats holds the gateway's running counters.
type Stats struct {
	startedAt time.Time

	accepted uint64
	closed   uint64

	framesIn  uint64
	framesOut uint64

	droppedMalformed uint64
	droppedOversize  uint64
	droppedAuth      uint64
	droppedRate      uint64
	droppedRoute     uint64

	bytesIn  uint64
	bytesOut uint64
}

// New constructs a Stats instance with StartedAt set to now.
func New() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) IncAccepted()      { atomic.AddUint64(&s.accepted, 1) }
func (s *Stats) IncClosed()        { atomic.AddUint64(&s.closed, 1) }
func (s *Stats) IncFramesIn()      { atomic.AddUint64(&s.framesIn, 1) }
func (s *Stats) IncFramesOut()     { atomic.AddUint64(&s.framesOut, 1) }
func (s *Stats) AddBytesIn(n int)  { atomic.AddUint64(&s.bytesIn, uint64(n)) }
func (s *Stats) AddBytesOut(n int) { atomic.AddUint64(&s.bytesOut, uint64(n)) }

// DropReason enumerates the drop counters the dispatcher and codec attribute
// failures to.
type DropReason int

const (
	DropMalformed DropReason = iota
	DropOversize
	DropAuth
	DropRate
	DropRoute
)

// IncDropped increments the counter for reason.
func (s *Stats) IncDropped(reason DropReason) {
	switch reason {
	case DropMalformed:
		atomic.AddUint64(&s.droppedMalformed, 1)
	case DropOversize:
		atomic.AddUint64(&s.droppedOversize, 1)
	case DropAuth:
		atomic.AddUint64(&s.droppedAuth, 1)
	case DropRate:
		atomic.AddUint64(&s.droppedRate, 1)
	case DropRoute:
		atomic.AddUint64(&s.droppedRoute, 1)
	}
}

// ConnectionsSnapshot, FramesSnapshot, etc. mirror the JSON shape of the
// admin metrics endpoint (spec §6) so server/metrics_http.go can marshal
// Snapshot() directly.
type ConnectionsSnapshot struct {
	Active int64 `json:"active"`
	Total  int64 `json:"total"`
}

type DroppedSnapshot struct {
	Malformed uint64 `json:"malformed"`
	Oversize  uint64 `json:"oversize"`
	Auth      uint64 `json:"auth"`
	Rate      uint64 `json:"rate"`
	Route     uint64 `json:"route"`
}

type FramesSnapshot struct {
	In      uint64          `json:"in"`
	Out     uint64          `json:"out"`
	Dropped DroppedSnapshot `json:"dropped"`
}

type BytesSnapshot struct {
	In  uint64 `json:"in"`
	Out uint64 `json:"out"`
}

type AuthSnapshot struct {
	Authenticated int `json:"authenticated"`
}

type RateSnapshot struct {
	BucketsIP       int    `json:"buckets_ip"`
	BucketsIdentity int    `json:"buckets_identity"`
	Rejected        uint64 `json:"rejected"`
}

// Snapshot is the full admin metrics payload.
type Snapshot struct {
	Connections ConnectionsSnapshot `json:"connections"`
	Frames      FramesSnapshot      `json:"frames"`
	Bytes       BytesSnapshot       `json:"bytes"`
	Auth        AuthSnapshot        `json:"auth"`
	Rate        RateSnapshot        `json:"rate"`
	UptimeSec   int64               `json:"uptime_sec"`
}

// ConnInfo supplies the live connection/auth counts the Stats struct doesn't
// own directly (C2/C3 are the source of truth for those).
type ConnInfo struct {
	Active        int64
	Total         int64
	Authenticated int
	BucketsIP     int
	BucketsIdentity int
}

// Snapshot assembles the admin metrics payload from the atomic counters plus
// caller-supplied live registry/limiter counts.
func (s *Stats) Snapshot(conn ConnInfo) Snapshot {
	rejected := atomic.LoadUint64(&s.droppedRate)
	return Snapshot{
		Connections: ConnectionsSnapshot{Active: conn.Active, Total: conn.Total},
		Frames: FramesSnapshot{
			In:  atomic.LoadUint64(&s.framesIn),
			Out: atomic.LoadUint64(&s.framesOut),
			Dropped: DroppedSnapshot{
				Malformed: atomic.LoadUint64(&s.droppedMalformed),
				Oversize:  atomic.LoadUint64(&s.droppedOversize),
				Auth:      atomic.LoadUint64(&s.droppedAuth),
				Rate:      atomic.LoadUint64(&s.droppedRate),
				Route:     atomic.LoadUint64(&s.droppedRoute),
			},
		},
		Bytes: BytesSnapshot{
			In:  atomic.LoadUint64(&s.bytesIn),
			Out: atomic.LoadUint64(&s.bytesOut),
		},
		Auth: AuthSnapshot{Authenticated: conn.Authenticated},
		Rate: RateSnapshot{
			BucketsIP:       conn.BucketsIP,
			BucketsIdentity: conn.BucketsIdentity,
			Rejected:        rejected,
		},
		UptimeSec: int64(time.Since(s.startedAt).Seconds()),
	}
}
