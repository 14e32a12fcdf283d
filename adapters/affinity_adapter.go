// File: adapters/affinity_adapter.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
// Description:
//   Adapter exposing the api.Affinity interface, backed by gwconcurrency.

package adapters

import (
	"github.com/momentics/hiogate/api"
	"github.com/momentics/hiogate/internal/gwconcurrency"
)

// NewAffinityAdapter constructs a new api.Affinity bound to the calling
// thread. Callers that want to pin the accept-loop goroutine must invoke
// Pin from that goroutine after runtime.LockOSThread.
func NewAffinityAdapter() api.Affinity {
	return gwconcurrency.NewAffinityBinder()
}
