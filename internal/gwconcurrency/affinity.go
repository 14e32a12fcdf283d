// File: internal/gwconcurrency/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CPU affinity binding for the accept-loop goroutine. Platform-specific
// pinning lives in affinity_linux.go / affinity_other.go.

package gwconcurrency

import (
	"github.com/momentics/hiogate/api"
)

// AffinityBinder implements api.Affinity by pinning the calling OS thread.
// Callers must run it from the goroutine they intend to pin, combined with
// runtime.LockOSThread, since Go can otherwise migrate goroutines across
// OS threads between syscalls.
type AffinityBinder struct {
	cpuID  int
	pinned bool
	scope  api.AffinityScope
}

// NewAffinityBinder returns an unpinned binder scoped to the calling thread.
func NewAffinityBinder() *AffinityBinder {
	return &AffinityBinder{cpuID: -1, scope: api.ScopeThread}
}

// Pin binds the current OS thread to cpuID. cpuID < 0 is a no-op that
// reports success, letting callers unconditionally invoke Pin behind a
// config flag without special-casing "unset".
func (a *AffinityBinder) Pin(cpuID int) error {
	if cpuID < 0 {
		return nil
	}
	if err := platformPin(cpuID); err != nil {
		return err
	}
	a.cpuID = cpuID
	a.pinned = true
	return nil
}

// Unpin releases any CPU binding on the current thread.
func (a *AffinityBinder) Unpin() error {
	if !a.pinned {
		return nil
	}
	if err := platformUnpin(); err != nil {
		return err
	}
	a.pinned = false
	a.cpuID = -1
	return nil
}

// Get reports the bound CPU, or -1 if unpinned.
func (a *AffinityBinder) Get() (int, error) {
	return a.cpuID, nil
}

// Scope reports the binding scope, always thread-level for this binder.
func (a *AffinityBinder) Scope() api.AffinityScope {
	return a.scope
}

// ImmutableDescriptor returns a snapshot of the current binding state.
func (a *AffinityBinder) ImmutableDescriptor() api.AffinityDescriptor {
	return api.AffinityDescriptor{
		CPUID:  a.cpuID,
		Scope:  a.scope,
		Pinned: a.pinned,
	}
}

var _ api.Affinity = (*AffinityBinder)(nil)
