// File: adapters/executor_adapter.go
// Package adapters provides glue between internal concurrency primitives and
// the api package's contracts.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ExecutorAdapter implements api.Executor by delegating to
// gwconcurrency.Executor, the fixed-size background worker pool used for
// maintenance jobs (rate-limiter sweeps, auth sweeps, stats emission).

package adapters

import (
	"github.com/momentics/hiogate/api"
	"github.com/momentics/hiogate/internal/gwconcurrency"
)

// ExecutorAdapter wraps a gwconcurrency.Executor to satisfy api.Executor.
type ExecutorAdapter struct {
	exec *gwconcurrency.Executor
}

// NewExecutorAdapter constructs an api.Executor backed by workers goroutines.
// The concrete type is returned (rather than the bare interface) so callers
// that also need lifecycle control (Close) don't have to re-assert it.
func NewExecutorAdapter(workers int) *ExecutorAdapter {
	return &ExecutorAdapter{exec: gwconcurrency.NewExecutor(workers)}
}

// Submit dispatches a task function to be executed asynchronously.
func (ea *ExecutorAdapter) Submit(task func()) error {
	return ea.exec.Submit(task)
}

// NumWorkers returns the current number of active worker goroutines.
func (ea *ExecutorAdapter) NumWorkers() int {
	return ea.exec.NumWorkers()
}

// Resize grows the worker pool to newCount workers.
func (ea *ExecutorAdapter) Resize(newCount int) {
	ea.exec.Resize(newCount)
}

// Close shuts down the executor, waiting for in-flight tasks to finish.
func (ea *ExecutorAdapter) Close() {
	ea.exec.Close()
}

var _ api.Executor = (*ExecutorAdapter)(nil)
