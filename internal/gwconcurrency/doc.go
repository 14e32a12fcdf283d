// Package gwconcurrency provides the background-job primitives shared by the
// gateway's non-hot-path maintenance work: a fixed-size task executor and a
// heap-based timer scheduler, plus optional Linux CPU pinning for the
// accept-loop goroutine.
package gwconcurrency
