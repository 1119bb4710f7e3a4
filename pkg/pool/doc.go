// Package pool provides the worker pool that executes units of work.
//
// This package includes:
//   - Request: one unit of work with its identity and completion callbacks
//   - Pool: a fixed set of worker goroutines between a request queue and a
//     result queue, both optionally bounded
//   - Release hooks, called by the worker once per request on every exit path
//
// Most users should import the root package github.com/jdziat/simple-job-runner
// and drive the pool through a dispatcher.
package pool
