// Package async runs per-host work concurrently.
//
// [Queue] is a bounded-concurrency job queue: jobs are admitted in FIFO
// order, at most maxConcurrency run at once, and every job ends with an
// exit code and an optional emitted value. [RunParallel] is a smaller
// helper that runs a fixed set of named tasks and returns the first error.
package async
