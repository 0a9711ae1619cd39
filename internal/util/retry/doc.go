// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max
// attempts, initial delay and maximum delay. It is used for SSH dials and
// other operations that may fail transiently. Wrap an error with [Fatal] to
// stop retrying immediately.
package retry
