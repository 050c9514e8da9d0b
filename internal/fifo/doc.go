// Package fifo wraps the named-pipe operations the client and daemon share.
//
// Opens come in three flavours: a non-blocking write open that reports a
// missing reader as ErrNoReader, the same open retried with a bounded
// constant backoff, and a blocking read open that can be cancelled through
// a context. Files returned here are registered with the Go runtime poller,
// so Close from another goroutine interrupts a pending Read.
package fifo
