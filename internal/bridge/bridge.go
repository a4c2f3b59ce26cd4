// Package bridge provides the synchronous facade through which kernel
// dispatch threads perform network I/O.
//
// FUSE operation handlers are synchronous: one call, one reply. Network
// fetches are driven on a single shared background context created at mount
// time, and every handler blocks its calling thread until its fetch
// completes. This trades throughput for the simplicity of keeping every
// handler an ordinary blocking function. There is no per-operation timeout
// and no cancellation: once a request is in flight it runs to completion,
// and failures surface only as the store's error.
package bridge

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxInflight bounds concurrent network calls when the
// configuration does not say otherwise.
const DefaultMaxInflight = 16

// Bridge owns the shared execution context for all store traffic of one
// mount. It is created once at mount time and closed at unmount.
type Bridge struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
}

// New creates a bridge bounding in-flight network work to maxInflight
// concurrent calls. Non-positive values fall back to DefaultMaxInflight.
func New(maxInflight int64) *Bridge {
	if maxInflight <= 0 {
		maxInflight = DefaultMaxInflight
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(maxInflight),
	}
}

// Do runs fn on the shared context and blocks until it returns. The
// calling thread is not released to do other work while waiting. fn
// receives the bridge's context, which is only cancelled by Close; kernel
// interrupt signals are deliberately not propagated here.
func (b *Bridge) Do(fn func(ctx context.Context) error) error {
	if err := b.sem.Acquire(b.ctx, 1); err != nil {
		return fmt.Errorf("bridge closed: %w", err)
	}
	defer b.sem.Release(1)

	done := make(chan error, 1)
	go func() {
		done <- fn(b.ctx)
	}()
	return <-done
}

// Close cancels the shared context. Calls already in flight observe the
// cancellation through their context; subsequent Do calls fail
// immediately.
func (b *Bridge) Close() {
	b.cancel()
}
