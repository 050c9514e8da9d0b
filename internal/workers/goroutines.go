package workers

import (
	"context"
	"sync"
	"sync/atomic"

	"upcase/internal/protocol"
	"upcase/internal/session"
)

// Goroutines serves every session from its own goroutine. Each goroutine
// receives its request by value and owns that copy.
type Goroutines struct {
	opts   session.Options
	wg     sync.WaitGroup
	active atomic.Int64
	served atomic.Int64
}

// NewGoroutines returns the thread-per-client strategy.
func NewGoroutines(opts session.Options) *Goroutines {
	return &Goroutines{opts: opts}
}

func (g *Goroutines) Name() string { return StrategyThread }

func (g *Goroutines) Spawn(ctx context.Context, req protocol.ConnectionRequest) error {
	g.wg.Add(1)
	g.active.Add(1)
	go func(req protocol.ConnectionRequest) {
		defer g.wg.Done()
		defer g.active.Add(-1)
		defer g.served.Add(1)
		_, _ = session.Serve(ctx, req, g.opts)
	}(req)
	return nil
}

func (g *Goroutines) Active() int { return int(g.active.Load()) }

// Served reports sessions that have finished, successfully or not.
func (g *Goroutines) Served() int { return int(g.served.Load()) }

func (g *Goroutines) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
