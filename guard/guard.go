package guard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrReentered = errors.New("reentrant call rejected")

type holdKey struct {
	g *Guard
}

// Guard serializes fund-moving operations and rejects calls made from inside
// an outbound transfer.
//
// Run holds the serialization lock for the whole operation. Hold runs the
// transfer with a context marked as in flight; a call made with that context
// fails with ErrReentered, while independent callers wait on the lock.
type Guard struct {
	mu     sync.Mutex
	locked atomic.Bool
}

func New() *Guard {
	return &Guard{}
}

// Reentrant reports whether ctx belongs to a transfer held by g.
func (g *Guard) Reentrant(ctx context.Context) bool {
	return ctx.Value(holdKey{g}) != nil
}

// Run executes op exclusively. It fails with ErrReentered when ctx comes from
// a transfer in flight.
func (g *Guard) Run(ctx context.Context, op func(ctx context.Context) error) error {
	if g.Reentrant(ctx) {
		return ErrReentered
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return op(ctx)
}

// Hold runs transfer with the guard locked and unlocks on every exit path,
// including a panic. It must be called from inside Run, and transfer must
// hand the context it receives to anything that can call back.
func (g *Guard) Hold(ctx context.Context, transfer func(ctx context.Context) error) error {
	if g.Reentrant(ctx) || !g.locked.CompareAndSwap(false, true) {
		return ErrReentered
	}
	defer g.locked.Store(false)

	return transfer(context.WithValue(ctx, holdKey{g}, struct{}{}))
}

// Locked reports whether a transfer is in flight.
func (g *Guard) Locked() bool {
	return g.locked.Load()
}
