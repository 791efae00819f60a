package call

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type outcome[T any] struct {
	err error
	val T
}

// Pending is the one-shot future for a dispatched native call. It settles
// exactly once; the completion may arrive on any goroutine and Await bridges
// it back into the caller's context.
type Pending[T any] struct {
	ch   chan outcome[T]
	id   uuid.UUID
	once sync.Once
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{
		ch: make(chan outcome[T], 1),
		id: uuid.New(),
	}
}

// Failed returns an already-settled Pending. Used for validation failures
// that short-circuit before dispatch.
func Failed[T any](err error) *Pending[T] {
	p := newPending[T]()
	var zero T
	p.settle(zero, err)
	return p
}

// ID returns the correlation identifier attached to this invocation.
func (p *Pending[T]) ID() uuid.UUID {
	return p.id
}

// settle records the outcome. Only the first call has any effect.
func (p *Pending[T]) settle(val T, err error) {
	p.once.Do(func() {
		p.ch <- outcome[T]{val: val, err: err}
	})
}

// Await blocks until the call settles or ctx is done. The settlement is
// consumed by the first successful Await; a ctx error leaves it available
// for a later Await. Cancelling ctx does not cancel the native call.
func (p *Pending[T]) Await(ctx context.Context) (T, error) {
	select {
	case out := <-p.ch:
		return out.val, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
