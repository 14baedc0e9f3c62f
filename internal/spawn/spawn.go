// Package spawn runs a one-off callable on its own OS thread and hands back a
// future for its result. It knows nothing about the task registry, which is
// what lets the registry bootstrap its own watchdog through it.
package spawn

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/danpasecinic/taskwarden/internal/thread"
	"github.com/danpasecinic/taskwarden/internal/types"
)

var (
	// ErrAlreadyRetrieved is returned when a result is requested a second time
	ErrAlreadyRetrieved = errors.New("result already retrieved")
)

// PanicError is the error stored in a Future when the callable panicked
type PanicError struct {
	Name  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %q panicked: %v", e.Name, e.Value)
}

// Future holds the eventual result of a spawned callable
type Future[T any] struct {
	done      chan struct{}
	value     T
	err       error
	retrieved atomic.Bool
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Done is closed once the result is available
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the result is available and returns it. Only the first
// call receives the result; later calls return ErrAlreadyRetrieved.
func (f *Future[T]) Get() (T, error) {
	return f.Wait(context.Background())
}

// Wait is Get bounded by ctx. A call that gives up because ctx ended does not
// consume the result.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	var zero T

	select {
	case <-f.done:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	if !f.retrieved.CompareAndSwap(false, true) {
		return zero, ErrAlreadyRetrieved
	}
	return f.value, f.err
}

// Spawn runs fn on a new thread named and configured from attr. The returned
// future yields fn's return value, or a *PanicError if fn panicked.
func Spawn[T any](attr types.Attributes, fn func() T) (types.TaskID, *Future[T], error) {
	if fn == nil {
		return types.InvalidTaskID, nil, errors.New("spawn: nil callable")
	}

	fut := newFuture[T]()

	id, err := thread.Create(
		attr.StackSize, attr.Priority, func(ctx context.Context, id types.TaskID) {
			_ = thread.SetName(id, attr.Name)
			run(attr.Name, fut, fn)
		},
	)
	if err != nil {
		return types.InvalidTaskID, nil, fmt.Errorf("spawn %q: %w", attr.Name, err)
	}

	return id, fut, nil
}

func run[T any](name string, fut *Future[T], fn func() T) {
	defer close(fut.done)
	defer func() {
		if p := recover(); p != nil {
			fut.err = &PanicError{Name: name, Value: p, Stack: debug.Stack()}
		}
	}()

	fut.value = fn()
}
