package pool

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"
)

// Lifecycle is the set of capabilities a pool needs from its host.
//
// Create must return a fresh, independent instance on every call, distinct
// by == from every other live instance; pointers and handles qualify. SetActive
// toggles the instance's in-use representation and must tolerate repeated
// calls with the same value. Destroy releases the instance for good; the pool
// never touches an instance after destroying it.
type Lifecycle[T any] interface {
	Create() (T, error)
	SetActive(obj T, active bool)
	Destroy(obj T)
}

// LifecycleFuncs adapts plain functions to Lifecycle. Nil SetActiveFunc and
// DestroyFunc are no-ops; CreateFunc is required.
type LifecycleFuncs[T any] struct {
	CreateFunc    func() (T, error)
	SetActiveFunc func(obj T, active bool)
	DestroyFunc   func(obj T)
}

var errNoCreate = errors.New("create function required")

// Create calls CreateFunc.
func (f LifecycleFuncs[T]) Create() (T, error) {
	if f.CreateFunc == nil {
		var zero T
		return zero, errNoCreate
	}
	return f.CreateFunc()
}

// SetActive calls SetActiveFunc when set.
func (f LifecycleFuncs[T]) SetActive(obj T, active bool) {
	if f.SetActiveFunc != nil {
		f.SetActiveFunc(obj, active)
	}
}

// Destroy calls DestroyFunc when set.
func (f LifecycleFuncs[T]) Destroy(obj T) {
	if f.DestroyFunc != nil {
		f.DestroyFunc(obj)
	}
}

func (f LifecycleFuncs[T]) validate() error {
	if f.CreateFunc == nil {
		return errNoCreate
	}
	return nil
}

type validator interface {
	validate() error
}

// RetryCreate wraps create with backoff retries for hosts whose construction
// fails transiently. Wrap an error with backoff.Permanent to stop retrying.
// The pool itself never retries.
func RetryCreate[T any](ctx context.Context, create func() (T, error), opts ...backoff.RetryOption) func() (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return func() (T, error) {
		return backoff.Retry(ctx, backoff.Operation[T](create), opts...)
	}
}
