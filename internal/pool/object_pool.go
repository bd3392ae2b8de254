// Package pool contains a single-owner LIFO object pool with capacity
// accounting, deferred shrinking and explicit teardown, plus a manager for
// named pools.
package pool

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/coachpo/poolkit/errs"
	"github.com/coachpo/poolkit/internal/observability"
)

const defaultPoolName = "default"

// ObjectPool reuses expensive instances of T. Free instances are kept
// deactivated on a LIFO stack; acquired instances are tracked by identity so
// double releases are detected and teardown can report leaks.
//
// Instances are keyed by value, so T should be a pointer or handle type. When
// T is an interface, Create must not return slices, maps or funcs; such
// instances are destroyed and rejected with ErrUncomparable.
//
// An ObjectPool performs no locking. Hosts sharing one across goroutines must
// serialize every call.
type ObjectPool[T comparable] struct {
	name      string
	lifecycle Lifecycle[T]
	policy    Policy
	capacity  int
	free      []T
	acquired  map[T]struct{}
	destroyed bool

	logger  observability.Logger
	metrics *Metrics
	mirror  *mirror
	debug   *debugState
}

// TeardownReport summarizes a DestroyAll call.
type TeardownReport struct {
	Pool        string `json:"pool"`
	Destroyed   int    `json:"destroyed"`
	Outstanding int    `json:"outstanding"`
}

// Err reports outstanding instances as a leak error, or nil.
func (r TeardownReport) Err() error {
	if r.Outstanding <= 0 {
		return nil
	}
	return errs.New(r.Pool, errs.CodeLeak,
		errs.WithOp("destroy_all"),
		errs.WithMessage(pluralize(r.Outstanding, "instance")+" never released"),
		errs.WithCause(ErrOutstanding))
}

// New builds a pool named name and eagerly creates initialCapacity
// deactivated instances. If Create fails, every instance built so far is
// destroyed and the error is returned.
func New[T comparable](name string, lifecycle Lifecycle[T], initialCapacity int, opts ...Option) (*ObjectPool[T], error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultPoolName
	}
	if lifecycle == nil {
		return nil, invalid(name, "new", "lifecycle required")
	}
	if v, ok := lifecycle.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, invalid(name, "new", err.Error())
		}
	}
	if initialCapacity < 0 {
		return nil, invalid(name, "new", "capacity must not be negative")
	}

	s := newSettings(opts)
	p := &ObjectPool[T]{
		name:      name,
		lifecycle: lifecycle,
		policy:    s.policy,
		free:      make([]T, 0, initialCapacity),
		acquired:  make(map[T]struct{}, initialCapacity),
		logger:    s.logger,
		metrics:   s.metrics,
		mirror:    newMirror(name, s.policy),
		debug:     newDebugState(name),
	}
	for i := 0; i < initialCapacity; i++ {
		obj, err := p.create("new")
		if err != nil {
			for len(p.free) > 0 {
				p.destroy(p.popFree())
			}
			return nil, err
		}
		p.free = append(p.free, obj)
	}
	p.capacity = initialCapacity
	p.sync()
	p.metrics.track(p.mirror)
	p.logger.Debug("pool created",
		observability.F("pool", name),
		observability.F("policy", p.policy.String()),
		observability.F("capacity", initialCapacity))
	return p, nil
}

// Name returns the pool name.
func (p *ObjectPool[T]) Name() string {
	return p.name
}

// Policy returns the acquire policy used by Acquire.
func (p *ObjectPool[T]) Policy() Policy {
	return p.policy
}

// Acquire takes an instance using the pool's configured policy.
func (p *ObjectPool[T]) Acquire() (T, error) {
	if p.policy == PolicyElastic {
		return p.PopOrGrow()
	}
	return p.Pop()
}

// Pop returns the most recently released free instance, activated. It fails
// with ErrPoolExhausted when no free instance exists.
func (p *ObjectPool[T]) Pop() (T, error) {
	var zero T
	if p.destroyed {
		return zero, p.fail("pop", errs.CodeDestroyed, ErrPoolDestroyed)
	}
	if len(p.free) == 0 {
		p.metrics.addExhausted(p.name)
		return zero, p.fail("pop", errs.CodeExhausted, ErrPoolExhausted)
	}
	return p.checkout(), nil
}

// PopOrGrow behaves like Pop but creates one instance when the free stack is
// empty, permanently raising capacity by one.
func (p *ObjectPool[T]) PopOrGrow() (T, error) {
	var zero T
	if p.destroyed {
		return zero, p.fail("pop_or_grow", errs.CodeDestroyed, ErrPoolDestroyed)
	}
	if len(p.free) == 0 {
		obj, err := p.create("pop_or_grow")
		if err != nil {
			return zero, err
		}
		p.free = append(p.free, obj)
		p.capacity++
		p.logger.Debug("pool grown",
			observability.F("pool", p.name),
			observability.F("capacity", p.capacity))
	}
	return p.checkout(), nil
}

// Release deactivates obj and either pools it or, when the pool is above its
// target capacity, destroys it. Releasing an instance that is not currently
// acquired fails with ErrDoubleRelease and leaves the pool untouched.
func (p *ObjectPool[T]) Release(obj T) error {
	if p.destroyed {
		return p.fail("release", errs.CodeDestroyed, ErrPoolDestroyed)
	}
	if _, ok := p.acquired[obj]; !ok {
		p.metrics.addDoubleRelease(p.name)
		return p.fail("release", errs.CodeDoubleRelease, ErrDoubleRelease)
	}
	p.lifecycle.SetActive(obj, false)
	delete(p.acquired, obj)
	p.debug.recordRelease(obj)

	if len(p.free)+len(p.acquired) < p.capacity {
		p.free = append(p.free, obj)
	} else {
		p.destroy(obj)
	}
	p.sync()
	return nil
}

// Resize sets the target capacity. Growth creates the missing instances
// immediately. Shrinking destroys free instances first; any remaining excess
// is held by callers and is destroyed as those instances are released.
func (p *ObjectPool[T]) Resize(capacity int) error {
	if p.destroyed {
		return p.fail("resize", errs.CodeDestroyed, ErrPoolDestroyed)
	}
	if capacity < 0 {
		return invalid(p.name, "resize", "capacity must not be negative")
	}
	previous := p.capacity
	p.capacity = capacity
	defer p.sync()

	total := p.total()
	switch {
	case total < capacity:
		for i := total; i < capacity; i++ {
			obj, err := p.create("resize")
			if err != nil {
				return err
			}
			p.free = append(p.free, obj)
		}
	case total > capacity:
		excess := total - capacity
		for excess > 0 && len(p.free) > 0 {
			p.destroy(p.popFree())
			excess--
		}
		if excess > 0 {
			p.logger.Debug("pool shrink deferred",
				observability.F("pool", p.name),
				observability.F("pending", excess))
		}
	}
	p.logger.Debug("pool resized",
		observability.F("pool", p.name),
		observability.F("from", previous),
		observability.F("to", capacity))
	return nil
}

// DestroyAll destroys every free instance and moves the pool to its terminal
// state. Instances still held by callers are not touched; they are counted
// in the report. Calling it again is a no-op that returns an empty report.
func (p *ObjectPool[T]) DestroyAll() TeardownReport {
	report := TeardownReport{Pool: p.name}
	if p.destroyed {
		return report
	}
	for len(p.free) > 0 {
		p.destroy(p.popFree())
		report.Destroyed++
	}
	p.free = nil
	p.destroyed = true
	report.Outstanding = len(p.acquired)
	p.sync()
	p.metrics.untrack(p.mirror)

	if report.Outstanding > 0 {
		p.logger.Error("pool destroyed with outstanding instances",
			observability.F("pool", p.name),
			observability.F("outstanding", report.Outstanding))
		for _, stack := range p.debug.activeStacks() {
			p.logger.Error("pool leak candidate",
				observability.F("pool", p.name),
				observability.F("stack", stack))
		}
	}
	p.logger.Debug("pool destroyed",
		observability.F("pool", p.name),
		observability.F("destroyed", report.Destroyed))
	return report
}

// Stats returns the latest published counters. It is safe to call from any
// goroutine.
func (p *ObjectPool[T]) Stats() Stats {
	return p.mirror.stats()
}

func (p *ObjectPool[T]) total() int {
	return len(p.free) + len(p.acquired)
}

func (p *ObjectPool[T]) create(op string) (T, error) {
	obj, err := p.lifecycle.Create()
	if err != nil {
		var zero T
		return zero, errs.New(p.name, errs.CodeFactory, errs.WithOp(op), errs.WithCause(err))
	}
	if v := reflect.ValueOf(any(obj)); v.IsValid() && !v.Comparable() {
		p.lifecycle.Destroy(obj)
		var zero T
		return zero, errs.New(p.name, errs.CodeFactory, errs.WithOp(op),
			errs.WithMessage(fmt.Sprintf("create returned %T", obj)),
			errs.WithCause(ErrUncomparable))
	}
	p.lifecycle.SetActive(obj, false)
	p.metrics.addCreated(p.name)
	return obj, nil
}

func (p *ObjectPool[T]) destroy(obj T) {
	p.lifecycle.Destroy(obj)
	p.metrics.addDestroyed(p.name)
}

func (p *ObjectPool[T]) popFree() T {
	n := len(p.free) - 1
	obj := p.free[n]
	var zero T
	p.free[n] = zero
	p.free = p.free[:n]
	return obj
}

func (p *ObjectPool[T]) checkout() T {
	obj := p.popFree()
	p.lifecycle.SetActive(obj, true)
	p.acquired[obj] = struct{}{}
	p.debug.recordAcquire(obj)
	p.sync()
	return obj
}

func (p *ObjectPool[T]) sync() {
	p.mirror.store(p.capacity, len(p.free), len(p.acquired), p.destroyed)
}

func (p *ObjectPool[T]) fail(op string, code errs.Code, sentinel error) error {
	return errs.New(p.name, code, errs.WithOp(op), errs.WithCause(sentinel))
}
