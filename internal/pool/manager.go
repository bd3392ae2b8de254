package pool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
	concpool "github.com/sourcegraph/conc/pool"

	"github.com/coachpo/poolkit/errs"
	"github.com/coachpo/poolkit/internal/observability"
)

const teardownWorkers = 4

// Managed is the type-erased view of a pool held by a Manager.
type Managed interface {
	Name() string
	Stats() Stats
	DestroyAll() TeardownReport
}

// Manager is a registry of named pools with coordinated teardown. The
// registry is safe for concurrent use; the pools it holds keep their
// single-owner contract.
type Manager struct {
	mu     sync.RWMutex
	pools  map[string]Managed
	closed bool
}

// NewManager constructs an empty manager ready for pool registration.
func NewManager() *Manager {
	return &Manager{pools: make(map[string]Managed)}
}

// Register adds p under its name.
func (m *Manager) Register(p Managed) error {
	if p == nil {
		return invalid("", "register", "nil pool")
	}
	name := p.Name()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errs.New(name, errs.CodeClosed, errs.WithOp("register"), errs.WithCause(ErrManagerClosed))
	}
	if _, exists := m.pools[name]; exists {
		return invalid(name, "register", "pool already registered")
	}
	m.pools[name] = p
	return nil
}

// Lookup returns the pool registered under name.
func (m *Manager) Lookup(name string) (Managed, error) {
	m.mu.RLock()
	p, ok := m.pools[name]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.New(name, errs.CodeNotRegistered, errs.WithOp("lookup"), errs.WithCause(ErrPoolNotRegistered))
	}
	return p, nil
}

// Get returns the pool registered under name with its concrete element type.
func Get[T comparable](m *Manager, name string) (*ObjectPool[T], error) {
	managed, err := m.Lookup(name)
	if err != nil {
		return nil, err
	}
	p, ok := managed.(*ObjectPool[T])
	if !ok {
		return nil, invalid(name, "lookup", fmt.Sprintf("pool holds %T", managed))
	}
	return p, nil
}

// Stats returns the stats of the named pool.
func (m *Manager) Stats(name string) (Stats, error) {
	p, err := m.Lookup(name)
	if err != nil {
		return Stats{}, err
	}
	return p.Stats(), nil
}

// Names lists registered pools in lexical order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Snapshot returns stats for every pool ordered by name.
func (m *Manager) Snapshot() []Stats {
	m.mu.RLock()
	out := make([]Stats, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p.Stats())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// WriteSnapshot writes Snapshot as a JSON array without HTML escaping.
func (m *Manager) WriteSnapshot(w io.Writer) error {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(m.Snapshot()); err != nil {
		return fmt.Errorf("pool manager: encode snapshot: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("pool manager: write snapshot: %w", err)
	}
	return nil
}

// Shutdown closes the registry and destroys every pool. Pools are torn down
// in parallel, each by a single goroutine, so their owners must have stopped
// using them. Outstanding instances are reported as an aggregated leak
// error. If ctx ends first, Shutdown returns its error while teardown
// finishes in the background. Later calls return nil.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	targets := make([]Managed, 0, len(m.pools))
	for _, p := range m.pools {
		targets = append(targets, p)
	}
	m.mu.Unlock()

	workers := concpool.NewWithResults[TeardownReport]().WithMaxGoroutines(teardownWorkers)
	for _, p := range targets {
		workers.Go(p.DestroyAll)
	}
	done := make(chan []TeardownReport, 1)
	go func() {
		done <- workers.Wait()
	}()

	select {
	case reports := <-done:
		leaks := make([]error, 0, len(reports))
		destroyed := 0
		for _, report := range reports {
			destroyed += report.Destroyed
			leaks = append(leaks, report.Err())
		}
		observability.Log().Info("pool manager shut down",
			observability.F("pools", len(reports)),
			observability.F("destroyed", destroyed))
		return observability.AggregateErrors("manager", "shutdown", errs.CodeLeak, leaks)
	case <-ctx.Done():
		return fmt.Errorf("pool manager: shutdown: %w", ctx.Err())
	}
}
