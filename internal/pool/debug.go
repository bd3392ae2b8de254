//go:build debug

package pool

import (
	"runtime/debug"
	"sort"
	"sync"
)

// debugState keeps the acquisition stack of every outstanding instance so
// teardown can point at the code that leaked it.
type debugState struct {
	name   string
	mu     sync.Mutex
	stacks map[any]string
}

func newDebugState(name string) *debugState {
	return &debugState{
		name:   name,
		stacks: make(map[any]string),
	}
}

func (d *debugState) recordAcquire(obj any) {
	if d == nil {
		return
	}
	stack := string(debug.Stack())
	d.mu.Lock()
	d.stacks[obj] = stack
	d.mu.Unlock()
}

func (d *debugState) recordRelease(obj any) {
	if d == nil {
		return
	}
	d.mu.Lock()
	delete(d.stacks, obj)
	d.mu.Unlock()
}

func (d *debugState) activeStacks() []string {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stacks) == 0 {
		return nil
	}
	out := make([]string, 0, len(d.stacks))
	for _, stack := range d.stacks {
		out = append(out, stack)
	}
	sort.Strings(out)
	return out
}
