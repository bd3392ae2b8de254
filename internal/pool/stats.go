package pool

import "sync/atomic"

// Stats is a point-in-time view of a pool's accounting.
type Stats struct {
	Name      string `json:"name"`
	Policy    Policy `json:"policy"`
	Capacity  int    `json:"capacity"`
	Free      int    `json:"free"`
	Live      int    `json:"live"`
	Total     int    `json:"total"`
	Destroyed bool   `json:"destroyed"`
}

// mirror publishes pool counters through atomics so exporters and the
// manager can read them while the owner keeps operating on the pool.
type mirror struct {
	name      string
	policy    Policy
	capacity  atomic.Int64
	free      atomic.Int64
	live      atomic.Int64
	destroyed atomic.Bool
}

func newMirror(name string, policy Policy) *mirror {
	return &mirror{name: name, policy: policy}
}

func (m *mirror) store(capacity, free, live int, destroyed bool) {
	m.capacity.Store(int64(capacity))
	m.free.Store(int64(free))
	m.live.Store(int64(live))
	m.destroyed.Store(destroyed)
}

func (m *mirror) stats() Stats {
	free := int(m.free.Load())
	live := int(m.live.Load())
	return Stats{
		Name:      m.name,
		Policy:    m.policy,
		Capacity:  int(m.capacity.Load()),
		Free:      free,
		Live:      live,
		Total:     free + live,
		Destroyed: m.destroyed.Load(),
	}
}
