// Package workload is a reference host for the pool: a pooled Entity type
// and a paced driver that exercises acquire, release and resize.
package workload

import (
	"github.com/google/uuid"
)

// Entity is a pooled game-style object. Active mirrors whether it is in use.
type Entity struct {
	ID        uuid.UUID
	Kind      string
	Active    bool
	Spawns    int
	Destroyed bool
}

// Spawner implements pool.Lifecycle for entities of one kind.
type Spawner struct {
	Kind string

	created   int
	destroyed int
}

// NewSpawner returns a spawner producing entities of kind.
func NewSpawner(kind string) *Spawner {
	return &Spawner{Kind: kind}
}

// Create implements pool.Lifecycle with a fresh uuid per entity.
func (s *Spawner) Create() (*Entity, error) {
	s.created++
	return &Entity{ID: uuid.New(), Kind: s.Kind}, nil
}

// SetActive implements pool.Lifecycle and counts each activation as a spawn.
func (s *Spawner) SetActive(e *Entity, active bool) {
	if active && !e.Active {
		e.Spawns++
	}
	e.Active = active
}

// Destroy implements pool.Lifecycle.
func (s *Spawner) Destroy(e *Entity) {
	e.Active = false
	e.Destroyed = true
	s.destroyed++
}

// Created reports how many entities the spawner built.
func (s *Spawner) Created() int { return s.created }

// DestroyedCount reports how many entities the spawner destroyed.
func (s *Spawner) DestroyedCount() int { return s.destroyed }
