package session

import (
	"sync"

	"streamcast/internal/core/domain"
)

// Registry maps stream ids to live rooms. It has its own coarse lock,
// distinct from any one room's internal lock, so room creation and lookup
// never contend with another room's mutations.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.StreamID]*registryEntry
}

// registryEntry serializes room creation per stream id: concurrent
// GetOrCreate calls for the same unseen id share one initialization.
type registryEntry struct {
	once sync.Once
	room *Room
	err  error
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.StreamID]*registryEntry)}
}

// GetOrCreate returns the room for streamID, creating it with create on
// first reference. Concurrent callers for the same unseen id observe the
// first caller's room; exactly one routing context is ever allocated.
func (r *Registry) GetOrCreate(streamID domain.StreamID, create func() (*Room, error)) (*Room, error) {
	r.mu.Lock()
	e, ok := r.rooms[streamID]
	if !ok {
		e = &registryEntry{}
		r.rooms[streamID] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.room, e.err = create()
	})

	if e.err != nil {
		// Failed initialization must not poison the id for later callers.
		r.mu.Lock()
		if r.rooms[streamID] == e {
			delete(r.rooms, streamID)
		}
		r.mu.Unlock()
		return nil, e.err
	}
	return e.room, nil
}

// Get returns the room for streamID if it exists and is initialized.
func (r *Registry) Get(streamID domain.StreamID) (*Room, bool) {
	r.mu.RLock()
	e, ok := r.rooms[streamID]
	r.mu.RUnlock()

	if !ok || e.room == nil {
		return nil, false
	}
	return e.room, true
}

// Remove deregisters the room. The caller is responsible for closing it.
func (r *Registry) Remove(streamID domain.StreamID) {
	r.mu.Lock()
	delete(r.rooms, streamID)
	r.mu.Unlock()
}

// Snapshot returns all initialized rooms, for reconciliation sweeps.
func (r *Registry) Snapshot() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Room, 0, len(r.rooms))
	for _, e := range r.rooms {
		if e.room != nil {
			out = append(out, e.room)
		}
	}
	return out
}

// Len reports the number of registered rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
