package lobby

import (
	"fmt"
	"sync"
)

// Registry is the process-wide code → lobby map. The process owning it is
// authoritative for all active lobbies.
type Registry struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby
}

func NewRegistry() *Registry {
	return &Registry{lobbies: make(map[string]*Lobby)}
}

// Add registers a lobby under its code.
func (r *Registry) Add(l *Lobby) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.lobbies[l.Code]; exists {
		return fmt.Errorf("lobby code %s already registered", l.Code)
	}
	r.lobbies[l.Code] = l
	return nil
}

// Find looks a lobby up by its room code.
func (r *Registry) Find(code string) (*Lobby, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[code]
	return l, ok
}

// HasCode reports whether a code is currently in use.
func (r *Registry) HasCode(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.lobbies[code]
	return ok
}

// Delete removes a lobby by code. Removing an absent code is a no-op.
func (r *Registry) Delete(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lobbies, code)
}

// Len returns the number of active lobbies.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lobbies)
}
