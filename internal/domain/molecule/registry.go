package molecule

import (
	"fmt"
	"sync"
)

// Entry is a stored molecule.  SMILES is kept verbatim for responses; matching
// uses Graph.
type Entry struct {
	Identifier string `json:"identifier"`
	SMILES     string `json:"smiles"`
	Graph      *Graph `json:"-"`
}

// Registry is the in-memory identifier -> Entry store.  Mutations take the
// write lock; reads take the read lock.  Listing follows insertion order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
	version uint64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Get returns the entry stored under id.
func (r *Registry) Get(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Add stores a new entry.  An existing id fails with ErrDuplicateIdentifier
// before the notation is considered; an unparsable notation fails with a
// *ParseError.
func (r *Registry) Add(id, smiles string) (Entry, error) {
	if id == "" {
		return Entry{}, ErrEmptyIdentifier
	}
	graph, parseErr := Parse(smiles)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return Entry{}, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, id)
	}
	if parseErr != nil {
		return Entry{}, parseErr
	}
	e := Entry{Identifier: id, SMILES: smiles, Graph: graph}
	r.insertLocked(e)
	return e, nil
}

// Update replaces the notation of an existing entry.  The identifier keeps its
// listing position.
func (r *Registry) Update(id, smiles string) (Entry, error) {
	graph, parseErr := Parse(smiles)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; !exists {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if parseErr != nil {
		return Entry{}, parseErr
	}
	e := Entry{Identifier: id, SMILES: smiles, Graph: graph}
	r.entries[id] = e
	r.version++
	return e, nil
}

// Delete removes and returns the entry stored under id.
func (r *Registry) Delete(id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.entries, id)
	for i, key := range r.order {
		if key == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.version++
	return e, nil
}

// List returns every entry in insertion order.  An empty registry yields an
// empty, non-nil slice.
func (r *Registry) List() []Entry {
	entries, _ := r.Snapshot()
	return entries
}

// Snapshot returns the entries in insertion order together with the version
// they were read at.
func (r *Registry) Snapshot() ([]Entry, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out, r.version
}

// Len returns the number of stored entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Version increases on every successful mutation.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func (r *Registry) insertLocked(e Entry) {
	r.entries[e.Identifier] = e
	r.order = append(r.order, e.Identifier)
	r.version++
}
