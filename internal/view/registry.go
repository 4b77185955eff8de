package view

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
)

var (
	// ErrNotFound is returned for an unknown view id.
	ErrNotFound = errors.New("view not found")

	// ErrRegistryFull is returned when the registry holds its maximum number of views.
	ErrRegistryFull = errors.New("too many views")
)

// Registry holds the live server-side views keyed by id. Views are held in
// process memory only.
type Registry struct {
	mu    sync.RWMutex
	views map[string]*View
	max   int
}

// NewRegistry returns a Registry bounded to max views; max <= 0 selects
// constants.DefaultMaxViews.
func NewRegistry(max int) *Registry {
	if max <= 0 {
		max = constants.DefaultMaxViews
	}
	return &Registry{
		views: make(map[string]*View),
		max:   max,
	}
}

// Create registers v under a new id.
func (r *Registry) Create(v *View) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) >= r.max {
		return "", errors.WithHint(ErrRegistryFull, "delete unused views before creating new ones")
	}
	id := uuid.NewString()
	r.views[id] = v
	return id, nil
}

// Get returns the view registered under id.
func (r *Registry) Get(id string) (*View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	}
	return v, nil
}

// Delete removes the view registered under id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.views[id]; !ok {
		return errors.Wrapf(ErrNotFound, "%s", id)
	}
	delete(r.views, id)
	return nil
}

// Len returns the number of live views.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}
