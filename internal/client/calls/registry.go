package calls

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrCallNotFound  = errors.New("call not found")
	ErrCallExists    = errors.New("call already exists")
	ErrInvalidStatus = errors.New("invalid call status")
)

// Registry is the mutex-guarded call set.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]Call
	order []string
}

func NewRegistry() *Registry {
	return &Registry{calls: make(map[string]Call)}
}

func (r *Registry) Add(c Call) error {
	if !c.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, c.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[c.ID]; ok {
		return fmt.Errorf("%w: %s", ErrCallExists, c.ID)
	}
	r.calls[c.ID] = c
	r.order = append(r.order, c.ID)
	return nil
}

// AddIfAllowed adds c only when no other call is pending. The check and the
// insert happen under one lock.
func (r *Registry) AddIfAllowed(c Call) (bool, error) {
	if !c.Status.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, c.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !NewCallAllowed(r.listLocked()) {
		return false, nil
	}
	if _, ok := r.calls[c.ID]; ok {
		return false, fmt.Errorf("%w: %s", ErrCallExists, c.ID)
	}
	r.calls[c.ID] = c
	r.order = append(r.order, c.ID)
	return true, nil
}

func (r *Registry) SetStatus(id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCallNotFound, id)
	}
	c.Status = status
	r.calls[id] = c
	return nil
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[id]; !ok {
		return
	}
	delete(r.calls, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Clear drops every call.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make(map[string]Call)
	r.order = nil
}

// List returns the calls in insertion order.
func (r *Registry) List() []Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []Call {
	out := make([]Call, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.calls[id])
	}
	return out
}

func (r *Registry) NewCallAllowed() bool {
	return NewCallAllowed(r.List())
}

// Counts returns the number of calls per status, sorted by status name.
func (r *Registry) Counts() []StatusCount {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m := make(map[Status]int)
	for _, c := range r.calls {
		m[c.Status]++
	}
	out := make([]StatusCount, 0, len(m))
	for s, n := range m {
		out = append(out, StatusCount{Status: s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}

type StatusCount struct {
	Status Status
	Count  int
}
