package supervisor

import (
	"sort"
	"sync"
)

// Registry maps pids to instances. One coarse lock guards it; critical
// sections only insert, erase or copy.
type Registry struct {
	mu    sync.Mutex
	byPID map[int]*Instance // Protected by mu
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byPID: make(map[int]*Instance)}
}

// Insert records inst, replacing a stale entry with the same pid
func (r *Registry) Insert(inst *Instance) (replaced *Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	replaced = r.byPID[inst.PID]
	r.byPID[inst.PID] = inst
	return replaced
}

// Remove erases the instance with pid. A second call for the same pid finds
// nothing and reports false.
func (r *Registry) Remove(pid int) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.byPID[pid]
	if ok {
		delete(r.byPID, pid)
	}
	return inst, ok
}

// RemoveInstance erases inst only if it is still the entry for its pid
func (r *Registry) RemoveInstance(inst *Instance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byPID[inst.PID] != inst {
		return false
	}
	delete(r.byPID, inst.PID)
	return true
}

// Get returns the instance with pid
func (r *Registry) Get(pid int) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.byPID[pid]
	return inst, ok
}

// Find returns the first instance, in start order, matching fn
func (r *Registry) Find(fn func(*Instance) bool) *Instance {
	for _, inst := range r.List() {
		if fn(inst) {
			return inst
		}
	}
	return nil
}

// List returns all instances ordered by start time, then pid
func (r *Registry) List() []*Instance {
	r.mu.Lock()
	out := make([]*Instance, 0, len(r.byPID))
	for _, inst := range r.byPID {
		out = append(out, inst)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Started.Equal(out[j].Started) {
			return out[i].PID < out[j].PID
		}
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

// Len returns the number of instances
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPID)
}
