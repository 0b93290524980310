// Package registry holds the live job table shared between detached runs and
// synchronous status queries.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/JakeFAU/dictgen/internal/dictionary"
	"github.com/JakeFAU/dictgen/internal/metrics"
)

// Claim identifies one registry entry. Only the holder of the claim returned
// by CreateIfAbsent may write its terminal state.
type Claim struct {
	id    string
	state atomic.Pointer[dictionary.JobState]
}

// ID returns the job identifier the claim was issued for.
func (c *Claim) ID() string {
	return c.id
}

// Registry maps job identifiers to their current state. Reads never block
// writers on other identifiers.
type Registry struct {
	entries sync.Map // string -> *Claim
	size    atomic.Int64
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{}
}

// CreateIfAbsent installs state under id unless an entry already exists. The
// boolean reports whether this caller won; on a loss the existing state is
// returned through the claim's current value.
func (r *Registry) CreateIfAbsent(id string, state dictionary.JobState) (*Claim, bool) {
	claim := &Claim{id: id}
	claim.state.Store(&state)
	actual, loaded := r.entries.LoadOrStore(id, claim)
	if loaded {
		return actual.(*Claim), false
	}
	metrics.SetRegistryEntries(int(r.size.Add(1)))
	return claim, true
}

// Get returns the last committed state for id.
func (r *Registry) Get(id string) (dictionary.JobState, bool) {
	v, ok := r.entries.Load(id)
	if !ok {
		return dictionary.JobState{}, false
	}
	return *v.(*Claim).state.Load(), true
}

// Status returns only the status of id.
func (r *Registry) Status(id string) (dictionary.Status, bool) {
	state, ok := r.Get(id)
	if !ok {
		return "", false
	}
	return state.Status, true
}

// Current returns the state stored in an existing claim.
func (c *Claim) Current() dictionary.JobState {
	return *c.state.Load()
}

// SetTerminal moves the entry owned by claim from InProgress to state. It
// returns false when the entry was removed or replaced since the claim was
// issued, or when it has already left InProgress. A true result guarantees
// that a later Remove of the entry observes state.
func (r *Registry) SetTerminal(claim *Claim, state dictionary.JobState) bool {
	if !r.Owns(claim) || !state.IsTerminal() {
		return false
	}
	for {
		prev := claim.state.Load()
		if prev.Status != dictionary.StatusInProgress {
			return false
		}
		next := state
		if claim.state.CompareAndSwap(prev, &next) {
			break
		}
	}
	// A Remove that raced the swap already reported the InProgress state.
	return r.Owns(claim)
}

// Owns reports whether claim still identifies the live entry for its id.
func (r *Registry) Owns(claim *Claim) bool {
	if claim == nil {
		return false
	}
	v, ok := r.entries.Load(claim.id)
	return ok && v.(*Claim) == claim
}

// Remove deletes id and returns the state it held.
func (r *Registry) Remove(id string) (dictionary.JobState, bool) {
	v, ok := r.entries.LoadAndDelete(id)
	if !ok {
		return dictionary.JobState{}, false
	}
	metrics.SetRegistryEntries(int(r.size.Add(-1)))
	return *v.(*Claim).state.Load(), true
}

// Len reports the number of entries.
func (r *Registry) Len() int {
	return int(r.size.Load())
}

// Range calls fn for each entry until fn returns false. Entries added or
// removed concurrently may or may not be visited.
func (r *Registry) Range(fn func(id string, state dictionary.JobState) bool) {
	r.entries.Range(func(key, value any) bool {
		return fn(key.(string), *value.(*Claim).state.Load())
	})
}
