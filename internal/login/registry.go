package login

import (
	"sync"
	"time"
)

// Registry keeps one login machine per browser session while the flow is in
// progress. Entries are transient: they are dropped on completion and lazily
// evicted after IdleTTL of inactivity, matching the rule that a login attempt
// is never persisted beyond the current flow.
type Registry struct {
	mu       sync.Mutex
	machines map[string]*registryEntry
	factory  func() *Machine
	idleTTL  time.Duration
	now      func() time.Time
}

type registryEntry struct {
	machine  *Machine
	lastSeen time.Time
}

// IdleTTL is how long an abandoned login flow survives before eviction.
const IdleTTL = 15 * time.Minute

// NewRegistry builds a Registry. factory produces a fresh machine for a
// session that has none.
func NewRegistry(factory func() *Machine) *Registry {
	return &Registry{
		machines: make(map[string]*registryEntry),
		factory:  factory,
		idleTTL:  IdleTTL,
		now:      time.Now,
	}
}

// Get returns the machine for the session, creating one when absent or when
// the previous flow was abandoned long enough ago.
func (r *Registry) Get(sid string) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, entry := range r.machines {
		if now.Sub(entry.lastSeen) > r.idleTTL {
			delete(r.machines, key)
		}
	}

	entry, ok := r.machines[sid]
	if !ok {
		entry = &registryEntry{machine: r.factory()}
		r.machines[sid] = entry
	}
	entry.lastSeen = now
	return entry.machine
}

// Drop discards the machine for the session.
func (r *Registry) Drop(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.machines, sid)
}
