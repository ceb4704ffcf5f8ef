package handler

import (
	"fmt"
	"sync"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Entry is one pending deferred operation stored in a Registry: the
// originating AsyncResponse plus whatever context the caller needs to
// reconstruct a reply (the original Elicitation request, the approval
// context, ...).
type Entry struct {
	Async   *AsyncResponse
	Context any
}

// Registry is a process-wide, owner-scoped table of pending deferred
// operations keyed by request id. The owner prefix lets
// multiple concurrent sessions share one process-wide namespace without id
// collisions; Scoped returns a view pre-bound to one owner.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// Scoped is a Registry view bound to a single owner tag.
type Scoped struct {
	owner string
	r     *Registry
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewRegistry returns an empty Registry. Production code constructs one
// per process; tests construct independent instances freely.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Store records entry under id. An existing entry for id is replaced.
func (r *Registry) Store(id string, entry *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = entry
}

// Retrieve returns the entry for id, or nil if none is pending.
func (r *Registry) Retrieve(id string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id]
}

// Remove deletes the entry for id, if present.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Complete transitions the stored AsyncResponse for id to Completed with
// data, and removes the entry. Unknown ids are a no-op (logged by the
// caller - Registry itself stays dependency-free of a logger).
func (r *Registry) Complete(id string, data any) bool {
	return r.finish(id, func(a *AsyncResponse) bool { return a.Complete(data) })
}

// Reject transitions the stored AsyncResponse for id to Rejected.
func (r *Registry) Reject(id string, reason string) bool {
	return r.finish(id, func(a *AsyncResponse) bool { return a.Reject(reason) })
}

// Cancel transitions the stored AsyncResponse for id to Cancelled.
func (r *Registry) Cancel(id string, reason string) bool {
	return r.finish(id, func(a *AsyncResponse) bool { return a.Cancel(reason) })
}

// Approve transitions the stored AsyncResponse for id to Completed with a
// nil payload, the human-in-the-loop "approved" shape.
func (r *Registry) Approve(id string) bool {
	return r.finish(id, func(a *AsyncResponse) bool { return a.Complete(nil) })
}

// Deny transitions the stored AsyncResponse for id to Rejected with
// reason, the human-in-the-loop "denied" shape.
func (r *Registry) Deny(id string, reason string) bool {
	return r.Reject(id, reason)
}

// Clear removes every entry, without settling their AsyncResponses.
// Intended for test teardown and process shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*Entry)
}

// Size returns the number of pending entries.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ForOwner returns a Scoped view that prefixes every id with owner, so
// concurrent sessions never collide in the shared routing map.
func (r *Registry) ForOwner(owner string) *Scoped {
	return &Scoped{owner: owner, r: r}
}

// Release removes every entry belonging to owner. Used when a session
// closes, so its undelivered deferred handlers don't leak forever.
func (r *Registry) Release(owner string) {
	prefix := owner + ":"
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.entries {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			delete(r.entries, id)
		}
	}
}

///////////////////////////////////////////////////////////////////////////////
// SCOPED

func (s *Scoped) key(id string) string {
	return fmt.Sprintf("%s:%s", s.owner, id)
}

func (s *Scoped) Store(id string, entry *Entry) { s.r.Store(s.key(id), entry) }
func (s *Scoped) Retrieve(id string) *Entry      { return s.r.Retrieve(s.key(id)) }
func (s *Scoped) Remove(id string)               { s.r.Remove(s.key(id)) }
func (s *Scoped) Complete(id string, data any) bool {
	return s.r.Complete(s.key(id), data)
}
func (s *Scoped) Reject(id string, reason string) bool { return s.r.Reject(s.key(id), reason) }
func (s *Scoped) Cancel(id string, reason string) bool { return s.r.Cancel(s.key(id), reason) }
func (s *Scoped) Approve(id string) bool               { return s.r.Approve(s.key(id)) }
func (s *Scoped) Deny(id string, reason string) bool    { return s.r.Deny(s.key(id), reason) }

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (r *Registry) finish(id string, transition func(*AsyncResponse) bool) bool {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok || entry.Async == nil {
		return false
	}
	return transition(entry.Async)
}

///////////////////////////////////////////////////////////////////////////////
// PACKAGE-WIDE DEFAULTS

// ElicitationRegistry is the process-wide registry of pending
// elicitation/create requests a Defer result was returned for.
var ElicitationRegistry = NewRegistry()

// HumanInTheLoopRegistry is the process-wide registry of pending
// human-in-the-loop approval requests.
var HumanInTheLoopRegistry = NewRegistry()
