package core

import "github.com/vovakirdan/campuschat-server/internal/store"

// Participant is a roster entry: the identity snapshot of a connected user.
type Participant struct {
	ID   int64
	Name string
	Role store.Role
}

type rosterEntry struct {
	participant Participant
	conns       map[string]struct{}
}

// Registry is the roster of connected users keyed by user id. A user with
// several open connections appears once and stays until the last one closes.
//
// Registry is not safe for concurrent use; the hub loop owns it.
type Registry struct {
	entries map[int64]*rosterEntry
	order   []int64
}

// NewRegistry creates an empty roster.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]*rosterEntry)}
}

// Upsert records connection connID for p, overwriting the stored snapshot.
// Returns true if the user was not on the roster before.
func (r *Registry) Upsert(connID string, p Participant) bool {
	entry, ok := r.entries[p.ID]
	if !ok {
		entry = &rosterEntry{conns: make(map[string]struct{})}
		r.entries[p.ID] = entry
		r.order = append(r.order, p.ID)
	}
	entry.participant = p
	entry.conns[connID] = struct{}{}
	return !ok
}

// Remove drops connection connID of user userID. Removing an unknown
// connection is a no-op. Returns true if the user left the roster.
func (r *Registry) Remove(userID int64, connID string) bool {
	entry, ok := r.entries[userID]
	if !ok {
		return false
	}
	if _, ok := entry.conns[connID]; !ok {
		return false
	}
	delete(entry.conns, connID)
	if len(entry.conns) > 0 {
		return false
	}

	delete(r.entries, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Snapshot returns a copy of the roster in join order.
func (r *Registry) Snapshot() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].participant)
	}
	return out
}

// Len returns the number of distinct users on the roster.
func (r *Registry) Len() int {
	return len(r.order)
}
