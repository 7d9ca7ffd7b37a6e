// Package registry tracks which live push connections belong to which user.
package registry

import (
	"sort"
	"sync"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
)

type entry struct {
	conn   primary.PushConn
	userID int64
}

// Registry is a concurrency-safe multi-map from user id to live connections.
// A connection belongs to at most one user at a time.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]entry             // connectionId -> owner
	byUser map[int64]map[string]struct{} // userId -> connectionIds
}

func New() *Registry {
	return &Registry{
		conns:  make(map[string]entry),
		byUser: make(map[int64]map[string]struct{}),
	}
}

// Register adds conn under userID. Registering the same pair again is a
// no-op; registering a connection under another user moves it. Reports
// whether the user's set grew.
func (r *Registry) Register(conn primary.PushConn, userID int64) bool {
	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.conns[id]; ok {
		if current.userID == userID {
			return false
		}
		r.detach(id, current.userID)
	}

	r.conns[id] = entry{conn: conn, userID: userID}
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[id] = struct{}{}
	return true
}

// Unregister removes the (connectionID, userID) pair. Unknown pairs are ignored.
func (r *Registry) Unregister(connectionID string, userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[connectionID]
	if !ok || current.userID != userID {
		return false
	}
	delete(r.conns, connectionID)
	r.detach(connectionID, userID)
	return true
}

// Remove drops the connection whichever user it belongs to, returning that user
func (r *Registry) Remove(connectionID string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[connectionID]
	if !ok {
		return 0, false
	}
	delete(r.conns, connectionID)
	r.detach(connectionID, current.userID)
	return current.userID, true
}

// detach must be called with mu held
func (r *Registry) detach(connectionID string, userID int64) {
	set := r.byUser[userID]
	delete(set, connectionID)
	if len(set) == 0 {
		delete(r.byUser, userID)
	}
}

// ConnectionsFor returns a sorted snapshot of the user's connection ids
func (r *Registry) ConnectionsFor(userID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ConnectionIDs returns a snapshot of every registered connection id
func (r *Registry) ConnectionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup returns a snapshot of the user's connection handles
func (r *Registry) Lookup(userID int64) []primary.PushConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	conns := make([]primary.PushConn, 0, len(set))
	for id := range set {
		conns = append(conns, r.conns[id].conn)
	}
	return conns
}

// UserOf returns the user a connection is registered under
func (r *Registry) UserOf(connectionID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current, ok := r.conns[connectionID]
	return current.userID, ok
}

// Get returns the connection handle and the user it is registered under
func (r *Registry) Get(connectionID string) (primary.PushConn, int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current, ok := r.conns[connectionID]
	return current.conn, current.userID, ok
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Users returns the number of users with at least one connection
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// CloseAll closes and forgets every registered connection
func (r *Registry) CloseAll() []error {
	r.mu.Lock()
	conns := make([]primary.PushConn, 0, len(r.conns))
	for _, e := range r.conns {
		conns = append(conns, e.conn)
	}
	r.conns = make(map[string]entry)
	r.byUser = make(map[int64]map[string]struct{})
	r.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
