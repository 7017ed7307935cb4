package presence

import "sync"

// One entry in the global online list.
type OnlineUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

// Registry tracks which user identities have live connections. A user may
// hold several connections at once (multiple tabs); they stay online until
// the last one drops. One registry exists per process, created at startup
// and owned by the hub.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*entry
}

type entry struct {
	name     string
	sessions map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*entry)}
}

// Connect records a session for the user and returns the number of sessions
// they now hold.
func (r *Registry) Connect(userID, name, sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.users[userID]
	if !ok {
		e = &entry{name: name, sessions: make(map[string]bool)}
		r.users[userID] = e
	}
	e.sessions[sessionID] = true
	return len(e.sessions)
}

// Disconnect removes a session and reports whether that was the user's last
// one. The cross-board presence sweep runs only on a last disconnect.
func (r *Registry) Disconnect(userID, sessionID string) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.users[userID]
	if !ok {
		return false
	}
	delete(e.sessions, sessionID)
	if len(e.sessions) == 0 {
		delete(r.users, userID)
		return true
	}
	return false
}

// OnlineList returns every currently connected user.
func (r *Registry) OnlineList() []OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]OnlineUser, 0, len(r.users))
	for id, e := range r.users {
		out = append(out, OnlineUser{ID: id, Name: e.name, Online: true})
	}
	return out
}

// Name returns the display name recorded for a connected user.
func (r *Registry) Name(userID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.users[userID]; ok {
		return e.name
	}
	return ""
}

// Online reports whether the user has at least one live session.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[userID]
	return ok
}

// Count returns the number of distinct online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
