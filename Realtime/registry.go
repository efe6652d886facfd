package Realtime

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"AviCRM/Metrics"
)

// Session is the identity a connection announced when it authenticated.
type Session struct {
	ConnectionID string          `json:"connectionId"`
	UserID       json.RawMessage `json:"userId,omitempty"`
	Username     string          `json:"username"`
	ConnectedAt  time.Time       `json:"connectedAt"`
}

// Registry maps open websocket connections to users.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Register binds connID to the user. Authenticating again on the same
// connection replaces the previous identity.
func (r *Registry) Register(connID string, userID json.RawMessage, username string) Session {
	session := Session{
		ConnectionID: connID,
		UserID:       userID,
		Username:     username,
		ConnectedAt:  time.Now().UTC(),
	}

	r.mu.Lock()
	_, existed := r.sessions[connID]
	r.sessions[connID] = session
	r.mu.Unlock()

	if !existed {
		Metrics.RealtimeConnections.Inc()
	}
	return session
}

func (r *Registry) Unregister(connID string) (Session, bool) {
	r.mu.Lock()
	session, ok := r.sessions[connID]
	delete(r.sessions, connID)
	r.mu.Unlock()

	if ok {
		Metrics.RealtimeConnections.Dec()
	}
	return session, ok
}

func (r *Registry) Lookup(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[connID]
	return session, ok
}

// Sessions returns the open sessions of username, or all of them when
// username is empty, oldest first.
func (r *Registry) Sessions(username string) []Session {
	r.mu.RLock()
	sessions := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if username == "" || strings.EqualFold(s.Username, username) {
			sessions = append(sessions, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ConnectedAt.Equal(sessions[j].ConnectedAt) {
			return sessions[i].ConnectionID < sessions[j].ConnectionID
		}
		return sessions[i].ConnectedAt.Before(sessions[j].ConnectedAt)
	})
	return sessions
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
