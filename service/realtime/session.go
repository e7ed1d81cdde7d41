package realtime

import (
	"sync"
	"time"
)

// Identity is the authenticated user behind a connection, resolved by
// the handshake before the session is registered.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Session is one live connection. All mutable fields are guarded by
// the owning Registry's lock; nothing outside the registry holds a
// long-lived reference except the connection's own pumps.
type Session struct {
	ConnID      string
	User        Identity
	ConnectedAt time.Time

	lastActive time.Time
	projects   map[string]struct{}

	// Send is the bounded outbound queue, consumed by a single writer
	// goroutine. It is never closed; `closed` signals shutdown instead,
	// so a broadcast racing an unregister cannot panic.
	Send chan []byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(connID string, user Identity, queueSize int, now time.Time) *Session {
	return &Session{
		ConnID:      connID,
		User:        user,
		ConnectedAt: now,
		lastActive:  now,
		projects:    make(map[string]struct{}),
		Send:        make(chan []byte, queueSize),
		closed:      make(chan struct{}),
	}
}

// Closed is signalled once when the session is unregistered; the write
// pump selects on it to shut the connection down.
func (s *Session) Closed() <-chan struct{} { return s.closed }

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// PresenceEntry is the per-user projection of a room: several sessions
// of one user collapse into a single entry.
type PresenceEntry struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name,omitempty"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}
