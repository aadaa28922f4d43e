// Package session holds the responder's table of established peer sessions.
package session

import "time"

// Session is one established peer connection. The ID is chosen by the peer
// and arrives as the ssrc of its invitation.
type Session struct {
	ID            uint32
	Name          string    // peer name from the invitation, informational
	EstablishedAt time.Time // reference point for clock sync deltas
}

// Table maps session ids to sessions.
//
// A Table is not safe for concurrent use. The responder's control loop is its
// only owner.
type Table struct {
	sessions map[uint32]*Session
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		sessions: make(map[uint32]*Session),
	}
}

// Insert adds s, replacing any session already stored under s.ID.
// It reports whether an existing entry was replaced.
func (t *Table) Insert(s *Session) bool {
	_, replaced := t.sessions[s.ID]
	t.sessions[s.ID] = s
	return replaced
}

// Find looks up a session by id.
func (t *Table) Find(id uint32) (*Session, bool) {
	s, ok := t.sessions[id]
	return s, ok
}

// Remove deletes the session with the given id. It reports whether a session
// was present; removing an unknown id is a no-op.
func (t *Table) Remove(id uint32) bool {
	if _, ok := t.sessions[id]; !ok {
		return false
	}
	delete(t.sessions, id)
	return true
}

// Len returns the number of active sessions.
func (t *Table) Len() int {
	return len(t.sessions)
}

// Snapshot returns copies of all sessions, in no particular order.
func (t *Table) Snapshot() []Session {
	out := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, *s)
	}
	return out
}
