package domain

import "time"

type SessionID string

// Session is one active pairing. Members[0] is the initiator (offerer).
type Session struct {
	ID        SessionID
	Members   [2]EndpointID
	CreatedAt time.Time
}

func (s *Session) Has(id EndpointID) bool {
	return s.Members[0] == id || s.Members[1] == id
}

// Peer returns the other member of the session.
func (s *Session) Peer(id EndpointID) (EndpointID, bool) {
	switch id {
	case s.Members[0]:
		return s.Members[1], true
	case s.Members[1]:
		return s.Members[0], true
	}
	return "", false
}

func (s *Session) IsInitiator(id EndpointID) bool { return s.Members[0] == id }

// CloseReason tells the remaining member why a session ended.
type CloseReason string

const (
	ReasonPeerLeft         CloseReason = "peer-left"
	ReasonPeerDisconnected CloseReason = "peer-disconnected"
	ReasonStale            CloseReason = "stale"
	ReasonExplicitClose    CloseReason = "explicit-close"
)
