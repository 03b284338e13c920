// Package protocol defines the signaling wire format: a JSON envelope whose
// "type" field selects one of a closed set of message shapes.
package protocol

import (
	"github.com/goccy/go-json"

	"github.com/dkeye/Roulette/internal/domain"
)

type Type string

// Client to server.
const (
	TypeJoin         Type = "join"
	TypeLeave        Type = "leave"
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice-candidate"
	TypePing         Type = "ping"
	TypeWhoAmI       Type = "whoami"
)

// Server to client. offer, answer and ice-candidate are forwarded as is.
const (
	TypeWaiting       Type = "waiting"
	TypeMatched       Type = "matched"
	TypeSessionClosed Type = "session-closed"
	TypePong          Type = "pong"
	TypeError         Type = "error"
)

// Inbound is implemented by every message a client may send.
type Inbound interface {
	MessageType() Type
}

// Signal is a negotiation message relayed between the members of a session.
// The payload is opaque to the server.
type Signal interface {
	Inbound
	Session() domain.SessionID
	Payload() json.RawMessage
}

type Join struct {
	Type        Type   `json:"type"`
	DisplayName string `json:"displayName,omitempty" validate:"max=256"`
}

// Leave ends the named session. An empty SessionID leaves the waiting pool.
type Leave struct {
	Type      Type             `json:"type"`
	SessionID domain.SessionID `json:"sessionId,omitempty" validate:"max=64"`
}

type Offer struct {
	Type      Type             `json:"type"`
	SessionID domain.SessionID `json:"sessionId" validate:"required,max=64"`
	SDP       json.RawMessage  `json:"sdp" validate:"present"`
}

type Answer struct {
	Type      Type             `json:"type"`
	SessionID domain.SessionID `json:"sessionId" validate:"required,max=64"`
	SDP       json.RawMessage  `json:"sdp" validate:"present"`
}

type ICECandidate struct {
	Type      Type             `json:"type"`
	SessionID domain.SessionID `json:"sessionId" validate:"required,max=64"`
	Candidate json.RawMessage  `json:"candidate" validate:"present"`
}

type Ping struct {
	Type Type `json:"type"`
}

type WhoAmIRequest struct {
	Type Type `json:"type"`
}

func (*Join) MessageType() Type          { return TypeJoin }
func (*Leave) MessageType() Type         { return TypeLeave }
func (*Offer) MessageType() Type         { return TypeOffer }
func (*Answer) MessageType() Type        { return TypeAnswer }
func (*ICECandidate) MessageType() Type  { return TypeICECandidate }
func (*Ping) MessageType() Type          { return TypePing }
func (*WhoAmIRequest) MessageType() Type { return TypeWhoAmI }

func (m *Offer) Session() domain.SessionID        { return m.SessionID }
func (m *Answer) Session() domain.SessionID       { return m.SessionID }
func (m *ICECandidate) Session() domain.SessionID { return m.SessionID }

func (m *Offer) Payload() json.RawMessage        { return m.SDP }
func (m *Answer) Payload() json.RawMessage       { return m.SDP }
func (m *ICECandidate) Payload() json.RawMessage { return m.Candidate }

type Waiting struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}

type Matched struct {
	Type        Type             `json:"type"`
	SessionID   domain.SessionID `json:"sessionId"`
	Peer        domain.PeerInfo  `json:"peer"`
	IsInitiator bool             `json:"isInitiator"`
}

type SessionClosed struct {
	Type      Type               `json:"type"`
	SessionID domain.SessionID   `json:"sessionId"`
	Reason    domain.CloseReason `json:"reason"`
}

type Pong struct {
	Type Type `json:"type"`
}

type WhoAmI struct {
	Type        Type              `json:"type"`
	ID          domain.EndpointID `json:"id"`
	DisplayName string            `json:"displayName"`
	State       string            `json:"state"`
	SessionID   domain.SessionID  `json:"sessionId,omitempty"`
}

type Error struct {
	Type  Type   `json:"type"`
	Error string `json:"error"`
}

const WaitingMessage = "Waiting to connect you to someone"

func NewWaiting() *Waiting { return &Waiting{Type: TypeWaiting, Message: WaitingMessage} }

func NewMatched(sid domain.SessionID, peer domain.PeerInfo, initiator bool) *Matched {
	return &Matched{Type: TypeMatched, SessionID: sid, Peer: peer, IsInitiator: initiator}
}

func NewSessionClosed(sid domain.SessionID, reason domain.CloseReason) *SessionClosed {
	return &SessionClosed{Type: TypeSessionClosed, SessionID: sid, Reason: reason}
}

func NewPong() *Pong { return &Pong{Type: TypePong} }

func NewError(msg string) *Error { return &Error{Type: TypeError, Error: msg} }

// Forward builds the message delivered to the other member of the session.
// The payload is passed through byte for byte.
func Forward(s Signal) any {
	switch s.MessageType() {
	case TypeOffer:
		return &Offer{Type: TypeOffer, SessionID: s.Session(), SDP: s.Payload()}
	case TypeAnswer:
		return &Answer{Type: TypeAnswer, SessionID: s.Session(), SDP: s.Payload()}
	default:
		return &ICECandidate{Type: TypeICECandidate, SessionID: s.Session(), Candidate: s.Payload()}
	}
}
