package app

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/protocol"
)

// sessionTable owns active sessions and the endpoint->session index. The two
// are only changed together, by create and teardown.
type sessionTable struct {
	reg    *registry
	notify *notifier

	sessions map[domain.SessionID]*domain.Session
	index    map[domain.EndpointID]domain.SessionID
	seq      uint64
}

func newSessionTable(reg *registry, n *notifier) *sessionTable {
	return &sessionTable{
		reg:      reg,
		notify:   n,
		sessions: make(map[domain.SessionID]*domain.Session),
		index:    make(map[domain.EndpointID]domain.SessionID),
	}
}

// create pairs a (initiator) with b. Both must be distinct, registered and
// Waiting; anything else is a bug in the caller.
func (t *sessionTable) create(a, b domain.EndpointID, now time.Time) (*domain.Session, error) {
	if a == b {
		return nil, fmt.Errorf("create session %s/%s: same endpoint: %w", a, b, domain.ErrInvariantViolation)
	}
	ea, okA := t.reg.get(a)
	eb, okB := t.reg.get(b)
	if !okA || !okB || ea.State != domain.StateWaiting || eb.State != domain.StateWaiting {
		return nil, fmt.Errorf("create session %s/%s: members not waiting: %w", a, b, domain.ErrInvariantViolation)
	}
	if _, ok := t.index[a]; ok {
		return nil, fmt.Errorf("create session: %s already indexed: %w", a, domain.ErrInvariantViolation)
	}
	if _, ok := t.index[b]; ok {
		return nil, fmt.Errorf("create session: %s already indexed: %w", b, domain.ErrInvariantViolation)
	}

	t.seq++
	s := &domain.Session{
		ID:        domain.SessionID(fmt.Sprintf("room-%d", t.seq)),
		Members:   [2]domain.EndpointID{a, b},
		CreatedAt: now,
	}
	t.reg.setState(a, domain.StatePaired)
	t.reg.setState(b, domain.StatePaired)
	t.index[a] = s.ID
	t.index[b] = s.ID
	t.sessions[s.ID] = s

	log.Info().Str("module", "app.sessions").Str("session", string(s.ID)).
		Str("initiator", string(a)).Str("responder", string(b)).Msg("session created")

	t.notify.send(a, protocol.NewMatched(s.ID, eb.Public(), true))
	t.notify.send(b, protocol.NewMatched(s.ID, ea.Public(), false))
	return s, nil
}

// teardown removes the session and both index entries, resets the members
// that are still registered to Idle and tells them why. cause, if set, is the
// member that asked for the close; it is told explicit-close. Calling it again
// for the same id is a no-op.
func (t *sessionTable) teardown(sid domain.SessionID, reason domain.CloseReason, cause domain.EndpointID) bool {
	s, ok := t.sessions[sid]
	if !ok {
		return false
	}
	delete(t.sessions, sid)
	for _, m := range s.Members {
		if t.index[m] == sid {
			delete(t.index, m)
		}
	}

	for _, m := range s.Members {
		st, ok := t.reg.stateOf(m)
		if !ok {
			continue
		}
		if st == domain.StatePaired {
			t.reg.setState(m, domain.StateIdle)
		}
		r := reason
		if m == cause {
			r = domain.ReasonExplicitClose
		}
		t.notify.send(m, protocol.NewSessionClosed(sid, r))
	}

	log.Info().Str("module", "app.sessions").Str("session", string(sid)).
		Str("reason", string(reason)).Dur("age", time.Since(s.CreatedAt)).Msg("session torn down")
	return true
}

func (t *sessionTable) sessionFor(id domain.EndpointID) (*domain.Session, bool) {
	sid, ok := t.index[id]
	if !ok {
		return nil, false
	}
	s, ok := t.sessions[sid]
	return s, ok
}

func (t *sessionTable) get(sid domain.SessionID) (*domain.Session, bool) {
	s, ok := t.sessions[sid]
	return s, ok
}

func (t *sessionTable) len() int { return len(t.sessions) }

func (t *sessionTable) ids() []domain.SessionID {
	out := make([]domain.SessionID, 0, len(t.sessions))
	for sid := range t.sessions {
		out = append(out, sid)
	}
	sort.Slice(out, func(i, j int) bool {
		return t.sessions[out[i]].CreatedAt.Before(t.sessions[out[j]].CreatedAt) ||
			(t.sessions[out[i]].CreatedAt.Equal(t.sessions[out[j]].CreatedAt) && out[i] < out[j])
	})
	return out
}
