package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/protocol"
)

type Options struct {
	Policy Policy
	// SessionMaxAge is the age ceiling enforced by Sweep. Zero disables it.
	SessionMaxAge time.Duration
	Now           func() time.Time
}

// Orchestrator is the single critical region around the registry, the
// waiting pool and the session table. Every exported method holds mu for its
// whole duration and never blocks on I/O.
type Orchestrator struct {
	mu sync.Mutex

	reg      *registry
	pool     *waitingPool
	sessions *sessionTable
	notify   *notifier

	maxSessionAge time.Duration
	now           func() time.Time
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Policy == nil {
		opts.Policy = SimplePolicy{Action: KickEndpoint}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	reg := newRegistry()
	n := &notifier{reg: reg, policy: opts.Policy}
	return &Orchestrator{
		reg:           reg,
		pool:          newWaitingPool(reg),
		sessions:      newSessionTable(reg, n),
		notify:        n,
		maxSessionAge: opts.SessionMaxAge,
		now:           opts.Now,
	}
}

// Connect registers a new Idle endpoint bound to conn.
func (o *Orchestrator) Connect(id domain.EndpointID, displayName string, conn core.SignalConnection) (domain.Endpoint, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reg.register(id, displayName, conn, o.now())
}

// Join puts an Idle endpoint into the waiting pool and tries to pair it.
// Joining while Waiting re-acknowledges; joining while Paired is ignored.
func (o *Orchestrator) Join(id domain.EndpointID, displayName string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.reg.get(id)
	if !ok {
		return fmt.Errorf("join %s: %w", id, domain.ErrEndpointNotFound)
	}
	switch e.State {
	case domain.StatePaired:
		log.Debug().Str("module", "app").Str("endpoint", string(id)).Msg("join ignored, already paired")
		return nil
	case domain.StateWaiting:
		o.notify.send(id, protocol.NewWaiting())
		return nil
	}

	if displayName != "" {
		o.reg.rename(id, displayName)
	}
	if !o.pool.enqueue(id) {
		return nil
	}
	o.matchLocked()
	if st, _ := o.reg.stateOf(id); st == domain.StateWaiting {
		o.notify.send(id, protocol.NewWaiting())
	}
	return nil
}

// Leave ends the named session on behalf of one of its members. An empty sid
// leaves whatever the endpoint currently holds: its session or its place in
// the pool.
func (o *Orchestrator) Leave(id domain.EndpointID, sid domain.SessionID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.reg.get(id); !ok {
		return fmt.Errorf("leave %s: %w", id, domain.ErrEndpointNotFound)
	}
	if sid == "" {
		if s, ok := o.sessions.sessionFor(id); ok {
			o.sessions.teardown(s.ID, domain.ReasonPeerLeft, id)
			return nil
		}
		o.pool.remove(id)
		return nil
	}

	s, ok := o.sessions.get(sid)
	if !ok {
		return fmt.Errorf("leave %s: %w", sid, domain.ErrSessionNotFound)
	}
	if !s.Has(id) {
		return fmt.Errorf("leave %s by %s: %w", sid, id, domain.ErrUnauthorizedRelay)
	}
	o.sessions.teardown(sid, domain.ReasonPeerLeft, id)
	return nil
}

// Relay forwards an offer, answer or ICE candidate to the sender's peer.
// A sender naming an unknown session is told that session is closed.
func (o *Orchestrator) Relay(sender domain.EndpointID, sig protocol.Signal) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	err := o.relayLocked(sender, sig)
	if errors.Is(err, domain.ErrSessionNotFound) {
		o.notify.send(sender, protocol.NewSessionClosed(sig.Session(), domain.ReasonStale))
	}
	return err
}

// Disconnect removes the endpoint and cancels whatever it holds. It is safe
// to call more than once.
func (o *Orchestrator) Disconnect(id domain.EndpointID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.dropLocked(id, domain.ReasonPeerDisconnected)
	return ok
}

// dropLocked removes id from the registry first, so the teardown that follows
// only notifies the peer.
func (o *Orchestrator) dropLocked(id domain.EndpointID, reason domain.CloseReason) (core.SignalConnection, bool) {
	conn, ok := o.reg.remove(id)
	if !ok {
		return nil, false
	}
	o.pool.remove(id)
	if sid, ok := o.sessions.index[id]; ok {
		o.sessions.teardown(sid, reason, "")
	}
	return conn, true
}

// WhoAmI describes the endpoint to itself.
func (o *Orchestrator) WhoAmI(id domain.EndpointID) (*protocol.WhoAmI, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.reg.get(id)
	if !ok {
		return nil, false
	}
	out := &protocol.WhoAmI{
		Type:        protocol.TypeWhoAmI,
		ID:          e.ID,
		DisplayName: e.DisplayName,
		State:       e.State.String(),
	}
	if s, ok := o.sessions.sessionFor(id); ok {
		out.SessionID = s.ID
	}
	return out, true
}

// Send queues a message for one endpoint through the same path as
// notifications, so adapters never touch connections directly.
func (o *Orchestrator) Send(id domain.EndpointID, v any) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.notify.send(id, v)
}

func (o *Orchestrator) Endpoint(id domain.EndpointID) (domain.Endpoint, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reg.get(id)
}

// SessionFor returns a copy of the session id currently belongs to.
func (o *Orchestrator) SessionFor(id domain.EndpointID) (domain.Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions.sessionFor(id)
	if !ok {
		return domain.Session{}, false
	}
	return *s, true
}

func (o *Orchestrator) Waiting() []domain.EndpointID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pool.snapshot()
}
