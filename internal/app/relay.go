package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/protocol"
)

// relayLocked forwards sig from sender to the other member of the session it
// names. The payload is neither inspected nor buffered.
func (o *Orchestrator) relayLocked(sender domain.EndpointID, sig protocol.Signal) error {
	sid := sig.Session()
	s, ok := o.sessions.get(sid)
	if !ok {
		return fmt.Errorf("relay %s from %s: %w", sig.MessageType(), sender, domain.ErrSessionNotFound)
	}
	if own, ok := o.sessions.sessionFor(sender); !ok || own.ID != sid {
		return fmt.Errorf("relay %s from %s to %s: %w", sig.MessageType(), sender, sid, domain.ErrUnauthorizedRelay)
	}
	peer, _ := s.Peer(sender)
	if !o.notify.send(peer, protocol.Forward(sig)) {
		log.Debug().Str("module", "app.relay").Str("session", string(sid)).Str("to", string(peer)).Msg("forward not queued")
	}
	return nil
}
