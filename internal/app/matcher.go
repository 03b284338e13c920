package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/domain"
)

// matchLocked pairs the two oldest valid entries of the pool. It forms at
// most one session; entries that went invalid since they were queued are
// discarded, and a surviving partner goes back to the front of the pool.
func (o *Orchestrator) matchLocked() (*domain.Session, bool) {
	for o.pool.len() >= 2 {
		a, _ := o.pool.dequeueFront()
		b, _ := o.pool.dequeueFront()
		okA, okB := o.matchable(a), o.matchable(b)

		switch {
		case okA && okB:
			s, err := o.sessions.create(a, b, o.now())
			if err != nil {
				log.Error().Err(err).Str("module", "app.matcher").
					Str("a", string(a)).Str("b", string(b)).Msg("internal assertion failed, pairing aborted")
				o.discard(a)
				o.discard(b)
				return nil, false
			}
			return s, true
		case okA:
			o.discard(b)
			o.pool.pushFront(a)
		case okB:
			o.discard(a)
			o.pool.pushFront(b)
		default:
			o.discard(a)
			o.discard(b)
		}
	}
	return nil, false
}

func (o *Orchestrator) matchable(id domain.EndpointID) bool {
	st, ok := o.reg.stateOf(id)
	return ok && st == domain.StateWaiting && o.reg.alive(id)
}

// discard resets an endpoint that was popped from the pool but not paired.
func (o *Orchestrator) discard(id domain.EndpointID) {
	if st, ok := o.reg.stateOf(id); ok && st == domain.StateWaiting {
		o.reg.setState(id, domain.StateIdle)
	}
	log.Info().Str("module", "app.matcher").Str("endpoint", string(id)).Msg("discarded stale pool entry")
}
