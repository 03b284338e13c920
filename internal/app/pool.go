package app

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/domain"
)

// waitingPool is the FIFO of endpoints seeking a peer. Every id in it refers
// to a Waiting endpoint and appears once.
type waitingPool struct {
	reg *registry
	ids []domain.EndpointID
}

func newWaitingPool(reg *registry) *waitingPool {
	return &waitingPool{reg: reg}
}

// enqueue appends an Idle endpoint and marks it Waiting. It reports whether
// the pool changed.
func (p *waitingPool) enqueue(id domain.EndpointID) bool {
	if p.contains(id) {
		return false
	}
	if st, ok := p.reg.stateOf(id); !ok || st != domain.StateIdle {
		return false
	}
	p.ids = append(p.ids, id)
	p.reg.setState(id, domain.StateWaiting)
	log.Info().Str("module", "app.pool").Str("endpoint", string(id)).Int("len", len(p.ids)).Msg("enqueued")
	return true
}

func (p *waitingPool) dequeueFront() (domain.EndpointID, bool) {
	if len(p.ids) == 0 {
		return "", false
	}
	id := p.ids[0]
	p.ids = p.ids[1:]
	return id, true
}

// pushFront gives id back its seniority.
func (p *waitingPool) pushFront(id domain.EndpointID) {
	if p.contains(id) {
		return
	}
	p.ids = slices.Insert(p.ids, 0, id)
}

// remove drops id from anywhere in the pool and resets a still registered
// endpoint to Idle.
func (p *waitingPool) remove(id domain.EndpointID) bool {
	i := slices.Index(p.ids, id)
	if i < 0 {
		return false
	}
	p.ids = slices.Delete(p.ids, i, i+1)
	if st, ok := p.reg.stateOf(id); ok && st == domain.StateWaiting {
		p.reg.setState(id, domain.StateIdle)
	}
	log.Info().Str("module", "app.pool").Str("endpoint", string(id)).Int("len", len(p.ids)).Msg("removed from pool")
	return true
}

func (p *waitingPool) contains(id domain.EndpointID) bool {
	return slices.Contains(p.ids, id)
}

func (p *waitingPool) len() int { return len(p.ids) }

func (p *waitingPool) snapshot() []domain.EndpointID {
	return slices.Clone(p.ids)
}
