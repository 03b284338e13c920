package app

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
)

type registryEntry struct {
	Endpoint domain.Endpoint
	Conn     core.SignalConnection
}

// registry owns every connected endpoint. Endpoint state is only changed
// through its mutators. Callers hold Orchestrator.mu.
type registry struct {
	endpoints map[domain.EndpointID]*registryEntry
}

func newRegistry() *registry {
	return &registry{endpoints: make(map[domain.EndpointID]*registryEntry)}
}

func (r *registry) register(
	id domain.EndpointID,
	displayName string,
	conn core.SignalConnection,
	now time.Time,
) (domain.Endpoint, error) {
	if _, ok := r.endpoints[id]; ok {
		return domain.Endpoint{}, fmt.Errorf("register %s: %w", id, domain.ErrDuplicateEndpoint)
	}
	e := &registryEntry{
		Endpoint: domain.Endpoint{
			ID:          id,
			DisplayName: domain.NormalizeDisplayName(id, displayName),
			JoinedAt:    now,
			State:       domain.StateIdle,
		},
		Conn: conn,
	}
	r.endpoints[id] = e
	log.Info().Str("module", "app.registry").Str("endpoint", string(id)).Str("name", e.Endpoint.DisplayName).Msg("endpoint registered")
	return e.Endpoint, nil
}

// get returns a copy; mutate through setState and rename.
func (r *registry) get(id domain.EndpointID) (domain.Endpoint, bool) {
	e, ok := r.endpoints[id]
	if !ok {
		return domain.Endpoint{}, false
	}
	return e.Endpoint, true
}

func (r *registry) conn(id domain.EndpointID) (core.SignalConnection, bool) {
	e, ok := r.endpoints[id]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

func (r *registry) stateOf(id domain.EndpointID) (domain.State, bool) {
	e, ok := r.endpoints[id]
	if !ok {
		return 0, false
	}
	return e.Endpoint.State, true
}

func (r *registry) alive(id domain.EndpointID) bool {
	e, ok := r.endpoints[id]
	return ok && e.Conn != nil && e.Conn.Alive()
}

// remove is idempotent and hands the connection back to the caller.
func (r *registry) remove(id domain.EndpointID) (core.SignalConnection, bool) {
	e, ok := r.endpoints[id]
	if !ok {
		return nil, false
	}
	delete(r.endpoints, id)
	log.Info().Str("module", "app.registry").Str("endpoint", string(id)).Msg("endpoint removed")
	return e.Conn, true
}

func (r *registry) setState(id domain.EndpointID, st domain.State) bool {
	e, ok := r.endpoints[id]
	if !ok {
		return false
	}
	if e.Endpoint.State != st {
		log.Debug().Str("module", "app.registry").Str("endpoint", string(id)).
			Stringer("from", e.Endpoint.State).Stringer("to", st).Msg("state change")
	}
	e.Endpoint.State = st
	return true
}

func (r *registry) rename(id domain.EndpointID, name string) bool {
	e, ok := r.endpoints[id]
	if !ok {
		return false
	}
	e.Endpoint.DisplayName = domain.NormalizeDisplayName(id, name)
	return true
}

func (r *registry) len() int { return len(r.endpoints) }

// ids returns endpoint ids ordered by join time so sweeps are deterministic.
func (r *registry) ids() []domain.EndpointID {
	out := make([]domain.EndpointID, 0, len(r.endpoints))
	for id := range r.endpoints {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := r.endpoints[out[i]].Endpoint, r.endpoints[out[j]].Endpoint
		if a.JoinedAt.Equal(b.JoinedAt) {
			return a.ID < b.ID
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})
	return out
}
