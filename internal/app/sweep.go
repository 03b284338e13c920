package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/domain"
)

// SweepReport counts what a liveness sweep repaired.
type SweepReport struct {
	DeadEndpoints int
	StaleSessions int
	PrunedIndex   int
	PrunedPool    int
	ResetStates   int
	Paired        int
}

func (r SweepReport) Empty() bool {
	return r == SweepReport{}
}

// Sweep reconciles shared state with the transport. It is the backstop for
// missed disconnect notifications.
func (o *Orchestrator) Sweep() SweepReport {
	o.mu.Lock()
	defer o.mu.Unlock()

	var rep SweepReport
	now := o.now()

	// Endpoints whose connection is gone.
	for _, id := range o.reg.ids() {
		if o.reg.alive(id) {
			continue
		}
		if conn, ok := o.dropLocked(id, domain.ReasonStale); ok {
			if conn != nil {
				conn.Close()
			}
			rep.DeadEndpoints++
		}
	}

	// Sessions past the age ceiling or no longer consistent.
	for _, sid := range o.sessions.ids() {
		s, _ := o.sessions.get(sid)
		if (o.maxSessionAge > 0 && now.Sub(s.CreatedAt) > o.maxSessionAge) || !o.sessionConsistent(s) {
			o.sessions.teardown(sid, domain.ReasonStale, "")
			rep.StaleSessions++
		}
	}

	// Index entries pointing nowhere.
	for id, sid := range o.sessions.index {
		if _, ok := o.sessions.sessions[sid]; !ok {
			delete(o.sessions.index, id)
			rep.PrunedIndex++
		}
	}

	// Pool entries that are gone or not Waiting.
	for _, id := range o.pool.snapshot() {
		if st, ok := o.reg.stateOf(id); !ok || st != domain.StateWaiting {
			o.pool.remove(id)
			rep.PrunedPool++
		}
	}

	// States that no longer match any collection.
	for _, id := range o.reg.ids() {
		st, _ := o.reg.stateOf(id)
		switch {
		case st == domain.StatePaired:
			if _, ok := o.sessions.sessionFor(id); !ok {
				o.reg.setState(id, domain.StateIdle)
				rep.ResetStates++
			}
		case st == domain.StateWaiting && !o.pool.contains(id):
			o.reg.setState(id, domain.StateIdle)
			rep.ResetStates++
		}
	}

	for {
		if _, ok := o.matchLocked(); !ok {
			break
		}
		rep.Paired++
	}
	return rep
}

func (o *Orchestrator) sessionConsistent(s *domain.Session) bool {
	for _, m := range s.Members {
		st, ok := o.reg.stateOf(m)
		if !ok || st != domain.StatePaired || o.sessions.index[m] != s.ID {
			return false
		}
	}
	return true
}

// RunSweeper calls Sweep every interval until ctx is done.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info().Str("module", "app.sweep").Dur("interval", interval).Msg("liveness sweep started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.sweep").Msg("liveness sweep stopped")
			return nil
		case <-ticker.C:
			rep := o.Sweep()
			if rep.Empty() {
				continue
			}
			log.Info().Str("module", "app.sweep").
				Int("dead_endpoints", rep.DeadEndpoints).
				Int("stale_sessions", rep.StaleSessions).
				Int("pruned_index", rep.PrunedIndex).
				Int("pruned_pool", rep.PrunedPool).
				Int("reset_states", rep.ResetStates).
				Int("paired", rep.Paired).
				Msg("sweep repaired state")
		}
	}
}
