package app

import "github.com/dkeye/Roulette/internal/domain"

type Stats struct {
	TotalEndpoints int `json:"totalEndpoints"`
	Idle           int `json:"idle"`
	Waiting        int `json:"waiting"`
	Paired         int `json:"paired"`
	ActiveSessions int `json:"activeSessions"`
	PoolLength     int `json:"poolLength"`
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Stats{
		TotalEndpoints: o.reg.len(),
		ActiveSessions: o.sessions.len(),
		PoolLength:     o.pool.len(),
	}
	for _, e := range o.reg.endpoints {
		switch e.Endpoint.State {
		case domain.StateIdle:
			st.Idle++
		case domain.StateWaiting:
			st.Waiting++
		case domain.StatePaired:
			st.Paired++
		}
	}
	return st
}
