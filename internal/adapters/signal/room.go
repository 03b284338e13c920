package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/protocol"
)

func (ctl *SignalWSController) handleJoin(id domain.EndpointID, m *protocol.Join) {
	log.Info().Str("module", "signal").Str("endpoint", string(id)).Msg("join")
	if err := ctl.Orch.Join(id, m.DisplayName); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("endpoint", string(id)).Msg("join")
	}
}

// handleLeave ends the session or leaves the pool; the socket stays open.
func (ctl *SignalWSController) handleLeave(id domain.EndpointID, m *protocol.Leave) {
	log.Info().Str("module", "signal").Str("endpoint", string(id)).Str("session", string(m.SessionID)).Msg("leave")
	if err := ctl.Orch.Leave(id, m.SessionID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("endpoint", string(id)).Msg("leave rejected")
	}
}
