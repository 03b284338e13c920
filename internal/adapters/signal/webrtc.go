package signal

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/protocol"
)

// handleRelay passes offers, answers and candidates to the peer untouched.
func (ctl *SignalWSController) handleRelay(id domain.EndpointID, sig protocol.Signal) {
	err := ctl.Orch.Relay(id, sig)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnauthorizedRelay):
		log.Warn().Err(err).Str("module", "signal").Str("endpoint", string(id)).
			Str("session", string(sig.Session())).Msg("relay into foreign session")
	default:
		log.Info().Err(err).Str("module", "signal").Str("endpoint", string(id)).
			Str("type", string(sig.MessageType())).Msg("relay dropped")
	}
}
