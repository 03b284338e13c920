package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/protocol"
)

// notifier encodes outbound messages and queues them on the endpoint's
// connection. It never blocks.
type notifier struct {
	reg    *registry
	policy Policy
}

func (n *notifier) send(id domain.EndpointID, v any) bool {
	conn, ok := n.reg.conn(id)
	if !ok || conn == nil {
		return false
	}
	frame, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.notify").Str("endpoint", string(id)).Msg("encode")
		return false
	}
	err = conn.TrySend(frame)
	if err == nil {
		return true
	}
	if !errors.Is(err, core.ErrBackpressure) {
		log.Debug().Err(err).Str("module", "app.notify").Str("endpoint", string(id)).Msg("send skipped")
		return false
	}
	if n.policy == nil {
		return false
	}
	switch n.policy.OnBackPressure(id) {
	case KickEndpoint:
		log.Warn().Str("module", "app.notify").Str("endpoint", string(id)).Msg("slow endpoint kicked")
		conn.Close()
	case DropMessage, NoAction:
		log.Warn().Str("module", "app.notify").Str("endpoint", string(id)).Msg("message dropped on backpressure")
	}
	return false
}
