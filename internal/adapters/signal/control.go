package signal

import (
	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/protocol"
)

func (ctl *SignalWSController) handlePing(id domain.EndpointID) {
	ctl.Orch.Send(id, protocol.NewPong())
}

func (ctl *SignalWSController) handleWhoAmI(id domain.EndpointID) {
	if resp, ok := ctl.Orch.WhoAmI(id); ok {
		ctl.Orch.Send(id, resp)
	}
}
