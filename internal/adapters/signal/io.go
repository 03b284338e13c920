package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(ctl.opts.WriteWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

// readPump owns the endpoint's lifetime: when it returns the endpoint is
// disconnected and its peer notified.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, id domain.EndpointID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("endpoint", string(id)).Msg("readPump closing")
		ctl.Orch.Disconnect(id)
		ctl.Limiter.Forget(id)
		cancel()
		c.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("endpoint", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("endpoint", string(id)).Msg("readPump read error")
				}
				return
			}
			c.touch()
			_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
			ctl.handleSignal(id, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(id domain.EndpointID, data []byte) {
	if !ctl.Limiter.Allow(id) {
		log.Warn().Str("module", "signal").Str("endpoint", string(id)).Msg("rate limited")
		ctl.sendError(id, "rate_limited")
		return
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("endpoint", string(id)).Msg("bad message")
		if errors.Is(err, protocol.ErrUnknownType) {
			ctl.sendError(id, "unknown_type")
		} else {
			ctl.sendError(id, "bad_payload")
		}
		return
	}

	switch m := msg.(type) {
	case *protocol.Join:
		ctl.handleJoin(id, m)
	case *protocol.Leave:
		ctl.handleLeave(id, m)
	case protocol.Signal:
		ctl.handleRelay(id, m)
	case *protocol.Ping:
		ctl.handlePing(id)
	case *protocol.WhoAmIRequest:
		ctl.handleWhoAmI(id)
	default:
		log.Warn().Str("module", "signal").Str("type", string(msg.MessageType())).Msg("unhandled signal")
	}
}

func (ctl *SignalWSController) sendError(id domain.EndpointID, code string) {
	ctl.Orch.Send(id, protocol.NewError(code))
}
