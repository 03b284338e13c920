package signal

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/app"
	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
)

// DisplayNameKey is the gin context key holding the preferred display name
// read from the profile cookie.
const DisplayNameKey = "display_name"

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
	// AllowedOrigins restricts the upgrade Origin header. Empty allows any.
	AllowedOrigins []string
}

func (o *Options) withDefaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 65536
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
}

type SignalWSController struct {
	Orch    *app.Orchestrator
	Limiter *MessageRateLimiter

	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(orch *app.Orchestrator, limiter *MessageRateLimiter, opts Options) *SignalWSController {
	opts.withDefaults()
	ctl := &SignalWSController{
		Orch:    orch,
		Limiter: limiter,
		opts:    opts,
	}
	ctl.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     ctl.checkOrigin,
	}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	if len(ctl.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(ctl.opts.AllowedOrigins, r.Header.Get("Origin"))
}

// WsSignalConn is the core.SignalConnection of one WebSocket. Frames are
// queued on send and written by the write pump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	pongWait time.Duration
	lastSeen atomic.Int64

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int, pongWait time.Duration) *WsSignalConn {
	c := &WsSignalConn{
		conn:     ws,
		send:     make(chan core.Frame, buffer),
		pongWait: pongWait,
	}
	c.touch()
	return c
}

func (c *WsSignalConn) touch() { c.lastSeen.Store(time.Now().UnixNano()) }

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Alive reports false once the socket is closed or nothing, not even a pong,
// arrived within pongWait.
func (c *WsSignalConn) Alive() bool {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return false
	}
	return time.Since(time.Unix(0, c.lastSeen.Load())) < c.pongWait
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and registers a fresh Idle endpoint for
// it. The pumps run until the socket fails or ctx is cancelled.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	id := domain.EndpointID(uuid.NewString())
	conn := newWsSignalConn(ws, ctl.opts.SendBuffer, ctl.opts.PongWait)

	ep, err := ctl.Orch.Connect(id, c.GetString(DisplayNameKey), conn)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("endpoint", string(id)).Msg("connect")
		conn.Close()
		return
	}
	log.Info().Str("module", "signal").Str("endpoint", string(id)).Str("name", ep.DisplayName).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, id, conn)
}
