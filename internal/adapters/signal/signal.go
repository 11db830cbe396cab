package signal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Pairup/internal/app/orch"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

const (
	defaultReadLimit     = 64 << 10
	defaultPingPeriod    = 30 * time.Second
	defaultSendBuffer    = 64
	defaultLookupTimeout = 2 * time.Second
	writeWait            = 5 * time.Second
)

type SignalWSController struct {
	Orch      *orch.Orchestrator
	Auth      core.Authenticator
	Directory core.Directory
	Limiter   *RateLimiter

	ReadLimit     int64
	PingPeriod    time.Duration
	SendBuffer    int
	LookupTimeout time.Duration
}

func NewSignalWSController(o *orch.Orchestrator, auth core.Authenticator, dir core.Directory, limiter *RateLimiter) *SignalWSController {
	return &SignalWSController{
		Orch:          o,
		Auth:          auth,
		Directory:     dir,
		Limiter:       limiter,
		ReadLimit:     defaultReadLimit,
		PingPeriod:    defaultPingPeriod,
		SendBuffer:    defaultSendBuffer,
		LookupTimeout: defaultLookupTimeout,
	}
}

// WsSignalConn is the transport endpoint the relay writes into. Frames are
// queued and written by the write pump; a full queue drops the frame.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal resolves the caller, upgrades and registers the connection.
// ctx bounds the connection lifetime.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	logger := log.With().Str("module", "signal").Str("sid", string(sid)).Str("client_token", c.GetString("client_token")).Logger()

	identity := ctl.resolve(c.Request.Context(), credential(c))
	display := ctl.display(c.Request.Context(), identity, c.Query("name"))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.readLimit())

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.sendBuffer()),
	}
	sess := core.NewMemberSession(display, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(sid, sess, identity, cancel)
	logger.Info().Bool("anonymous", identity.IsAnonymous()).Str("name", sess.Display().Name).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}

// credential reads the token query parameter, then the bearer header.
func credential(c *gin.Context) string {
	if tok := c.Query("token"); tok != "" {
		return tok
	}
	h := c.GetHeader("Authorization")
	if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

func (ctl *SignalWSController) resolve(ctx context.Context, cred string) domain.Identity {
	if ctl.Auth == nil || cred == "" {
		return domain.Anonymous()
	}
	return ctl.Auth.Resolve(ctx, cred)
}

// display looks up the principal's profile. Any failure falls back to the
// requested name, then to Anonymous.
func (ctl *SignalWSController) display(ctx context.Context, id domain.Identity, requested string) domain.Display {
	fallback := domain.AnonymousDisplay()
	if domain.ValidateUsername(requested) == nil {
		fallback.Name = requested
	}
	p, ok := id.Principal()
	if !ok || ctl.Directory == nil {
		return fallback
	}
	ctx, cancel := context.WithTimeout(ctx, ctl.lookupTimeout())
	defer cancel()
	d, err := ctl.Directory.Lookup(ctx, p)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("principal", string(p.ID)).Msg("display lookup failed")
		return fallback
	}
	return d.OrAnonymous()
}

func (ctl *SignalWSController) readLimit() int64 {
	if ctl.ReadLimit > 0 {
		return ctl.ReadLimit
	}
	return defaultReadLimit
}

func (ctl *SignalWSController) pingPeriod() time.Duration {
	if ctl.PingPeriod > 0 {
		return ctl.PingPeriod
	}
	return defaultPingPeriod
}

func (ctl *SignalWSController) sendBuffer() int {
	if ctl.SendBuffer > 0 {
		return ctl.SendBuffer
	}
	return defaultSendBuffer
}

func (ctl *SignalWSController) lookupTimeout() time.Duration {
	if ctl.LookupTimeout > 0 {
		return ctl.LookupTimeout
	}
	return defaultLookupTimeout
}
